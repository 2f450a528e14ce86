package index

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

// Sync walks the corpus and brings the validation cache up to date:
//   - new/changed files are revalidated and upserted
//   - files removed from disk are deleted from the cache
func Sync(db *DB, store storage.Provider, v *validate.Validator, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, v, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile validates data and upserts the result into the cache. A file
// that fails to parse is cached with its parse diagnostic so the failure
// shows up in listings.
func indexFile(db *DB, v *validate.Validator, path string, data []byte) error {
	row := DocRow{
		Path:      path,
		ID:        validate.PathToID(path),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}

	doc, err := document.FromString(string(data))
	if err != nil {
		diag := validate.Diagnostic{
			Severity: validate.SeverityError,
			Code:     "E000",
			Location: "file",
			Message:  "failed to parse: " + err.Error(),
		}
		return db.UpsertDocument(row, []validate.Diagnostic{diag}, nil)
	}
	doc.Path = path

	if doc.FM != nil {
		row.Type, _ = doc.FM.GetDisplay("type")
		row.Title, _ = doc.FM.GetDisplay("title")
		row.Status, _ = doc.FM.GetDisplay("status")
	}
	if row.Title == "" {
		row.Title = row.ID
	}

	diags := v.ValidateDocument(doc)
	links := relationLinks(v, doc, path)
	return db.UpsertDocument(row, diags, links)
}

var linkIDShape = regexp.MustCompile(`^[A-Za-z]+[-_]\d+$`)

// relationLinks extracts the relation-field references of a document,
// normalized to target IDs.
func relationLinks(v *validate.Validator, doc *document.Document, path string) []models.Link {
	if doc.FM == nil {
		return nil
	}
	var out []models.Link
	for _, field := range v.Schema.AllRelationFieldNames() {
		val, ok := doc.FM.Get(field)
		if !ok {
			continue
		}
		for _, ref := range frontmatter.StringSlice(val) {
			target := normalizeRef(path, ref)
			if target == "" {
				continue
			}
			out = append(out, models.Link{Source: path, Target: target, Relation: field})
		}
	}
	return out
}

func normalizeRef(sourcePath, ref string) string {
	if strings.HasSuffix(ref, ".md") {
		return validate.PathToID(filepath.Join(filepath.Dir(sourcePath), ref))
	}
	if linkIDShape.MatchString(ref) {
		return strings.ToUpper(strings.ReplaceAll(ref, "_", "-"))
	}
	return ""
}
