package index

import (
	"fmt"
	"time"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/validate"
)

// DocRow represents a row in the documents table.
type DocRow struct {
	Path      string
	ID        string
	Type      string
	Title     string
	Status    string
	Checksum  string
	UpdatedAt time.Time
}

// UpsertDocument inserts or replaces a document, its cached diagnostics,
// and its outgoing links within a transaction.
func (db *DB) UpsertDocument(row DocRow, diags []validate.Diagnostic, links []models.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var errors, warnings int
	for _, d := range diags {
		switch d.Severity {
		case validate.SeverityError:
			errors++
		case validate.SeverityWarning:
			warnings++
		}
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, id, type, title, status, checksum, errors, warnings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			type       = excluded.type,
			title      = excluded.title,
			status     = excluded.status,
			checksum   = excluded.checksum,
			errors     = excluded.errors,
			warnings   = excluded.warnings,
			updated_at = excluded.updated_at
	`, row.Path, row.ID, row.Type, row.Title, row.Status, row.Checksum, errors, warnings, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// Replace cached diagnostics: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM diagnostics WHERE path = ?`, row.Path)
	if len(diags) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO diagnostics (path, severity, code, location, message, hint) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare diagnostic insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range diags {
			if _, err := stmt.Exec(row.Path, string(d.Severity), d.Code, d.Location, d.Message, d.Hint); err != nil {
				return fmt.Errorf("index: insert diagnostic: %w", err)
			}
		}
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, row.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, relation) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(row.Path, l.Target, l.Relation); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its diagnostics, and outgoing links.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM diagnostics WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string
// if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetDocument returns one indexed document, or nil when absent.
func (db *DB) GetDocument(path string) (*models.DocSummary, error) {
	row := db.conn.QueryRow(`
		SELECT path, id, type, title, status, errors, warnings, updated_at
		FROM documents WHERE path = ?`, path)
	var s models.DocSummary
	if err := row.Scan(&s.Path, &s.ID, &s.Type, &s.Title, &s.Status, &s.Errors, &s.Warnings, &s.UpdatedAt); err != nil {
		return nil, nil
	}
	return &s, nil
}

// ListDocuments returns the indexed documents, optionally filtered by type
// and status, ordered by path.
func (db *DB) ListDocuments(typ, status string) ([]models.DocSummary, error) {
	query := `SELECT path, id, type, title, status, errors, warnings, updated_at FROM documents`
	var args []any
	var where []string
	if typ != "" {
		where = append(where, `type = ?`)
		args = append(args, typ)
	}
	if status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.DocSummary
	for rows.Next() {
		var s models.DocSummary
		if err := rows.Scan(&s.Path, &s.ID, &s.Type, &s.Title, &s.Status, &s.Errors, &s.Warnings, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Diagnostics returns the cached diagnostics of one document.
func (db *DB) Diagnostics(path string) ([]validate.Diagnostic, error) {
	rows, err := db.conn.Query(`
		SELECT severity, code, location, message, hint
		FROM diagnostics WHERE path = ? ORDER BY rowid`, path)
	if err != nil {
		return nil, fmt.Errorf("index: diagnostics: %w", err)
	}
	defer rows.Close()

	var out []validate.Diagnostic
	for rows.Next() {
		var d validate.Diagnostic
		var sev string
		if err := rows.Scan(&sev, &d.Code, &d.Location, &d.Message, &d.Hint); err != nil {
			return nil, err
		}
		d.Severity = validate.Severity(sev)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Backlinks returns every link whose target is the given document ID.
func (db *DB) Backlinks(targetID string) ([]models.Link, error) {
	rows, err := db.conn.Query(`SELECT source, target, relation FROM links WHERE target = ? ORDER BY source`, targetID)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.Source, &l.Target, &l.Relation); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns the checksum of every indexed document keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
