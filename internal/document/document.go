// Package document models one Markdown file with typed frontmatter and
// structural access to sections, subsections, and tables. Structural edits
// splice byte ranges located through the AST, so everything outside the
// edited region is preserved byte for byte.
package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/mdast"
)

// Document represents one Markdown file.
type Document struct {
	// Path is the source file path, empty for in-memory documents.
	Path string
	// Raw is the full file text.
	Raw string
	// FM is the parsed frontmatter, nil when the file has none.
	FM *frontmatter.Frontmatter
	// Body is Raw minus the frontmatter block.
	Body string
}

// FromString parses a document from raw text. It fails only on malformed
// frontmatter.
func FromString(raw string) (*Document, error) {
	fm, body, err := frontmatter.TryParse(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Raw: raw, FM: fm, Body: body}, nil
}

// FromFile reads and parses a document from disk.
func FromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := FromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Frontmatter returns the parsed frontmatter or ErrNoFrontmatter.
func (d *Document) Frontmatter() (*frontmatter.Frontmatter, error) {
	if d.FM == nil {
		return nil, apperr.ErrNoFrontmatter
	}
	return d.FM, nil
}

// Sections returns the top-level sections of the body, where top level
// means the minimum heading level that occurs.
func (d *Document) Sections() []Section {
	return topLevelSections([]byte(d.Body))
}

// GetSection returns the section introduced by the heading with the given
// text (any level, case-insensitive).
func (d *Document) GetSection(heading string) (*Section, error) {
	src := []byte(d.Body)
	doc := mdast.Parse(src)
	h := mdast.FindHeadingByText(doc, src, heading)
	if h == nil {
		return nil, fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, heading)
	}
	start, end := mdast.SectionByteRange(doc, h, src)
	cStart, cEnd := mdast.SectionContentByteRange(doc, h, src)
	return &Section{
		Heading: strings.TrimSpace(mdast.CollectText(h, src)),
		Level:   h.Level,
		Raw:     string(src[start:end]),
		Content: string(src[cStart:cEnd]),
	}, nil
}

// GetSectionByPath walks a heading path: the first name is resolved among
// the top-level sections, each subsequent name among the current section's
// direct subsections, all case-insensitively.
func (d *Document) GetSectionByPath(path []string) (*Section, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", apperr.ErrSectionNotFound)
	}
	var current *Section
	for _, s := range d.Sections() {
		if strings.EqualFold(s.Heading, path[0]) {
			sec := s
			current = &sec
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, path[0])
	}
	for _, name := range path[1:] {
		found := false
		for _, sub := range current.Subsections() {
			if strings.EqualFold(sub.Heading, name) {
				sec := sub
				current = &sec
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, strings.Join(path, " > "))
		}
	}
	return current, nil
}

// ToJSON projects the document for serialization.
func (d *Document) ToJSON() map[string]any {
	out := make(map[string]any)
	if d.FM != nil {
		out["frontmatter"] = d.FM.Data()
	}
	if d.Path != "" {
		out["path"] = d.Path
	}
	sections := make([]map[string]any, 0)
	for _, s := range d.Sections() {
		sections = append(sections, map[string]any{
			"heading": s.Heading,
			"level":   s.Level,
			"content": s.Content,
		})
	}
	out["sections"] = sections
	out["body"] = d.Body
	return out
}

// rebuildRaw re-derives Raw from frontmatter and body after a mutation.
func (d *Document) rebuildRaw() {
	if d.FM == nil {
		d.Raw = d.Body
		return
	}
	d.Raw = "---\n" + d.FM.ToYAML() + "---\n" + d.Body
}

// SetField sets a top-level frontmatter key, creating the header if absent.
func (d *Document) SetField(key string, value any) {
	if d.FM == nil {
		d.FM = frontmatter.New()
	}
	d.FM.Set(key, value)
	d.rebuildRaw()
}

// SetFieldFromString coerces raw with frontmatter.ParseValue and sets it.
func (d *Document) SetFieldFromString(key, raw string) {
	if d.FM == nil {
		d.FM = frontmatter.New()
	}
	d.FM.SetFromString(key, raw)
	d.rebuildRaw()
}

// RemoveField deletes a top-level frontmatter key.
func (d *Document) RemoveField(key string) {
	if d.FM == nil {
		return
	}
	d.FM.Remove(key)
	d.rebuildRaw()
}

// contentRange locates the content byte range of the named section within
// the body.
func (d *Document) contentRange(heading string) (int, int, error) {
	src := []byte(d.Body)
	doc := mdast.Parse(src)
	h := mdast.FindHeadingByText(doc, src, heading)
	if h == nil {
		return 0, 0, fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, heading)
	}
	start, end := mdast.SectionContentByteRange(doc, h, src)
	if start < 0 {
		return 0, 0, fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, heading)
	}
	return start, end, nil
}

// ReplaceSectionContent replaces the content of the named section, leaving
// the heading line and everything outside the section untouched.
func (d *Document) ReplaceSectionContent(heading, newContent string) error {
	start, end, err := d.contentRange(heading)
	if err != nil {
		return err
	}
	d.Body = d.Body[:start] + newContent + d.Body[end:]
	d.rebuildRaw()
	return nil
}

// AppendToSection appends text to the named section, with exactly one blank
// line before it when the section already has content, and a terminating
// newline.
func (d *Document) AppendToSection(heading, text string) error {
	start, end, err := d.contentRange(heading)
	if err != nil {
		return err
	}
	existing := d.Body[start:end]
	var updated string
	if strings.TrimSpace(existing) == "" {
		updated = text
	} else {
		updated = strings.TrimRight(existing, "\n") + "\n\n" + text
	}
	if !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	d.Body = d.Body[:start] + updated + d.Body[end:]
	d.rebuildRaw()
	return nil
}

// AppendSection appends a new section heading at the end of the body,
// separated by one blank line, followed by the given content.
func (d *Document) AppendSection(level int, heading, content string) {
	scaffold := strings.Repeat("#", level) + " " + heading + "\n"
	if content != "" {
		scaffold += "\n" + strings.TrimRight(content, "\n") + "\n"
	}
	body := strings.TrimRight(d.Body, "\n")
	if body == "" {
		d.Body = scaffold
	} else {
		d.Body = body + "\n\n" + scaffold
	}
	d.rebuildRaw()
}

// tableRange locates the byte range of the idx-th table inside a section,
// relative to the body, together with its parsed form.
func (d *Document) tableRange(heading string, idx int) (int, int, *Table, error) {
	cStart, cEnd, err := d.contentRange(heading)
	if err != nil {
		return 0, 0, nil, err
	}
	content := []byte(d.Body[cStart:cEnd])
	doc := mdast.Parse(content)
	tables := mdast.FindTables(doc)
	if idx < 0 || idx >= len(tables) {
		return 0, 0, nil, fmt.Errorf("%w: table %d in %q", apperr.ErrTableNotFound, idx, heading)
	}
	tStart, tEnd := mdast.TableByteRange(tables[idx], content)
	if tStart < 0 {
		return 0, 0, nil, fmt.Errorf("%w: table %d in %q", apperr.ErrTableNotFound, idx, heading)
	}
	header, rows := mdast.ParseTable(tables[idx], content)
	return cStart + tStart, cStart + tEnd, &Table{Header: header, Rows: rows}, nil
}

// SetTableCell mutates one cell of the idx-th table inside a section and
// re-renders the table into place.
func (d *Document) SetTableCell(heading string, idx int, column string, row int, value string) error {
	start, end, table, err := d.tableRange(heading, idx)
	if err != nil {
		return err
	}
	if err := table.SetCell(column, row, value); err != nil {
		return err
	}
	d.Body = d.Body[:start] + table.ToMarkdown() + d.Body[end:]
	d.rebuildRaw()
	return nil
}

// AddTableRow appends a row to the idx-th table inside a section,
// padding or truncating values to the header width.
func (d *Document) AddTableRow(heading string, idx int, values []string) error {
	start, end, table, err := d.tableRange(heading, idx)
	if err != nil {
		return err
	}
	table.AddRow(values)
	d.Body = d.Body[:start] + table.ToMarkdown() + d.Body[end:]
	d.rebuildRaw()
	return nil
}

// Save writes the document back to its source path.
func (d *Document) Save() error {
	if d.Path == "" {
		return apperr.ErrNoPath
	}
	return d.SaveTo(d.Path)
}

// SaveTo writes the document to the given path.
func (d *Document) SaveTo(path string) error {
	if err := os.WriteFile(path, []byte(d.Raw), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrWriteFailed, path, err)
	}
	return nil
}
