package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/raido/internal/apperr"
)

const sample = `---
title: Use PostgreSQL
status: accepted
type: adr
---

# Decision

We will use PostgreSQL.

## Rationale

It is reliable.

# Consequences

| Risk | Owner |
|------|-------|
| Lock-in | @onni |

## Positive

Good things.
`

func mustParse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := FromString(raw)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	return doc
}

func TestFromString(t *testing.T) {
	doc := mustParse(t, sample)
	fm, err := doc.Frontmatter()
	if err != nil {
		t.Fatalf("Frontmatter: %v", err)
	}
	if got, _ := fm.GetDisplay("title"); got != "Use PostgreSQL" {
		t.Errorf("title = %q", got)
	}
	if strings.Contains(doc.Body, "---\ntitle") {
		t.Error("body should not contain the frontmatter block")
	}
}

func TestFromFileNotFound(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.md"))
	if !errors.Is(err, apperr.ErrFileNotFound) {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}

func TestNoFrontmatter(t *testing.T) {
	doc := mustParse(t, "# Heading\n\nBody only.\n")
	if _, err := doc.Frontmatter(); !errors.Is(err, apperr.ErrNoFrontmatter) {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
}

func TestSections(t *testing.T) {
	doc := mustParse(t, sample)
	sections := doc.Sections()
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Heading != "Decision" || sections[1].Heading != "Consequences" {
		t.Errorf("headings = %q, %q", sections[0].Heading, sections[1].Heading)
	}
	subs := sections[1].Subsections()
	if len(subs) != 1 || subs[0].Heading != "Positive" {
		t.Errorf("subsections = %+v", subs)
	}
}

func TestSectionsWithDeeperMinimumLevel(t *testing.T) {
	doc := mustParse(t, "## Alpha\n\ntext\n\n## Beta\n\nmore\n")
	sections := doc.Sections()
	if len(sections) != 2 || sections[0].Level != 2 {
		t.Errorf("sections = %+v", sections)
	}
}

func TestGetSectionByPath(t *testing.T) {
	doc := mustParse(t, sample)
	sec, err := doc.GetSectionByPath([]string{"consequences", "positive"})
	if err != nil {
		t.Fatalf("GetSectionByPath: %v", err)
	}
	if sec.Text() != "Good things." {
		t.Errorf("content = %q", sec.Text())
	}
	if _, err := doc.GetSectionByPath([]string{"Consequences", "Negative"}); !errors.Is(err, apperr.ErrSectionNotFound) {
		t.Errorf("err = %v, want ErrSectionNotFound", err)
	}
}

func TestSetFieldPreservesBody(t *testing.T) {
	doc := mustParse(t, sample)
	before := doc.Body
	doc.SetField("date", "2025-01-10")
	if doc.Body != before {
		t.Error("body must be byte-identical after a frontmatter edit")
	}
	reparsed := mustParse(t, doc.Raw)
	if got, _ := reparsed.FM.GetDisplay("date"); got != "2025-01-10" {
		t.Errorf("date = %q", got)
	}
	if reparsed.Body != before {
		t.Error("body must survive the raw round-trip")
	}
}

func TestSetFieldCreatesHeader(t *testing.T) {
	doc := mustParse(t, "# Only body\n")
	doc.SetField("type", "adr")
	if !strings.HasPrefix(doc.Raw, "---\ntype: adr\n---\n") {
		t.Errorf("raw = %q", doc.Raw)
	}
}

func TestRemoveField(t *testing.T) {
	doc := mustParse(t, sample)
	doc.RemoveField("status")
	reparsed := mustParse(t, doc.Raw)
	if reparsed.FM.Has("status") {
		t.Error("status should be removed")
	}
}

func TestReplaceSectionContentIdentity(t *testing.T) {
	doc := mustParse(t, sample)
	for _, s := range doc.Sections() {
		before := doc.Body
		if err := doc.ReplaceSectionContent(s.Heading, s.Content); err != nil {
			t.Fatalf("ReplaceSectionContent(%q): %v", s.Heading, err)
		}
		if doc.Body != before {
			t.Errorf("splice of %q with its own content changed the body", s.Heading)
		}
	}
}

func TestReplaceSectionContent(t *testing.T) {
	doc := mustParse(t, sample)
	if err := doc.ReplaceSectionContent("Rationale", "\nRewritten.\n"); err != nil {
		t.Fatalf("ReplaceSectionContent: %v", err)
	}
	if !strings.Contains(doc.Body, "## Rationale\n\nRewritten.\n") {
		t.Errorf("body = %q", doc.Body)
	}
	if !strings.Contains(doc.Body, "We will use PostgreSQL.") {
		t.Error("sibling content must be preserved")
	}
}

func TestAppendToSection(t *testing.T) {
	doc := mustParse(t, sample)
	if err := doc.AppendToSection("Positive", "Also cheaper."); err != nil {
		t.Fatalf("AppendToSection: %v", err)
	}
	if !strings.Contains(doc.Body, "Good things.\n\nAlso cheaper.\n") {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestAppendToEmptySection(t *testing.T) {
	doc := mustParse(t, "---\ntype: adr\ntitle: T\n---\n# T\n\n## Notes\n")
	if err := doc.AppendToSection("Notes", "First point."); err != nil {
		t.Fatalf("AppendToSection: %v", err)
	}
	// No blank line between the heading and the first appended content.
	if !strings.Contains(doc.Body, "## Notes\nFirst point.\n") {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestSetTableCell(t *testing.T) {
	doc := mustParse(t, sample)
	if err := doc.SetTableCell("Consequences", 0, "Owner", 0, "@liisa"); err != nil {
		t.Fatalf("SetTableCell: %v", err)
	}
	sec, err := doc.GetSection("Consequences")
	if err != nil {
		t.Fatal(err)
	}
	tables := sec.Tables()
	if len(tables) != 1 {
		t.Fatalf("tables = %d", len(tables))
	}
	got, err := tables[0].GetCell("Owner", 0)
	if err != nil || got != "@liisa" {
		t.Errorf("cell = %q, err = %v", got, err)
	}
}

func TestSetTableCellIdempotent(t *testing.T) {
	doc := mustParse(t, sample)
	sec, _ := doc.GetSection("Consequences")
	before := sec.Tables()[0]
	val, _ := before.GetCell("Risk", 0)
	if err := doc.SetTableCell("Consequences", 0, "Risk", 0, val); err != nil {
		t.Fatalf("SetTableCell: %v", err)
	}
	sec, _ = doc.GetSection("Consequences")
	after := sec.Tables()[0]
	if len(after.Rows) != len(before.Rows) {
		t.Fatalf("row count changed: %d != %d", len(after.Rows), len(before.Rows))
	}
	for i := range before.Rows {
		for j := range before.Rows[i] {
			if before.Rows[i][j] != after.Rows[i][j] {
				t.Errorf("cell (%d,%d) changed: %q != %q", i, j, before.Rows[i][j], after.Rows[i][j])
			}
		}
	}
}

func TestAddTableRowPadsAndTruncates(t *testing.T) {
	doc := mustParse(t, sample)
	if err := doc.AddTableRow("Consequences", 0, []string{"Cost", "@onni", "extra"}); err != nil {
		t.Fatalf("AddTableRow: %v", err)
	}
	if err := doc.AddTableRow("Consequences", 0, []string{"Complexity"}); err != nil {
		t.Fatalf("AddTableRow: %v", err)
	}
	sec, _ := doc.GetSection("Consequences")
	table := sec.Tables()[0]
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	if table.Rows[1][0] != "Cost" || len(table.Rows[1]) != 2 {
		t.Errorf("padded row = %v", table.Rows[1])
	}
	if table.Rows[2][0] != "Complexity" {
		t.Errorf("truncated row = %v", table.Rows[2])
	}
}

func TestMissingTable(t *testing.T) {
	doc := mustParse(t, sample)
	err := doc.SetTableCell("Decision", 0, "Risk", 0, "x")
	if !errors.Is(err, apperr.ErrTableNotFound) {
		t.Errorf("err = %v, want ErrTableNotFound", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adr-001.md")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	doc.SetField("status", "superseded")
	if err := doc.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := reloaded.FM.GetDisplay("status"); got != "superseded" {
		t.Errorf("status = %q", got)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	doc := mustParse(t, sample)
	if err := doc.Save(); !errors.Is(err, apperr.ErrNoPath) {
		t.Errorf("err = %v, want ErrNoPath", err)
	}
}

func TestToJSON(t *testing.T) {
	doc := mustParse(t, sample)
	out := doc.ToJSON()
	if _, ok := out["frontmatter"]; !ok {
		t.Error("missing frontmatter key")
	}
	sections, ok := out["sections"].([]map[string]any)
	if !ok || len(sections) != 2 {
		t.Errorf("sections = %#v", out["sections"])
	}
}
