package validate

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/users"
)

const testSchema = `
type "adr" description="Architecture decision" {
    field "title" type="string" required=#true
    field "status" type="enum" required=#true {
        values "proposed" "accepted" "rejected" "deprecated" "superseded"
    }
    field "author" type="user" required=#true description="decision owner"
    field "date" type="string" pattern="^\\d{4}-\\d{2}-\\d{2}$"
    field "priority" type="number"
    field "tags" type="string[]"
    field "supersedes" type="ref"
    section "Context"
    section "Decision" required=#true {
        content min-paragraphs=1
    }
    section "Consequences" required=#true {
        section "Positive" required=#true
        section "Negative" {
            list min-items=2
        }
    }
    section "Rollout" {
        diagram required=#true
        table required=#true {
            column "Step" type="string" required=#true
            column "Owner" type="user" required=#true
        }
    }
    rule "accepted-needs-date" {
        when "status" equals="accepted"
        then-required "date"
    }
}

type "memo" max_count=1 {
    field "title" type="string" required=#true
}

relation "supersedes" inverse="superseded_by" cardinality="one" acyclic=#true
relation "depends_on" inverse="required_by"

ref-format {
    adr pattern="^ADR-\\d{3}$"
}
`

const validADR = `---
type: adr
title: Use Postgres
status: accepted
author: "@onni"
date: "2026-08-25"
supersedes: ADR-001
---
# Use Postgres

## Context

Background on the storage question.

## Decision

We use Postgres for all relational data.

## Consequences

### Positive

It is mature and well understood.

### Negative

- Operational burden.
- Hosting cost.
`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	s, err := schema.Parse(testSchema)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	v := New(s)
	v.KnownIDs["ADR-001"] = struct{}{}
	return v
}

func mustDoc(t *testing.T, raw string) *document.Document {
	t.Helper()
	doc, err := document.FromString(raw)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	return doc
}

func codes(diags []Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func findCode(t *testing.T, diags []Diagnostic, code string) Diagnostic {
	t.Helper()
	for _, d := range diags {
		if d.Code == code {
			return d
		}
	}
	t.Fatalf("no %s diagnostic in %v", code, codes(diags))
	return Diagnostic{}
}

func TestValidDocumentIsClean(t *testing.T) {
	v := newValidator(t)
	diags := v.ValidateDocument(mustDoc(t, validADR))
	if len(diags) != 0 {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestNoFrontmatter(t *testing.T) {
	v := newValidator(t)
	diags := v.ValidateDocument(mustDoc(t, "# Just prose\n"))
	if len(diags) != 1 || diags[0].Code != "F000" {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestMissingType(t *testing.T) {
	v := newValidator(t)
	diags := v.ValidateDocument(mustDoc(t, "---\ntitle: X\n---\n"))
	if len(diags) != 1 || diags[0].Code != "F001" {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestUnknownType(t *testing.T) {
	v := newValidator(t)
	diags := v.ValidateDocument(mustDoc(t, "---\ntype: rfc\n---\n"))
	if len(diags) != 1 || diags[0].Code != "F002" {
		t.Fatalf("diagnostics = %v", diags)
	}
	if !strings.Contains(diags[0].Hint, "adr") || !strings.Contains(diags[0].Hint, "memo") {
		t.Errorf("hint = %q", diags[0].Hint)
	}
}

func TestMissingRequiredField(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "author: \"@onni\"\n", "", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "F010")
	if d.Location != "frontmatter.author" {
		t.Errorf("location = %q", d.Location)
	}
	if !strings.Contains(d.Hint, "user") || !strings.Contains(d.Hint, "decision owner") {
		t.Errorf("hint = %q", d.Hint)
	}
}

func TestEnumMismatch(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "status: accepted", "status: aceppted", 1)
	// The broken status also un-triggers the accepted rule, so date stays
	// unrequired and F021 is the only diagnostic.
	diags := v.ValidateDocument(mustDoc(t, raw))
	d := findCode(t, diags, "F021")
	if !strings.Contains(d.Message, "status") || !strings.Contains(d.Message, "aceppted") {
		t.Errorf("message = %q", d.Message)
	}
	if !strings.Contains(d.Hint, "allowed values:") || !strings.Contains(d.Hint, "proposed") {
		t.Errorf("hint = %q", d.Hint)
	}
}

func TestTypeMismatchAndListElements(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "date: \"2026-08-25\"",
		"priority: high\ntags: [db, 7]\ndate: \"2026-08-25\"", 1)
	diags := v.ValidateDocument(mustDoc(t, raw))
	if d := findCode(t, diags, "F020"); d.Location != "frontmatter.priority" {
		t.Errorf("location = %q", d.Location)
	}
	found := false
	for _, d := range diags {
		if d.Code == "F020" && d.Location == "frontmatter.tags[1]" {
			found = true
		}
	}
	if !found {
		t.Errorf("no indexed tags diagnostic in %v", diags)
	}
}

func TestPatternMismatch(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "date: \"2026-08-25\"", "date: \"25.08.2026\"", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "F030")
	if d.Location != "frontmatter.date" {
		t.Errorf("location = %q", d.Location)
	}
}

func TestConditionalRule(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "date: \"2026-08-25\"\n", "", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "F040")
	if !strings.Contains(d.Message, `field "date" required when status=accepted`) {
		t.Errorf("message = %q", d.Message)
	}
}

func TestUserRefChecks(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "author: \"@onni\"", "author: onni", 1)
	if d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "U010"); d.Location != "frontmatter.author" {
		t.Errorf("location = %q", d.Location)
	}

	dir, err := users.FromString("users:\n  liisa:\n    name: Liisa\nteams:\n  platform:\n    name: Platform\n")
	if err != nil {
		t.Fatal(err)
	}
	v.Users = dir
	d := findCode(t, v.ValidateDocument(mustDoc(t, validADR)), "U011")
	if !strings.Contains(d.Hint, "@liisa") || !strings.Contains(d.Hint, "@team/platform") {
		t.Errorf("hint = %q", d.Hint)
	}
}

func TestDanglingIDRefWarns(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "supersedes: ADR-001", "superseded_by: ADR-005", 1)
	diags := v.ValidateDocument(mustDoc(t, raw))
	d := findCode(t, diags, "R011")
	if d.Severity != SeverityWarning {
		t.Errorf("severity = %q", d.Severity)
	}
	if !strings.Contains(d.Message, "ADR-005") || d.Location != "frontmatter.superseded_by" {
		t.Errorf("diagnostic = %+v", d)
	}
}

func TestRefFormatMismatchWarns(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "supersedes: ADR-001", "supersedes: adr-1", 1)
	diags := v.ValidateDocument(mustDoc(t, raw))
	d := findCode(t, diags, "R001")
	if d.Severity != SeverityWarning {
		t.Errorf("severity = %q", d.Severity)
	}
	// A format miss suppresses the resolution check.
	for _, d := range diags {
		if d.Code == "R011" {
			t.Errorf("unexpected R011 after R001: %v", diags)
		}
	}
}

func TestBrokenFileRef(t *testing.T) {
	v := newValidator(t)
	v.Schema.RefFormats = nil
	raw := strings.Replace(validADR, "supersedes: ADR-001", "supersedes: gone/away.md", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "R010")
	if d.Severity != SeverityError {
		t.Errorf("severity = %q", d.Severity)
	}
}

func TestRelationFieldCardinality(t *testing.T) {
	v := newValidator(t)
	v.KnownIDs["ADR-002"] = struct{}{}

	// cardinality=one rejects a sequence.
	raw := strings.Replace(validADR, "supersedes: ADR-001", "supersedes: [ADR-001, ADR-002]", 1)
	findCode(t, v.ValidateDocument(mustDoc(t, raw)), "F020")

	// An undeclared relation key with cardinality=many accepts a bare string
	// and a sequence alike.
	raw = strings.Replace(validADR, "supersedes: ADR-001", "depends_on: ADR-001", 1)
	if diags := v.ValidateDocument(mustDoc(t, raw)); len(diags) != 0 {
		t.Errorf("bare string: %v", diags)
	}
	raw = strings.Replace(validADR, "supersedes: ADR-001", "depends_on: [ADR-001, ADR-009]", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "R011")
	if d.Location != "frontmatter.depends_on[1]" {
		t.Errorf("location = %q", d.Location)
	}
}

func TestMissingNestedSection(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "### Positive\n\nIt is mature and well understood.\n\n", "", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "S010")
	if !strings.Contains(d.Message, "Consequences > Positive") {
		t.Errorf("message = %q", d.Message)
	}
	if d.Location != `section "Consequences > Positive"` {
		t.Errorf("location = %q", d.Location)
	}
}

func TestContentAndListConstraints(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "We use Postgres for all relational data.\n\n", "", 1)
	findCode(t, v.ValidateDocument(mustDoc(t, raw)), "S030")

	raw = strings.Replace(validADR, "- Operational burden.\n- Hosting cost.\n", "- Operational burden.\n", 1)
	d := findCode(t, v.ValidateDocument(mustDoc(t, raw)), "S031")
	if !strings.Contains(d.Message, "1 item(s)") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestTableAndDiagramConstraints(t *testing.T) {
	v := newValidator(t)

	rollout := "\n## Rollout\n\n| Step | Owner |\n|---|---|\n| Migrate | @onni |\n| Verify |  |\n"
	raw := validADR + rollout
	diags := v.ValidateDocument(mustDoc(t, raw))
	findCode(t, diags, "S032") // no diagram fence
	d := findCode(t, diags, "S022")
	if !strings.Contains(d.Message, "row 1") {
		t.Errorf("message = %q", d.Message)
	}

	raw = validADR + "\n## Rollout\n\n```mermaid\ngraph LR\n```\n\n| Phase |\n|---|\n| One |\n"
	diags = v.ValidateDocument(mustDoc(t, raw))
	for _, d := range diags {
		if d.Code == "S032" {
			t.Errorf("diagram fence not recognized: %v", diags)
		}
	}
	d = findCode(t, diags, "S021")
	if !strings.Contains(d.Message, `"Step"`) {
		t.Errorf("message = %q", d.Message)
	}

	raw = validADR + "\n## Rollout\n\n```mermaid\ngraph LR\n```\n"
	findCode(t, v.ValidateDocument(mustDoc(t, raw)), "S020")
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("adr-001.md", validADR)
	write("memo-001.md", "---\ntype: memo\ntitle: First\n---\n# First\n")
	write("memo-002.md", "---\ntype: memo\ntitle: Second\n---\n# Second\n")
	write("broken.md", "---\ntitle: [unclosed\n---\n")

	v := newValidator(t)
	result, err := v.ValidateDirectory(dir)
	if err != nil {
		t.Fatalf("ValidateDirectory: %v", err)
	}
	if len(result.Files) != 4 {
		t.Fatalf("files = %d", len(result.Files))
	}

	byName := make(map[string]*FileResult)
	for i := range result.Files {
		f := &result.Files[i]
		byName[filepath.Base(f.Path)] = f
	}
	if !byName["adr-001.md"].IsOK() {
		t.Errorf("adr-001: %v", byName["adr-001.md"].Diagnostics)
	}
	findCode(t, byName["broken.md"].Diagnostics, "E000")
	// max_count=1 attaches T010 to every memo past the first, in sorted order.
	if !byName["memo-001.md"].IsOK() {
		t.Errorf("memo-001: %v", byName["memo-001.md"].Diagnostics)
	}
	d := findCode(t, byName["memo-002.md"].Diagnostics, "T010")
	if d.Location != "corpus" || !strings.Contains(d.Message, "max_count 1") {
		t.Errorf("diagnostic = %+v", d)
	}

	if !result.HasErrors() {
		t.Error("HasErrors should be true")
	}
	report := result.ToReport()
	if !strings.Contains(report, "error(s)") || !strings.Contains(report, "4 file(s)") {
		t.Errorf("report = %q", report)
	}
	compact := result.ToCompactReport()
	if !strings.Contains(compact, "T010:error:") {
		t.Errorf("compact = %q", compact)
	}
}

func TestValidateDirectoryResolvesSiblingFileRefs(t *testing.T) {
	dir := t.TempDir()
	target := strings.Replace(validADR, "supersedes: ADR-001\n", "", 1)
	if err := os.WriteFile(filepath.Join(dir, "adr-001.md"), []byte(target), 0o644); err != nil {
		t.Fatal(err)
	}
	referring := strings.Replace(validADR, "supersedes: ADR-001", "supersedes: adr-001.md", 1)
	if err := os.WriteFile(filepath.Join(dir, "adr-002.md"), []byte(referring), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := schema.Parse(testSchema)
	if err != nil {
		t.Fatal(err)
	}
	v := New(s)
	v.Schema.RefFormats = nil
	result, err := v.ValidateDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range result.Files {
		for _, d := range f.Diagnostics {
			if d.Code == "R010" || d.Code == "R011" {
				t.Errorf("%s: %+v", f.Path, d)
			}
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(validADR, "status: accepted", "status: aceppted", 1)
	raw = strings.Replace(raw, "date: \"2026-08-25\"", "date: \"bad\"", 1)
	first := v.ValidateDocument(mustDoc(t, raw))
	for i := 0; i < 5; i++ {
		again := v.ValidateDocument(mustDoc(t, raw))
		if !reflect.DeepEqual(codes(first), codes(again)) {
			t.Fatalf("order changed: %v vs %v", codes(first), codes(again))
		}
	}
}

func TestPathToID(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"docs/adr-001.md", "ADR-001"},
		{"docs/ADR_017-use-postgres.md", "ADR-017"},
		{"docs/readme.md", "README"},
		{"opp-123.md", "OPP-123"},
	}
	for _, tt := range tests {
		if got := PathToID(tt.path); got != tt.want {
			t.Errorf("PathToID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
