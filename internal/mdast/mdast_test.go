package mdast

import (
	"reflect"
	"strings"
	"testing"
)

const body = `# Decision

We will use PostgreSQL.

## Rationale

It is reliable.

# Consequences

| Risk | Owner |
|------|-------|
| Lock-in | @onni |

## Positive

- cheaper
- faster

## Negative

Bad things.
`

func TestFindHeadings(t *testing.T) {
	doc := Parse([]byte(body))
	all := FindHeadings(doc, 0)
	if len(all) != 5 {
		t.Fatalf("got %d headings, want 5", len(all))
	}
	tops := FindHeadings(doc, 1)
	if len(tops) != 2 {
		t.Fatalf("got %d level-1 headings, want 2", len(tops))
	}
	if got := CollectText(tops[1], []byte(body)); got != "Consequences" {
		t.Errorf("second h1 = %q", got)
	}
}

func TestFindHeadingByTextCaseInsensitive(t *testing.T) {
	src := []byte(body)
	doc := Parse(src)
	h := FindHeadingByText(doc, src, "rationale")
	if h == nil {
		t.Fatal("heading not found")
	}
	if h.Level != 2 {
		t.Errorf("level = %d, want 2", h.Level)
	}
	if FindHeadingByText(doc, src, "nope") != nil {
		t.Error("unexpected match")
	}
}

func TestSectionByteRange(t *testing.T) {
	src := []byte(body)
	doc := Parse(src)
	h := FindHeadingByText(doc, src, "Decision")
	start, end := SectionByteRange(doc, h, src)
	if start != 0 {
		t.Errorf("start = %d, want 0", start)
	}
	section := string(src[start:end])
	if !strings.HasPrefix(section, "# Decision") {
		t.Errorf("section starts with %q", section[:20])
	}
	if !strings.Contains(section, "## Rationale") {
		t.Error("subsection should be inside the range")
	}
	if strings.Contains(section, "# Consequences") {
		t.Error("next sibling heading must end the range")
	}
}

func TestSectionContentByteRange(t *testing.T) {
	src := []byte(body)
	doc := Parse(src)
	h := FindHeadingByText(doc, src, "Negative")
	start, end := SectionContentByteRange(doc, h, src)
	if got := string(src[start:end]); got != "\nBad things.\n" {
		t.Errorf("content = %q", got)
	}
}

func TestLastSectionExtendsToEnd(t *testing.T) {
	src := []byte(body)
	doc := Parse(src)
	h := FindHeadingByText(doc, src, "Consequences")
	_, end := SectionByteRange(doc, h, src)
	if end != len(src) {
		t.Errorf("end = %d, want %d", end, len(src))
	}
}

func TestTables(t *testing.T) {
	src := []byte(body)
	doc := Parse(src)
	tables := FindTables(doc)
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	header, rows := ParseTable(tables[0], src)
	if !reflect.DeepEqual(header, []string{"Risk", "Owner"}) {
		t.Errorf("header = %v", header)
	}
	if len(rows) != 1 || rows[0][0] != "Lock-in" || rows[0][1] != "@onni" {
		t.Errorf("rows = %v", rows)
	}

	start, end := TableByteRange(tables[0], src)
	got := string(src[start:end])
	if !strings.HasPrefix(got, "| Risk") || !strings.HasSuffix(got, "| Lock-in | @onni |\n") {
		t.Errorf("table range = %q", got)
	}
}

func TestExtractLinks(t *testing.T) {
	src := []byte("See [ADR-1](adr-001.md) and [docs](https://example.com/x).\n")
	doc := Parse(src)
	links := ExtractLinks(doc)
	want := []string{"adr-001.md", "https://example.com/x"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestCountParagraphs(t *testing.T) {
	src := []byte("one\n\ntwo\n\nthree\n")
	if got := CountParagraphs(Parse(src)); got != 3 {
		t.Errorf("paragraphs = %d, want 3", got)
	}
}

func TestCountListItems(t *testing.T) {
	src := []byte("- a\n- b\n- c\n")
	count, has := CountListItems(Parse(src))
	if !has || count != 3 {
		t.Errorf("items = %d, hasList = %v", count, has)
	}
	_, has = CountListItems(Parse([]byte("no list here\n")))
	if has {
		t.Error("unexpected list")
	}
}

func TestFenceLanguages(t *testing.T) {
	src := []byte("```Mermaid\ngraph LR\n```\n\n```\nplain\n```\n")
	got := FenceLanguages(Parse(src), src)
	if !reflect.DeepEqual(got, []string{"mermaid", ""}) {
		t.Errorf("languages = %v", got)
	}
}
