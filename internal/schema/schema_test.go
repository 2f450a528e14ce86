package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/raido/internal/apperr"
)

const sampleSchema = `
// Architecture decision records.
type "adr" description="Architecture decision" folder="decisions" max_count=500 {
    field "title" type="string" required=#true
    field "status" type="enum" required=#true {
        values "proposed" "accepted" "rejected" "deprecated"
    }
    field "author" type="user" required=#true
    field "reviewers" type="user[]"
    field "date" type="string" pattern="^\\d{4}-\\d{2}-\\d{2}$" default="$TODAY"
    field "supersedes" type="ref"
    field "tags" type="string[]"
    section "Decision" required=#true {
        content min-paragraphs=1
    }
    section "Consequences" required=#true {
        section "Positive" required=#true
        section "Negative" {
            list min-items=1
        }
    }
    section "Rollout" {
        diagram type="mermaid"
        table required=#true {
            column "Step" type="string" required=#true
            column "Owner" type="user" required=#true
        }
    }
    rule "accepted-needs-date" {
        when "status" equals="accepted"
        then-required "date" "author"
    }
}

relation "supersedes" inverse="superseded_by" cardinality="one" acyclic=#true
relation "enables" inverse="enabled_by"
relation "related"

ref-format {
    adr pattern="^ADR-\\d{3}$"
    opp pattern="^OPP-\\d{3}$"
}
`

func mustParse(t *testing.T) *Schema {
	t.Helper()
	s, err := Parse(sampleSchema)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestParseType(t *testing.T) {
	s := mustParse(t)
	adr := s.GetType("adr")
	if adr == nil {
		t.Fatal("type adr not found")
	}
	if adr.Description != "Architecture decision" || adr.Folder != "decisions" || adr.MaxCount != 500 {
		t.Errorf("type attrs = %+v", adr)
	}
	if len(adr.Fields) != 7 {
		t.Fatalf("fields = %d, want 7", len(adr.Fields))
	}
	title := adr.GetField("title")
	if title == nil || !title.Required || title.Type.Kind != KindString {
		t.Errorf("title = %+v", title)
	}
	status := adr.GetField("status")
	want := []string{"proposed", "accepted", "rejected", "deprecated"}
	if status.Type.Kind != KindEnum || !reflect.DeepEqual(status.Type.EnumValues, want) {
		t.Errorf("status = %+v", status.Type)
	}
	date := adr.GetField("date")
	if date.Pattern != `^\d{4}-\d{2}-\d{2}$` || date.Default != "$TODAY" {
		t.Errorf("date = %+v", date)
	}
	if adr.GetField("reviewers").Type.Kind != KindUserList {
		t.Error("reviewers should be user[]")
	}
}

func TestParseSections(t *testing.T) {
	s := mustParse(t)
	adr := s.GetType("adr")
	if len(adr.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(adr.Sections))
	}
	decision := adr.Sections[0]
	if !decision.Required || decision.Content == nil || decision.Content.MinParagraphs != 1 {
		t.Errorf("decision = %+v", decision)
	}
	consequences := adr.Sections[1]
	if len(consequences.Children) != 2 {
		t.Fatalf("children = %d", len(consequences.Children))
	}
	negative := consequences.Children[1]
	if negative.List == nil || negative.List.MinItems != 1 {
		t.Errorf("negative = %+v", negative)
	}
	rollout := adr.Sections[2]
	if rollout.Diagram == nil || rollout.Diagram.Lang != "mermaid" {
		t.Errorf("diagram = %+v", rollout.Diagram)
	}
	if rollout.Table == nil || len(rollout.Table.Columns) != 2 || rollout.Table.Columns[1].Type != "user" {
		t.Errorf("table = %+v", rollout.Table)
	}
}

func TestParseRules(t *testing.T) {
	s := mustParse(t)
	rules := s.GetType("adr").Rules
	if len(rules) != 1 {
		t.Fatalf("rules = %d", len(rules))
	}
	r := rules[0]
	if r.WhenField != "status" || r.Equals != "accepted" {
		t.Errorf("rule trigger = %+v", r)
	}
	if !reflect.DeepEqual(r.ThenRequired, []string{"date", "author"}) {
		t.Errorf("then-required = %v", r.ThenRequired)
	}
}

func TestParseRelations(t *testing.T) {
	s := mustParse(t)
	if len(s.Relations) != 3 {
		t.Fatalf("relations = %d", len(s.Relations))
	}
	sup := s.Relations[0]
	if sup.Inverse != "superseded_by" || sup.Cardinality != One || !sup.Acyclic {
		t.Errorf("supersedes = %+v", sup)
	}
	if s.Relations[1].Cardinality != Many {
		t.Error("cardinality should default to many")
	}

	names := s.AllRelationFieldNames()
	want := []string{"supersedes", "superseded_by", "enables", "enabled_by", "related"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("relation field names = %v", names)
	}

	rel, isInverse, ok := s.FindRelation("superseded_by")
	if !ok || !isInverse || rel.Name != "supersedes" {
		t.Errorf("FindRelation(superseded_by) = %+v %v %v", rel, isInverse, ok)
	}
	if card, ok := s.RelationCardinality("superseded_by"); !ok || card != One {
		t.Errorf("cardinality = %v %v", card, ok)
	}
	if _, _, ok := s.FindRelation("unknown"); ok {
		t.Error("unexpected relation match")
	}
}

func TestParseRefFormats(t *testing.T) {
	s := mustParse(t)
	if len(s.RefFormats) != 2 {
		t.Fatalf("ref formats = %d", len(s.RefFormats))
	}
	if s.RefFormats[0].Name != "adr" || s.RefFormats[0].Pattern != `^ADR-\d{3}$` {
		t.Errorf("format = %+v", s.RefFormats[0])
	}
}

func TestUnknownTopLevelNode(t *testing.T) {
	_, err := Parse(`widget "x"`)
	if !errors.Is(err, apperr.ErrSchemaParse) {
		t.Fatalf("err = %v, want ErrSchemaParse", err)
	}
	if !strings.Contains(err.Error(), "widget") {
		t.Errorf("error should name the node: %v", err)
	}
}

func TestEnumWithoutValues(t *testing.T) {
	_, err := Parse(`type "x" { field "status" type="enum" }`)
	if !errors.Is(err, apperr.ErrSchemaParse) {
		t.Fatalf("err = %v, want ErrSchemaParse", err)
	}
}

func TestInvalidCardinality(t *testing.T) {
	_, err := Parse(`relation "x" cardinality="both"`)
	if !errors.Is(err, apperr.ErrSchemaParse) {
		t.Fatalf("err = %v, want ErrSchemaParse", err)
	}
}

func TestSemicolonSeparatedNodes(t *testing.T) {
	s, err := Parse(`type "adr" { field "x" type="string"; section "S" }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	adr := s.GetType("adr")
	if len(adr.Fields) != 1 || len(adr.Sections) != 1 {
		t.Errorf("adr = %+v", adr)
	}
}

func TestMissingClosingBrace(t *testing.T) {
	_, err := Parse(`type "adr" { field "x" type="string"`)
	if !errors.Is(err, apperr.ErrSchemaParse) {
		t.Fatalf("err = %v, want ErrSchemaParse", err)
	}
}

func TestDuplicateConstraint(t *testing.T) {
	_, err := Parse(`type "x" { section "S" { content; content } }`)
	if !errors.Is(err, apperr.ErrSchemaParse) {
		t.Fatalf("err = %v, want ErrSchemaParse", err)
	}
}

func TestResolveDefault(t *testing.T) {
	if got := ResolveDefault("medium"); got != "medium" {
		t.Errorf("literal default = %q", got)
	}
	if got := ResolveDefault("$TODAY"); len(got) != 10 || strings.Count(got, "-") != 2 {
		t.Errorf("$TODAY = %q", got)
	}
	if got := ResolveDefault("$NOW"); !strings.Contains(got, "T") {
		t.Errorf("$NOW = %q", got)
	}
}
