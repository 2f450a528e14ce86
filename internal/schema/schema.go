// Package schema parses the declarative corpus schema: document types with
// their fields, sections, and conditional rules, plus relations and
// reference formats.
package schema

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/starford/raido/internal/apperr"
)

// Cardinality of a relation field.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// FieldKind enumerates the declarable field types.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindNumber     FieldKind = "number"
	KindBool       FieldKind = "bool"
	KindEnum       FieldKind = "enum"
	KindStringList FieldKind = "string[]"
	KindRef        FieldKind = "ref"
	KindRefList    FieldKind = "ref[]"
	KindUser       FieldKind = "user"
	KindUserList   FieldKind = "user[]"
)

// FieldType is a field's declared type, with allowed values for enums.
type FieldType struct {
	Kind       FieldKind
	EnumValues []string
}

func (t FieldType) String() string {
	if t.Kind == KindEnum {
		return fmt.Sprintf("enum(%s)", strings.Join(t.EnumValues, ", "))
	}
	return string(t.Kind)
}

// IsList reports whether values of this type are sequences.
func (t FieldType) IsList() bool {
	switch t.Kind {
	case KindStringList, KindRefList, KindUserList:
		return true
	}
	return false
}

// FieldDef declares one frontmatter field of a type.
type FieldDef struct {
	Name        string
	Type        FieldType
	Required    bool
	Pattern     string
	Default     string
	Description string
}

// ColumnDef declares one column of a required table.
type ColumnDef struct {
	Name     string
	Type     string // string, number, or user
	Required bool
}

// TableDef constrains a table inside a section.
type TableDef struct {
	Required    bool
	Description string
	Columns     []ColumnDef
}

// ContentDef constrains prose inside a section.
type ContentDef struct {
	MinParagraphs int
}

// ListDef constrains a list inside a section.
type ListDef struct {
	Required bool
	MinItems int
}

// DiagramDef constrains a fenced diagram inside a section.
type DiagramDef struct {
	Required bool
	Lang     string
}

// SectionDef declares one body section, possibly nested.
type SectionDef struct {
	Name        string
	Required    bool
	Description string
	Children    []*SectionDef
	Table       *TableDef
	Content     *ContentDef
	List        *ListDef
	Diagram     *DiagramDef
}

// ConditionalRule makes fields required when a trigger field has a value.
type ConditionalRule struct {
	Name         string
	WhenField    string
	Equals       string
	ThenRequired []string
}

// RelationDef declares a named directed relation between documents.
type RelationDef struct {
	Name        string
	Inverse     string
	Cardinality Cardinality
	Description string
	Acyclic     bool
}

// RefFormat is a named regex that well-formed refs must match.
type RefFormat struct {
	Name    string
	Pattern string
}

// TypeDef declares one document type.
type TypeDef struct {
	Name        string
	Description string
	Folder      string
	MaxCount    int // 0 means unlimited
	Fields      []*FieldDef
	Sections    []*SectionDef
	Rules       []*ConditionalRule
}

// Schema is the closed set of type, relation, and ref-format declarations.
type Schema struct {
	Types      []*TypeDef
	Relations  []*RelationDef
	RefFormats []RefFormat
}

// FromFile parses a schema file.
func FromFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// GetType returns the TypeDef with the given name.
func (s *Schema) GetType(name string) *TypeDef {
	for _, t := range s.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TypeNames returns all declared type names in order.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for _, t := range s.Types {
		names = append(names, t.Name)
	}
	return names
}

// GetField returns a type's field by name.
func (t *TypeDef) GetField(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AllRelationFieldNames returns every forward relation name and every
// defined inverse.
func (s *Schema) AllRelationFieldNames() []string {
	var out []string
	for _, r := range s.Relations {
		out = append(out, r.Name)
		if r.Inverse != "" {
			out = append(out, r.Inverse)
		}
	}
	return out
}

// FindRelation resolves a field name against forward and inverse relation
// names. isInverse reports that the name matched the inverse side.
func (s *Schema) FindRelation(name string) (rel *RelationDef, isInverse, ok bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, false, true
		}
		if r.Inverse != "" && r.Inverse == name {
			return r, true, true
		}
	}
	return nil, false, false
}

// RelationCardinality returns the cardinality a field name carries. Inverse
// names share the forward declaration's cardinality.
func (s *Schema) RelationCardinality(name string) (Cardinality, bool) {
	r, _, ok := s.FindRelation(name)
	if !ok {
		return "", false
	}
	return r.Cardinality, true
}

// ResolveDefault expands the $TODAY and $NOW default placeholders.
func ResolveDefault(def string) string {
	switch def {
	case "$TODAY":
		return time.Now().Format("2006-01-02")
	case "$NOW":
		return time.Now().Format(time.RFC3339)
	}
	return def
}
