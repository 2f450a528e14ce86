package migrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/schema"
)

// ActionKind enumerates migration actions.
type ActionKind int

const (
	// AddField sets a missing field to the new schema default.
	AddField ActionKind = iota
	// RemoveField deletes a field dropped from the schema.
	RemoveField
	// RemovedEnumValue flags a value the new schema no longer allows. It is
	// reported, never auto-fixed.
	RemovedEnumValue
	// AddSection appends an empty scaffold for a section the new schema
	// introduced.
	AddSection
)

func (k ActionKind) String() string {
	switch k {
	case AddField:
		return "add-field"
	case RemoveField:
		return "remove-field"
	case RemovedEnumValue:
		return "removed-enum-value"
	case AddSection:
		return "add-section"
	}
	return "unknown"
}

// Action is one planned migration step on one document.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Path    string     `json:"path"`
	Field   string     `json:"field,omitempty"`
	Value   string     `json:"value,omitempty"`
	Section string     `json:"section,omitempty"`
}

// Plan is the ordered list of actions a schema diff implies for a
// directory.
type Plan struct {
	Actions []Action `json:"actions"`
}

// IsEmpty reports whether nothing needs migrating.
func (p *Plan) IsEmpty() bool { return len(p.Actions) == 0 }

// BuildPlan walks the directory and schedules the actions the diff implies
// for every affected document.
func BuildPlan(diff *SchemaDiff, newS *schema.Schema, dir string) (*Plan, error) {
	plan := &Plan{}
	for _, tc := range diff.ChangedTypes {
		paths, err := discovery.DiscoverFiles(dir, discovery.Options{
			Filters: []discovery.Filter{{Kind: discovery.FieldEquals, Field: "type", Value: tc.Name}},
		})
		if err != nil {
			return nil, err
		}
		newT := newS.GetType(tc.Name)
		for _, p := range paths {
			doc, err := document.FromFile(p)
			if err != nil {
				continue
			}
			plan.Actions = append(plan.Actions, planForDocument(doc, tc, newT)...)
		}
	}
	sort.SliceStable(plan.Actions, func(i, j int) bool {
		if plan.Actions[i].Path != plan.Actions[j].Path {
			return plan.Actions[i].Path < plan.Actions[j].Path
		}
		return plan.Actions[i].Kind < plan.Actions[j].Kind
	})
	return plan, nil
}

func planForDocument(doc *document.Document, tc TypeChange, newT *schema.TypeDef) []Action {
	var out []Action
	for _, name := range tc.AddedFields {
		fd := newT.GetField(name)
		if fd == nil || fd.Default == "" {
			continue
		}
		if doc.FM.Has(name) {
			continue
		}
		out = append(out, Action{Kind: AddField, Path: doc.Path, Field: name, Value: fd.Default})
	}
	for _, name := range tc.RemovedFields {
		if doc.FM.Has(name) {
			out = append(out, Action{Kind: RemoveField, Path: doc.Path, Field: name})
		}
	}
	for _, fc := range tc.ChangedFields {
		if len(fc.RemovedEnumValues) == 0 {
			continue
		}
		current, ok := doc.FM.Get(fc.Name)
		if !ok {
			continue
		}
		display := frontmatter.Display(current)
		for _, removed := range fc.RemovedEnumValues {
			if display == removed {
				out = append(out, Action{Kind: RemovedEnumValue, Path: doc.Path, Field: fc.Name, Value: removed})
			}
		}
	}
	for _, name := range tc.AddedSections {
		if _, err := doc.GetSection(name); err == nil {
			continue
		}
		out = append(out, Action{Kind: AddSection, Path: doc.Path, Section: name})
	}
	return out
}

// ApplyResult reports what a migration run touched.
type ApplyResult struct {
	Modified []string `json:"modified"`
	Warnings []string `json:"warnings"`
}

// Apply executes a plan, grouping actions per document so each file is
// written once. Removed enum values only produce warnings.
func Apply(plan *Plan) (*ApplyResult, error) {
	byPath := make(map[string][]Action)
	var paths []string
	for _, a := range plan.Actions {
		if _, ok := byPath[a.Path]; !ok {
			paths = append(paths, a.Path)
		}
		byPath[a.Path] = append(byPath[a.Path], a)
	}
	sort.Strings(paths)

	result := &ApplyResult{}
	for _, p := range paths {
		doc, err := document.FromFile(p)
		if err != nil {
			return nil, err
		}
		dirty := false
		for _, a := range byPath[p] {
			switch a.Kind {
			case AddField:
				doc.SetFieldFromString(a.Field, schema.ResolveDefault(a.Value))
				dirty = true
			case RemoveField:
				doc.RemoveField(a.Field)
				dirty = true
			case RemovedEnumValue:
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"%s: field %q has value %q which the new schema no longer allows", p, a.Field, a.Value))
			case AddSection:
				doc.AppendSection(2, a.Section, "<!-- TODO: fill in -->")
				dirty = true
			}
		}
		if !dirty {
			continue
		}
		if err := doc.Save(); err != nil {
			return nil, err
		}
		result.Modified = append(result.Modified, p)
	}
	return result, nil
}

// Format renders the plan for review before applying.
func (p *Plan) Format() string {
	if p.IsEmpty() {
		return "Nothing to migrate.\n"
	}
	var sb strings.Builder
	for _, a := range p.Actions {
		switch a.Kind {
		case AddField:
			fmt.Fprintf(&sb, "%s: add field %s = %s\n", a.Path, a.Field, a.Value)
		case RemoveField:
			fmt.Fprintf(&sb, "%s: remove field %s\n", a.Path, a.Field)
		case RemovedEnumValue:
			fmt.Fprintf(&sb, "%s: field %s has removed enum value %q (manual fix needed)\n", a.Path, a.Field, a.Value)
		case AddSection:
			fmt.Fprintf(&sb, "%s: add section %q\n", a.Path, a.Section)
		}
	}
	return sb.String()
}
