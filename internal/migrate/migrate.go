// Package migrate diffs two schema revisions and rolls the resulting plan
// over a document directory.
package migrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/schema"
)

// FieldChange describes how one field definition changed between schema
// revisions.
type FieldChange struct {
	Name              string   `json:"name"`
	OldType           string   `json:"old_type,omitempty"`
	NewType           string   `json:"new_type,omitempty"`
	RequiredChanged   bool     `json:"required_changed,omitempty"`
	NowRequired       bool     `json:"now_required,omitempty"`
	DefaultChanged    bool     `json:"default_changed,omitempty"`
	OldDefault        string   `json:"old_default,omitempty"`
	NewDefault        string   `json:"new_default,omitempty"`
	AddedEnumValues   []string `json:"added_enum_values,omitempty"`
	RemovedEnumValues []string `json:"removed_enum_values,omitempty"`
}

// TypeChange collects the per-type differences between schema revisions.
type TypeChange struct {
	Name            string        `json:"name"`
	AddedFields     []string      `json:"added_fields,omitempty"`
	RemovedFields   []string      `json:"removed_fields,omitempty"`
	ChangedFields   []FieldChange `json:"changed_fields,omitempty"`
	AddedSections   []string      `json:"added_sections,omitempty"`
	RemovedSections []string      `json:"removed_sections,omitempty"`
}

// SchemaDiff is the full comparison of two schema revisions.
type SchemaDiff struct {
	AddedTypes   []string     `json:"added_types,omitempty"`
	RemovedTypes []string     `json:"removed_types,omitempty"`
	ChangedTypes []TypeChange `json:"changed_types,omitempty"`
}

// IsEmpty reports whether the schemas are equivalent.
func (d *SchemaDiff) IsEmpty() bool {
	return len(d.AddedTypes) == 0 && len(d.RemovedTypes) == 0 && len(d.ChangedTypes) == 0
}

// DiffSchemas compares old against new.
func DiffSchemas(oldS, newS *schema.Schema) *SchemaDiff {
	d := &SchemaDiff{}

	oldTypes := make(map[string]*schema.TypeDef)
	for _, t := range oldS.Types {
		oldTypes[t.Name] = t
	}
	newTypes := make(map[string]*schema.TypeDef)
	for _, t := range newS.Types {
		newTypes[t.Name] = t
	}

	for _, t := range newS.Types {
		if _, ok := oldTypes[t.Name]; !ok {
			d.AddedTypes = append(d.AddedTypes, t.Name)
		}
	}
	for _, t := range oldS.Types {
		if _, ok := newTypes[t.Name]; !ok {
			d.RemovedTypes = append(d.RemovedTypes, t.Name)
		}
	}
	sort.Strings(d.AddedTypes)
	sort.Strings(d.RemovedTypes)

	var common []string
	for name := range oldTypes {
		if _, ok := newTypes[name]; ok {
			common = append(common, name)
		}
	}
	sort.Strings(common)
	for _, name := range common {
		tc := diffType(oldTypes[name], newTypes[name])
		if tc != nil {
			d.ChangedTypes = append(d.ChangedTypes, *tc)
		}
	}
	return d
}

func diffType(oldT, newT *schema.TypeDef) *TypeChange {
	tc := &TypeChange{Name: oldT.Name}

	for _, f := range newT.Fields {
		if oldT.GetField(f.Name) == nil {
			tc.AddedFields = append(tc.AddedFields, f.Name)
		}
	}
	for _, f := range oldT.Fields {
		newF := newT.GetField(f.Name)
		if newF == nil {
			tc.RemovedFields = append(tc.RemovedFields, f.Name)
			continue
		}
		if fc := diffField(f, newF); fc != nil {
			tc.ChangedFields = append(tc.ChangedFields, *fc)
		}
	}
	sort.Strings(tc.AddedFields)
	sort.Strings(tc.RemovedFields)

	oldSecs := sectionNameSet(oldT.Sections)
	newSecs := sectionNameSet(newT.Sections)
	for name := range newSecs {
		if _, ok := oldSecs[name]; !ok {
			tc.AddedSections = append(tc.AddedSections, name)
		}
	}
	for name := range oldSecs {
		if _, ok := newSecs[name]; !ok {
			tc.RemovedSections = append(tc.RemovedSections, name)
		}
	}
	sort.Strings(tc.AddedSections)
	sort.Strings(tc.RemovedSections)

	if len(tc.AddedFields) == 0 && len(tc.RemovedFields) == 0 && len(tc.ChangedFields) == 0 &&
		len(tc.AddedSections) == 0 && len(tc.RemovedSections) == 0 {
		return nil
	}
	return tc
}

func diffField(oldF, newF *schema.FieldDef) *FieldChange {
	fc := &FieldChange{Name: oldF.Name}
	changed := false

	if oldF.Type.Kind != newF.Type.Kind {
		fc.OldType = oldF.Type.String()
		fc.NewType = newF.Type.String()
		changed = true
	}
	if oldF.Required != newF.Required {
		fc.RequiredChanged = true
		fc.NowRequired = newF.Required
		changed = true
	}
	if oldF.Default != newF.Default {
		fc.DefaultChanged = true
		fc.OldDefault = oldF.Default
		fc.NewDefault = newF.Default
		changed = true
	}
	if oldF.Type.Kind == schema.KindEnum && newF.Type.Kind == schema.KindEnum {
		oldVals := stringSet(oldF.Type.EnumValues)
		newVals := stringSet(newF.Type.EnumValues)
		for _, v := range newF.Type.EnumValues {
			if _, ok := oldVals[v]; !ok {
				fc.AddedEnumValues = append(fc.AddedEnumValues, v)
				changed = true
			}
		}
		for _, v := range oldF.Type.EnumValues {
			if _, ok := newVals[v]; !ok {
				fc.RemovedEnumValues = append(fc.RemovedEnumValues, v)
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return fc
}

// sectionNameSet flattens a section tree into its set of names.
func sectionNameSet(secs []*schema.SectionDef) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func([]*schema.SectionDef)
	walk = func(list []*schema.SectionDef) {
		for _, s := range list {
			out[s.Name] = struct{}{}
			walk(s.Children)
		}
	}
	walk(secs)
	return out
}

func stringSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, v := range list {
		out[v] = struct{}{}
	}
	return out
}

// Format renders the schema diff for humans.
func (d *SchemaDiff) Format() string {
	if d.IsEmpty() {
		return "Schemas are identical.\n"
	}
	var sb strings.Builder
	for _, t := range d.AddedTypes {
		fmt.Fprintf(&sb, "+ type %s\n", t)
	}
	for _, t := range d.RemovedTypes {
		fmt.Fprintf(&sb, "- type %s\n", t)
	}
	for _, tc := range d.ChangedTypes {
		fmt.Fprintf(&sb, "~ type %s\n", tc.Name)
		for _, f := range tc.AddedFields {
			fmt.Fprintf(&sb, "    + field %s\n", f)
		}
		for _, f := range tc.RemovedFields {
			fmt.Fprintf(&sb, "    - field %s\n", f)
		}
		for _, fc := range tc.ChangedFields {
			fmt.Fprintf(&sb, "    ~ field %s", fc.Name)
			var parts []string
			if fc.OldType != "" {
				parts = append(parts, fmt.Sprintf("type %s -> %s", fc.OldType, fc.NewType))
			}
			if fc.RequiredChanged {
				parts = append(parts, fmt.Sprintf("required=%v", fc.NowRequired))
			}
			if fc.DefaultChanged {
				parts = append(parts, fmt.Sprintf("default %q -> %q", fc.OldDefault, fc.NewDefault))
			}
			if len(fc.AddedEnumValues) > 0 {
				parts = append(parts, "enum +"+strings.Join(fc.AddedEnumValues, ",+"))
			}
			if len(fc.RemovedEnumValues) > 0 {
				parts = append(parts, "enum -"+strings.Join(fc.RemovedEnumValues, ",-"))
			}
			fmt.Fprintf(&sb, " (%s)\n", strings.Join(parts, ", "))
		}
		for _, s := range tc.AddedSections {
			fmt.Fprintf(&sb, "    + section %s\n", s)
		}
		for _, s := range tc.RemovedSections {
			fmt.Fprintf(&sb, "    - section %s\n", s)
		}
	}
	return sb.String()
}
