// Package docdiff compares two revisions of a document: frontmatter field
// changes and section-level body changes.
package docdiff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
)

// ChangeKind classifies one change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// FieldChange is one frontmatter difference. Old and New hold display
// strings; Old is empty for Added, New for Removed.
type FieldChange struct {
	Kind  ChangeKind `json:"kind"`
	Field string     `json:"field"`
	Old   string     `json:"old,omitempty"`
	New   string     `json:"new,omitempty"`
}

// SectionChange is one body difference, addressed by the dotted section
// path. Line counts are only set for Modified.
type SectionChange struct {
	Kind         ChangeKind `json:"kind"`
	Path         string     `json:"path"`
	LinesAdded   int        `json:"lines_added,omitempty"`
	LinesRemoved int        `json:"lines_removed,omitempty"`
}

// Diff is the full comparison of two document revisions.
type Diff struct {
	Fields   []FieldChange   `json:"fields"`
	Sections []SectionChange `json:"sections"`
}

// IsEmpty reports whether the revisions are equivalent.
func (d *Diff) IsEmpty() bool {
	return len(d.Fields) == 0 && len(d.Sections) == 0
}

// Compare diffs old against new.
func Compare(oldDoc, newDoc *document.Document) *Diff {
	d := &Diff{
		Fields:   compareFields(oldDoc, newDoc),
		Sections: compareSections(oldDoc, newDoc),
	}
	sort.Slice(d.Fields, func(i, j int) bool {
		if d.Fields[i].Kind != d.Fields[j].Kind {
			return d.Fields[i].Kind < d.Fields[j].Kind
		}
		return d.Fields[i].Field < d.Fields[j].Field
	})
	sort.Slice(d.Sections, func(i, j int) bool {
		if d.Sections[i].Kind != d.Sections[j].Kind {
			return d.Sections[i].Kind < d.Sections[j].Kind
		}
		return d.Sections[i].Path < d.Sections[j].Path
	})
	return d
}

func fieldValues(doc *document.Document) map[string]string {
	out := make(map[string]string)
	if doc.FM == nil {
		return out
	}
	for _, k := range doc.FM.Keys() {
		v, _ := doc.FM.Get(k)
		out[k] = frontmatter.Display(v)
	}
	return out
}

func compareFields(oldDoc, newDoc *document.Document) []FieldChange {
	oldVals := fieldValues(oldDoc)
	newVals := fieldValues(newDoc)

	keys := make(map[string]struct{})
	for k := range oldVals {
		keys[k] = struct{}{}
	}
	for k := range newVals {
		keys[k] = struct{}{}
	}

	var out []FieldChange
	for k := range keys {
		oldV, inOld := oldVals[k]
		newV, inNew := newVals[k]
		switch {
		case !inOld:
			out = append(out, FieldChange{Kind: Added, Field: k, New: newV})
		case !inNew:
			out = append(out, FieldChange{Kind: Removed, Field: k, Old: oldV})
		case oldV != newV:
			out = append(out, FieldChange{Kind: Modified, Field: k, Old: oldV, New: newV})
		}
	}
	return out
}

// flattenSections maps every dotted section path to its content, walking
// nested subsections depth first.
func flattenSections(doc *document.Document) map[string]string {
	out := make(map[string]string)
	var walk func(prefix string, secs []document.Section)
	walk = func(prefix string, secs []document.Section) {
		for _, s := range secs {
			path := s.Heading
			if prefix != "" {
				path = prefix + " > " + s.Heading
			}
			out[path] = s.Content
			walk(path, s.Subsections())
		}
	}
	walk("", doc.Sections())
	return out
}

func compareSections(oldDoc, newDoc *document.Document) []SectionChange {
	oldSecs := flattenSections(oldDoc)
	newSecs := flattenSections(newDoc)

	paths := make(map[string]struct{})
	for p := range oldSecs {
		paths[p] = struct{}{}
	}
	for p := range newSecs {
		paths[p] = struct{}{}
	}

	var out []SectionChange
	for p := range paths {
		oldC, inOld := oldSecs[p]
		newC, inNew := newSecs[p]
		switch {
		case !inOld:
			out = append(out, SectionChange{Kind: Added, Path: p})
		case !inNew:
			out = append(out, SectionChange{Kind: Removed, Path: p})
		case oldC != newC:
			added, removed := lineDelta(oldC, newC)
			out = append(out, SectionChange{Kind: Modified, Path: p, LinesAdded: added, LinesRemoved: removed})
		}
	}
	return out
}

// lineDelta counts the non-blank lines of each side that do not occur on
// the other side.
func lineDelta(oldC, newC string) (added, removed int) {
	oldLines := lineSet(oldC)
	newLines := lineSet(newC)
	for line, n := range newLines {
		if m := oldLines[line]; n > m {
			added += n - m
		}
	}
	for line, n := range oldLines {
		if m := newLines[line]; n > m {
			removed += n - m
		}
	}
	return added, removed
}

func lineSet(s string) map[string]int {
	out := make(map[string]int)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out[line]++
	}
	return out
}

// Format renders the diff for humans. An empty diff prints a single line.
func (d *Diff) Format() string {
	if d.IsEmpty() {
		return "No changes.\n"
	}
	var sb strings.Builder
	if len(d.Fields) > 0 {
		sb.WriteString("Fields:\n")
		for _, f := range d.Fields {
			switch f.Kind {
			case Added:
				fmt.Fprintf(&sb, "  + %s: %s\n", f.Field, f.New)
			case Modified:
				fmt.Fprintf(&sb, "  ~ %s: %s -> %s\n", f.Field, f.Old, f.New)
			case Removed:
				fmt.Fprintf(&sb, "  - %s: %s\n", f.Field, f.Old)
			}
		}
	}
	if len(d.Sections) > 0 {
		sb.WriteString("Sections:\n")
		for _, s := range d.Sections {
			switch s.Kind {
			case Added:
				fmt.Fprintf(&sb, "  + %s\n", s.Path)
			case Modified:
				fmt.Fprintf(&sb, "  ~ %s (+%d/-%d lines)\n", s.Path, s.LinesAdded, s.LinesRemoved)
			case Removed:
				fmt.Fprintf(&sb, "  - %s\n", s.Path)
			}
		}
	}
	return sb.String()
}
