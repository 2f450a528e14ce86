// Package relsync materializes missing inverse relation fields: when a
// document declares `A supersedes B`, the plan adds `superseded_by: A` to B.
package relsync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/schema"
)

// Action adds references to one inverse field of one target document.
type Action struct {
	TargetID    string             `json:"target_id"`
	TargetPath  string             `json:"target_path"`
	Field       string             `json:"field"`
	AddRefs     []string           `json:"add_refs"`
	Cardinality schema.Cardinality `json:"cardinality"`
}

// Plan is the set of inverse-field updates a corpus needs.
type Plan struct {
	Actions  []Action `json:"actions"`
	Warnings []string `json:"warnings"`
}

// IsEmpty reports whether the corpus is already in sync.
func (p *Plan) IsEmpty() bool { return len(p.Actions) == 0 }

// BuildPlan inspects every relation edge and schedules the inverse entries
// that are missing on the target side.
func BuildPlan(g *graph.Graph) (*Plan, error) {
	plan := &Plan{}
	type slot struct {
		targetID, field string
	}
	pending := make(map[slot]map[string]struct{})
	cards := make(map[slot]schema.Cardinality)
	paths := make(map[string]string)

	for _, e := range g.Edges() {
		if e.Relation == graph.InlineRelation {
			continue
		}
		rel, isInverse, ok := g.Schema.FindRelation(e.Relation)
		if !ok {
			continue
		}
		invField := rel.Inverse
		if isInverse {
			invField = rel.Name
		}
		if invField == "" {
			continue
		}
		target, ok := g.Node(e.To)
		if !ok {
			// Dangling references are the health check's problem.
			continue
		}
		if hasInverseEdge(g, e.To, invField, e.From) {
			continue
		}

		if rel.Cardinality == schema.One {
			set, err := inverseAlreadySet(target.Path, invField)
			if err != nil {
				return nil, err
			}
			if set {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"%s: %s has cardinality=one and is already set, not adding %s", e.To, invField, e.From))
				continue
			}
		}

		s := slot{targetID: e.To, field: invField}
		if pending[s] == nil {
			pending[s] = make(map[string]struct{})
		}
		pending[s][e.From] = struct{}{}
		cards[s] = rel.Cardinality
		paths[e.To] = target.Path
	}

	slots := make([]slot, 0, len(pending))
	for s := range pending {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].targetID != slots[j].targetID {
			return slots[i].targetID < slots[j].targetID
		}
		return slots[i].field < slots[j].field
	})
	for _, s := range slots {
		refs := make([]string, 0, len(pending[s]))
		for ref := range pending[s] {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		plan.Actions = append(plan.Actions, Action{
			TargetID:    s.targetID,
			TargetPath:  paths[s.targetID],
			Field:       s.field,
			AddRefs:     refs,
			Cardinality: cards[s],
		})
	}
	sort.Strings(plan.Warnings)
	return plan, nil
}

func hasInverseEdge(g *graph.Graph, from, field, to string) bool {
	for _, e := range g.RefsFrom(from) {
		if e.Relation == field && e.To == to {
			return true
		}
	}
	return false
}

func inverseAlreadySet(path, field string) (bool, error) {
	doc, err := document.FromFile(path)
	if err != nil {
		return false, err
	}
	if doc.FM == nil {
		return false, nil
	}
	return doc.FM.Has(field), nil
}

// Apply writes every planned inverse entry, merging with existing refs and
// deduplicating case-insensitively. Returns the modified paths.
func Apply(plan *Plan) ([]string, error) {
	byPath := make(map[string][]Action)
	var paths []string
	for _, a := range plan.Actions {
		if _, ok := byPath[a.TargetPath]; !ok {
			paths = append(paths, a.TargetPath)
		}
		byPath[a.TargetPath] = append(byPath[a.TargetPath], a)
	}
	sort.Strings(paths)

	var modified []string
	for _, p := range paths {
		doc, err := document.FromFile(p)
		if err != nil {
			return nil, err
		}
		for _, a := range byPath[p] {
			var current any
			if doc.FM != nil {
				current, _ = doc.FM.Get(a.Field)
			}
			merged, wasScalar := mergeRefs(current, a.AddRefs)
			if len(merged) == 1 && wasScalar {
				doc.SetField(a.Field, merged[0])
			} else {
				items := make([]any, len(merged))
				for i, r := range merged {
					items[i] = r
				}
				doc.SetField(a.Field, items)
			}
		}
		if err := doc.Save(); err != nil {
			return nil, err
		}
		modified = append(modified, p)
	}
	return modified, nil
}

// mergeRefs appends addRefs to the existing value, keeping existing entries
// first and skipping case-insensitive duplicates. wasScalar reports whether
// the prior value was absent or a single string, so a lone merged ref can
// stay a string.
func mergeRefs(current any, addRefs []string) (merged []string, wasScalar bool) {
	switch current.(type) {
	case nil, string:
		wasScalar = true
	}
	seen := make(map[string]struct{})
	for _, ref := range frontmatter.StringSlice(current) {
		key := strings.ToLower(ref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, ref)
	}
	for _, ref := range addRefs {
		key := strings.ToLower(ref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, ref)
	}
	return merged, wasScalar
}

// Format renders the plan for review.
func (p *Plan) Format() string {
	var sb strings.Builder
	if p.IsEmpty() {
		sb.WriteString("Corpus relations are in sync.\n")
	}
	for _, a := range p.Actions {
		fmt.Fprintf(&sb, "%s: add %s to %s\n", a.TargetID, strings.Join(a.AddRefs, ", "), a.Field)
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(&sb, "warning: %s\n", w)
	}
	return sb.String()
}
