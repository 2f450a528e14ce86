package graph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/starford/raido/internal/validate"
)

// Health inspects the whole graph and reports structural problems:
// dangling references, self references, cycles through acyclic relations,
// orphan documents, and disconnected clusters.
func (g *Graph) Health() []validate.Diagnostic {
	var diags []validate.Diagnostic
	diags = append(diags, g.checkDangling()...)
	diags = append(diags, g.checkSelfRefs()...)
	diags = append(diags, g.checkAcyclicRelations()...)
	diags = append(diags, g.checkOrphans()...)
	diags = append(diags, g.checkComponents()...)
	return diags
}

func (g *Graph) checkDangling() []validate.Diagnostic {
	var diags []validate.Diagnostic
	for _, e := range g.edges {
		if _, ok := g.nodes[e.To]; !ok {
			diags = append(diags, validate.Diagnostic{
				Severity: validate.SeverityError,
				Code:     "G030",
				Location: e.From,
				Message:  "reference to " + e.To + " which does not exist (via " + e.Relation + ")",
			})
		}
	}
	return diags
}

func (g *Graph) checkSelfRefs() []validate.Diagnostic {
	var diags []validate.Diagnostic
	for _, e := range g.edges {
		if e.From == e.To {
			diags = append(diags, validate.Diagnostic{
				Severity: validate.SeverityWarning,
				Code:     "G011",
				Location: e.From,
				Message:  "document references itself via " + e.Relation,
			})
		}
	}
	return diags
}

// checkAcyclicRelations runs cycle detection per acyclic relation, orienting
// inverse-field edges forward so both spellings feed one direction.
func (g *Graph) checkAcyclicRelations() []validate.Diagnostic {
	var diags []validate.Diagnostic
	for _, rel := range g.Schema.Relations {
		if !rel.Acyclic {
			continue
		}
		adj := make(map[string][]string)
		for _, e := range g.edges {
			if e.From == e.To {
				continue
			}
			switch e.Relation {
			case rel.Name:
				adj[e.From] = append(adj[e.From], e.To)
			case rel.Inverse:
				adj[e.To] = append(adj[e.To], e.From)
			}
		}
		for _, cycle := range findCycles(adj) {
			diags = append(diags, validate.Diagnostic{
				Severity: validate.SeverityError,
				Code:     "G010",
				Location: cycle[0],
				Message:  "cycle detected in acyclic relation: " + strings.Join(cycle, " -> "),
			})
		}
	}
	return diags
}

// findCycles is a DFS with a recursion stack. Each cycle is reported once,
// closed back onto its first node.
func findCycles(adj map[string][]string) [][]string {
	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, targets := range adj {
		sort.Strings(targets)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var cycles [][]string
	var stack []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range adj[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				for i, s := range stack {
					if s == next {
						cycle := append(append([]string{}, stack[i:]...), next)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

func (g *Graph) checkOrphans() []validate.Diagnostic {
	connected := make(map[string]struct{})
	for _, e := range g.edges {
		connected[e.From] = struct{}{}
		connected[e.To] = struct{}{}
	}
	var diags []validate.Diagnostic
	for _, n := range g.Nodes() {
		if _, ok := connected[n.ID]; !ok {
			diags = append(diags, validate.Diagnostic{
				Severity: validate.SeverityInfo,
				Code:     "G020",
				Location: n.ID,
				Message:  "document has no references in or out",
			})
		}
	}
	return diags
}

// checkComponents warns about weakly connected clusters detached from the
// largest one. Isolated nodes are left to the orphan check.
func (g *Graph) checkComponents() []validate.Diagnostic {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, e := range g.edges {
		for _, id := range []string{e.From, e.To} {
			if _, ok := parent[id]; !ok {
				parent[id] = id
			}
		}
		if _, ok := g.nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.nodes[e.To]; !ok {
			continue
		}
		union(e.From, e.To)
	}

	components := make(map[string][]string)
	for id := range parent {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		root := find(id)
		components[root] = append(components[root], id)
	}
	if len(components) <= 1 {
		return nil
	}

	groups := make([][]string, 0, len(components))
	for _, members := range components {
		sort.Strings(members)
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})

	var diags []validate.Diagnostic
	for _, members := range groups[1:] {
		sample := members
		suffix := ""
		if len(sample) > 3 {
			sample = sample[:3]
			suffix = ", ..."
		}
		diags = append(diags, validate.Diagnostic{
			Severity: validate.SeverityWarning,
			Code:     "G021",
			Location: members[0],
			Message: "disconnected cluster: " + strings.Join(sample, ", ") + suffix +
				" (" + strconv.Itoa(len(members)) + " nodes)",
		})
	}
	return diags
}
