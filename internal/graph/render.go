package graph

import (
	"fmt"
	"strings"
)

func retiredStatus(status string) bool {
	return status == "deprecated" || status == "superseded"
}

// view returns the nodes and edges to render. An empty typeFilter keeps
// everything; otherwise only nodes of that type survive, and edges only
// when both endpoints do.
func (g *Graph) view(typeFilter string) ([]*Node, []Edge) {
	if typeFilter == "" {
		return g.Nodes(), g.edges
	}
	keep := make(map[string]struct{})
	var nodes []*Node
	for _, n := range g.Nodes() {
		if n.Type == typeFilter {
			keep[n.ID] = struct{}{}
			nodes = append(nodes, n)
		}
	}
	var edges []Edge
	for _, e := range g.edges {
		if _, ok := keep[e.From]; !ok {
			continue
		}
		if _, ok := keep[e.To]; !ok {
			continue
		}
		edges = append(edges, e)
	}
	return nodes, edges
}

// ToMermaid renders the graph as a Mermaid flowchart, optionally restricted
// to one document type. Retired documents get the stadium shape so they
// stand out.
func (g *Graph) ToMermaid(typeFilter string) string {
	nodes, edges := g.view(typeFilter)
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for _, n := range nodes {
		label := mermaidEscape(n.Title)
		if retiredStatus(n.Status) {
			fmt.Fprintf(&sb, "    %s([\"%s\"])\n", n.ID, label)
		} else {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", n.ID, label)
		}
	}
	for _, e := range edges {
		if e.Relation == InlineRelation {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", e.From, e.To)
		} else {
			fmt.Fprintf(&sb, "    %s -->|%s| %s\n", e.From, e.Relation, e.To)
		}
	}
	return sb.String()
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

// ToDot renders the graph in Graphviz dot syntax, optionally restricted to
// one document type. Inline references are dashed, relation edges carry
// their field name as label.
func (g *Graph) ToDot(typeFilter string) string {
	nodes, edges := g.view(typeFilter)
	var sb strings.Builder
	sb.WriteString("digraph docs {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box];\n")
	for _, n := range nodes {
		attrs := fmt.Sprintf("label=%q", n.Title)
		if retiredStatus(n.Status) {
			attrs += ", style=dashed"
		}
		fmt.Fprintf(&sb, "    %q [%s];\n", n.ID, attrs)
	}
	for _, e := range edges {
		if e.Relation == InlineRelation {
			fmt.Fprintf(&sb, "    %q -> %q [style=dashed];\n", e.From, e.To)
		} else {
			fmt.Fprintf(&sb, "    %q -> %q [label=%q];\n", e.From, e.To, e.Relation)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
