// Package graph builds the corpus relation graph: documents as nodes,
// relation fields and inline links as directed edges, with traversal,
// rendering, and health checks on top.
package graph

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/mdast"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/validate"
)

// InlineRelation marks edges created from links in the document body rather
// than from relation fields.
const InlineRelation = "inline_ref"

// idShape matches bare inline references such as ADR-001 or opp_17.
var idShape = regexp.MustCompile(`^[A-Za-z]+[-_]\d+$`)

// Node is one document in the graph, keyed by its upper-cased ID.
type Node struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Edge is one directed reference between documents. Relation is the field
// name that carried the reference, or InlineRelation for body links.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// TransitiveRef is one edge reached during a transitive walk.
type TransitiveRef struct {
	Depth int  `json:"depth"`
	Edge  Edge `json:"edge"`
}

// Graph holds the corpus nodes and edges plus the schema that shaped them.
type Graph struct {
	Schema *schema.Schema
	nodes  map[string]*Node
	edges  []Edge
}

// FromDirectory discovers the corpus under dir and builds its graph.
// Unreadable files are skipped; they surface through validation instead.
func FromDirectory(dir string, s *schema.Schema) (*Graph, error) {
	paths, err := discovery.DiscoverFiles(dir, discovery.Options{})
	if err != nil {
		return nil, err
	}

	g := &Graph{Schema: s, nodes: make(map[string]*Node)}
	docs := make(map[string]*document.Document)
	for _, p := range paths {
		doc, err := document.FromFile(p)
		if err != nil {
			continue
		}
		node := nodeFromDocument(p, doc)
		g.nodes[node.ID] = node
		docs[node.ID] = doc
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	relationFields := s.AllRelationFieldNames()
	for _, id := range ids {
		g.addRelationEdges(id, docs[id], relationFields)
	}
	for _, id := range ids {
		g.addInlineEdges(id, docs[id])
	}
	return g, nil
}

func nodeFromDocument(path string, doc *document.Document) *Node {
	node := &Node{ID: validate.PathToID(path), Path: path}
	if doc.FM != nil {
		node.Type, _ = doc.FM.GetDisplay("type")
		node.Title, _ = doc.FM.GetDisplay("title")
		node.Status, _ = doc.FM.GetDisplay("status")
	}
	if node.Title == "" {
		src := []byte(doc.Body)
		tree := mdast.Parse(src)
		if hs := mdast.FindHeadings(tree, 0); len(hs) > 0 {
			node.Title = strings.TrimSpace(mdast.CollectText(hs[0], src))
		}
	}
	if node.Title == "" {
		node.Title = node.ID
	}
	return node
}

func (g *Graph) addRelationEdges(id string, doc *document.Document, relationFields []string) {
	if doc.FM == nil {
		return
	}
	for _, field := range relationFields {
		val, ok := doc.FM.Get(field)
		if !ok {
			continue
		}
		for _, ref := range frontmatter.StringSlice(val) {
			target := g.resolveRef(doc, ref)
			if target == "" {
				continue
			}
			g.edges = append(g.edges, Edge{From: id, To: target, Relation: field})
		}
	}
}

// addInlineEdges turns body links into inline_ref edges, suppressed whenever
// a relation field already connects the same pair.
func (g *Graph) addInlineEdges(id string, doc *document.Document) {
	tree := mdast.Parse([]byte(doc.Body))
	seen := make(map[string]struct{})
	for _, dest := range mdast.ExtractLinks(tree) {
		target := g.resolveRef(doc, dest)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		if g.hasEdgeBetween(id, target) {
			continue
		}
		g.edges = append(g.edges, Edge{From: id, To: target, Relation: InlineRelation})
	}
}

// resolveRef maps a reference string onto a node ID: .md paths resolve
// relative to the document, bare ID-shaped strings upper-case directly.
// Anything else (external URLs, anchors) yields "".
func (g *Graph) resolveRef(doc *document.Document, ref string) string {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "#") {
		return ""
	}
	if strings.HasSuffix(ref, ".md") {
		resolved := ref
		if doc.Path != "" {
			resolved = filepath.Join(filepath.Dir(doc.Path), ref)
		}
		return validate.PathToID(resolved)
	}
	if idShape.MatchString(ref) {
		return strings.ToUpper(strings.ReplaceAll(ref, "_", "-"))
	}
	return ""
}

func (g *Graph) hasEdgeBetween(from, to string) bool {
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// Node returns the node with the given ID, case-insensitively.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[strings.ToUpper(id)]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// RefsFrom returns the outgoing edges of a document.
func (g *Graph) RefsFrom(id string) []Edge {
	id = strings.ToUpper(id)
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// RefsTo returns the incoming edges of a document.
func (g *Graph) RefsTo(id string) []Edge {
	id = strings.ToUpper(id)
	var out []Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// TransitiveFrom walks outgoing edges breadth-first up to maxDepth levels
// (0 means unbounded) and returns each edge with the depth it was reached
// at. Every distinct edge appears once.
func (g *Graph) TransitiveFrom(id string, maxDepth int) []TransitiveRef {
	return g.transitive(id, maxDepth, g.RefsFrom, func(e Edge) string { return e.To })
}

// TransitiveTo is TransitiveFrom over incoming edges.
func (g *Graph) TransitiveTo(id string, maxDepth int) []TransitiveRef {
	return g.transitive(id, maxDepth, g.RefsTo, func(e Edge) string { return e.From })
}

func (g *Graph) transitive(id string, maxDepth int, next func(string) []Edge, far func(Edge) string) []TransitiveRef {
	type item struct {
		id    string
		depth int
	}
	var out []TransitiveRef
	seen := make(map[Edge]struct{})
	queue := []item{{id: strings.ToUpper(id), depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, e := range next(cur.id) {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, TransitiveRef{Depth: cur.depth + 1, Edge: e})
			queue = append(queue, item{id: far(e), depth: cur.depth + 1})
		}
	}
	return out
}

// NextID returns the first unused PREFIX-NNN identifier after the highest
// numbered node sharing the prefix.
func (g *Graph) NextID(prefix string) string {
	prefix = strings.ToUpper(prefix)
	max := 0
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)$`)
	for id := range g.nodes {
		if m := re.FindStringSubmatch(id); m != nil {
			n := 0
			fmt.Sscanf(m[1], "%d", &n)
			if n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1)
}
