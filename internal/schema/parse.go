package schema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/starford/raido/internal/apperr"
)

// The schema surface is a small KDL-like grammar: nodes are an identifier
// followed by string/number/keyword arguments and key=value properties,
// optionally a {…} block of child nodes, terminated by newline or ';'.
// Line comments start with "//".

type kdlNode struct {
	name     string
	line     int
	args     []string
	props    map[string]string
	children []*kdlNode
}

func (n *kdlNode) arg(i int) string {
	if i < len(n.args) {
		return n.args[i]
	}
	return ""
}

func (n *kdlNode) prop(key, fallback string) string {
	if v, ok := n.props[key]; ok {
		return v
	}
	return fallback
}

func (n *kdlNode) boolProp(key string, fallback bool) bool {
	v, ok := n.props[key]
	if !ok {
		return fallback
	}
	return v == "true"
}

// Parse parses schema text into the in-memory model.
func Parse(src string) (*Schema, error) {
	p := &parser{src: src, line: 1}
	nodes, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	return buildSchema(nodes)
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) errf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: line %d: %s", apperr.ErrSchemaParse, p.line, msg)
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

// skipSpace consumes spaces, tabs, and comments. When stopAtNewline is set
// it leaves newlines for the caller, which uses them as node terminators.
func (p *parser) skipSpace(stopAtNewline bool) {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.advance()
		case c == '\n' && !stopAtNewline:
			p.advance()
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		default:
			return
		}
	}
}

func isIdentByte(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '-' || c == '_'
}

func (p *parser) readIdent() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos]
}

func (p *parser) readString() (string, error) {
	if p.eof() || p.peek() != '"' {
		return "", p.errf("expected string")
	}
	p.advance()
	var sb strings.Builder
	for !p.eof() {
		c := p.advance()
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", p.errf("unterminated escape")
			}
			esc := p.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\', '/':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", p.errf("unterminated string")
}

// readValue reads a string, #true/#false keyword, number, or bare word.
func (p *parser) readValue() (string, error) {
	c := p.peek()
	switch {
	case c == '"':
		return p.readString()
	case c == '#':
		p.advance()
		word := p.readIdent()
		if word != "true" && word != "false" {
			return "", p.errf("unknown keyword #%s", word)
		}
		return word, nil
	case c == '-' || c == '+' || unicode.IsDigit(rune(c)):
		start := p.pos
		p.advance()
		for !p.eof() && (unicode.IsDigit(rune(p.peek())) || p.peek() == '.') {
			p.advance()
		}
		return p.src[start:p.pos], nil
	case isIdentByte(c):
		return p.readIdent(), nil
	}
	return "", p.errf("unexpected character %q", string(c))
}

// parseNodes reads nodes until EOF or, inside a block, the closing brace.
func (p *parser) parseNodes(inBlock bool) ([]*kdlNode, error) {
	var nodes []*kdlNode
	for {
		p.skipSpace(false)
		if p.eof() {
			if inBlock {
				return nil, p.errf("unexpected end of input, missing '}'")
			}
			return nodes, nil
		}
		if p.peek() == '}' {
			if !inBlock {
				return nil, p.errf("unexpected '}'")
			}
			p.advance()
			return nodes, nil
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func (p *parser) parseNode() (*kdlNode, error) {
	if !isIdentByte(p.peek()) {
		return nil, p.errf("expected node name, got %q", string(p.peek()))
	}
	node := &kdlNode{name: p.readIdent(), line: p.line, props: map[string]string{}}

	for {
		p.skipSpace(true)
		if p.eof() {
			return node, nil
		}
		switch c := p.peek(); {
		case c == '\n' || c == ';':
			p.advance()
			return node, nil
		case c == '{':
			p.advance()
			children, err := p.parseNodes(true)
			if err != nil {
				return nil, err
			}
			node.children = children
			return node, nil
		case c == '}':
			// Let the enclosing block consume it.
			return node, nil
		case c == '"' || c == '#' || c == '-' || c == '+' || unicode.IsDigit(rune(c)):
			v, err := p.readValue()
			if err != nil {
				return nil, err
			}
			node.args = append(node.args, v)
		case isIdentByte(c):
			word := p.readIdent()
			p.skipSpace(true)
			if !p.eof() && p.peek() == '=' {
				p.advance()
				p.skipSpace(true)
				if p.eof() {
					return nil, p.errf("missing value for property %q", word)
				}
				v, err := p.readValue()
				if err != nil {
					return nil, err
				}
				node.props[word] = v
			} else {
				node.args = append(node.args, word)
			}
		default:
			return nil, p.errf("unexpected character %q in node %q", string(c), node.name)
		}
	}
}

// buildSchema maps parsed nodes onto the schema model.
func buildSchema(nodes []*kdlNode) (*Schema, error) {
	s := &Schema{}
	for _, n := range nodes {
		switch n.name {
		case "type":
			t, err := buildType(n)
			if err != nil {
				return nil, err
			}
			s.Types = append(s.Types, t)
		case "relation":
			r, err := buildRelation(n)
			if err != nil {
				return nil, err
			}
			s.Relations = append(s.Relations, r)
		case "ref-format":
			for _, c := range n.children {
				s.RefFormats = append(s.RefFormats, RefFormat{
					Name:    c.name,
					Pattern: c.prop("pattern", c.arg(0)),
				})
			}
		default:
			return nil, nodeErr(n, "unknown top-level node %q", n.name)
		}
	}
	return s, nil
}

func nodeErr(n *kdlNode, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: line %d: %s", apperr.ErrSchemaParse, n.line, msg)
}

func buildType(n *kdlNode) (*TypeDef, error) {
	if n.arg(0) == "" {
		return nil, nodeErr(n, "type needs a name")
	}
	t := &TypeDef{
		Name:        n.arg(0),
		Description: n.prop("description", ""),
		Folder:      n.prop("folder", ""),
	}
	if mc := n.prop("max_count", ""); mc != "" {
		v, err := strconv.Atoi(mc)
		if err != nil {
			return nil, nodeErr(n, "invalid max_count %q", mc)
		}
		t.MaxCount = v
	}
	for _, c := range n.children {
		switch c.name {
		case "field":
			f, err := buildField(c)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		case "section":
			sec, err := buildSection(c)
			if err != nil {
				return nil, err
			}
			t.Sections = append(t.Sections, sec)
		case "rule":
			r, err := buildRule(c)
			if err != nil {
				return nil, err
			}
			t.Rules = append(t.Rules, r)
		default:
			return nil, nodeErr(c, "unknown node %q in type %q", c.name, t.Name)
		}
	}
	return t, nil
}

func buildField(n *kdlNode) (*FieldDef, error) {
	if n.arg(0) == "" {
		return nil, nodeErr(n, "field needs a name")
	}
	f := &FieldDef{
		Name:        n.arg(0),
		Required:    n.boolProp("required", false),
		Pattern:     n.prop("pattern", ""),
		Default:     n.prop("default", ""),
		Description: n.prop("description", ""),
	}

	rawType := n.prop("type", "string")
	switch FieldKind(rawType) {
	case KindString, KindNumber, KindBool, KindStringList, KindRef, KindRefList, KindUser, KindUserList:
		f.Type = FieldType{Kind: FieldKind(rawType)}
	case KindEnum:
		var values []string
		for _, c := range n.children {
			if c.name == "values" {
				values = append(values, c.args...)
			}
		}
		if len(values) == 0 {
			return nil, nodeErr(n, "enum field %q needs a non-empty values child", f.Name)
		}
		f.Type = FieldType{Kind: KindEnum, EnumValues: values}
	default:
		return nil, nodeErr(n, "unknown field type %q on field %q", rawType, f.Name)
	}
	return f, nil
}

func buildSection(n *kdlNode) (*SectionDef, error) {
	if n.arg(0) == "" {
		return nil, nodeErr(n, "section needs a name")
	}
	sec := &SectionDef{
		Name:        n.arg(0),
		Required:    n.boolProp("required", false),
		Description: n.prop("description", ""),
	}
	for _, c := range n.children {
		switch c.name {
		case "content":
			if sec.Content != nil {
				return nil, nodeErr(c, "duplicate content constraint in section %q", sec.Name)
			}
			min := 0
			if raw := c.prop("min-paragraphs", ""); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil {
					return nil, nodeErr(c, "invalid min-paragraphs %q", raw)
				}
				min = v
			}
			sec.Content = &ContentDef{MinParagraphs: min}
		case "list":
			if sec.List != nil {
				return nil, nodeErr(c, "duplicate list constraint in section %q", sec.Name)
			}
			min := 0
			if raw := c.prop("min-items", ""); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil {
					return nil, nodeErr(c, "invalid min-items %q", raw)
				}
				min = v
			}
			sec.List = &ListDef{Required: c.boolProp("required", false), MinItems: min}
		case "diagram":
			if sec.Diagram != nil {
				return nil, nodeErr(c, "duplicate diagram constraint in section %q", sec.Name)
			}
			sec.Diagram = &DiagramDef{
				Required: c.boolProp("required", false),
				Lang:     c.prop("type", ""),
			}
		case "table":
			if sec.Table != nil {
				return nil, nodeErr(c, "duplicate table constraint in section %q", sec.Name)
			}
			tbl := &TableDef{
				Required:    c.boolProp("required", false),
				Description: c.prop("description", ""),
			}
			for _, col := range c.children {
				if col.name != "column" {
					return nil, nodeErr(col, "unknown node %q in table of section %q", col.name, sec.Name)
				}
				colType := col.prop("type", "string")
				switch colType {
				case "string", "number", "user":
				default:
					return nil, nodeErr(col, "unknown column type %q", colType)
				}
				tbl.Columns = append(tbl.Columns, ColumnDef{
					Name:     col.arg(0),
					Type:     colType,
					Required: col.boolProp("required", false),
				})
			}
			sec.Table = tbl
		case "section":
			child, err := buildSection(c)
			if err != nil {
				return nil, err
			}
			sec.Children = append(sec.Children, child)
		default:
			return nil, nodeErr(c, "unknown node %q in section %q", c.name, sec.Name)
		}
	}
	return sec, nil
}

func buildRule(n *kdlNode) (*ConditionalRule, error) {
	r := &ConditionalRule{Name: n.arg(0)}
	for _, c := range n.children {
		switch c.name {
		case "when":
			r.WhenField = c.arg(0)
			r.Equals = c.prop("equals", "")
		case "then-required":
			r.ThenRequired = append(r.ThenRequired, c.args...)
		default:
			return nil, nodeErr(c, "unknown node %q in rule %q", c.name, r.Name)
		}
	}
	if r.WhenField == "" {
		return nil, nodeErr(n, "rule %q needs a when child", r.Name)
	}
	return r, nil
}

func buildRelation(n *kdlNode) (*RelationDef, error) {
	if n.arg(0) == "" {
		return nil, nodeErr(n, "relation needs a name")
	}
	card := Cardinality(n.prop("cardinality", string(Many)))
	if card != One && card != Many {
		return nil, nodeErr(n, "invalid cardinality %q on relation %q", card, n.arg(0))
	}
	return &RelationDef{
		Name:        n.arg(0),
		Inverse:     n.prop("inverse", ""),
		Cardinality: card,
		Description: n.prop("description", ""),
		Acyclic:     n.boolProp("acyclic", false),
	}, nil
}
