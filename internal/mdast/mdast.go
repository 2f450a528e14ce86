// Package mdast provides byte-exact access to structural regions of a
// Markdown body: headings, section ranges, tables, links, and fences.
//
// The AST is used only to locate byte ranges inside the original source;
// callers splice the source directly so unrelated formatting survives edits.
package mdast

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Parse parses a Markdown body with GFM tables enabled.
func Parse(src []byte) ast.Node {
	return md.Parser().Parse(text.NewReader(src))
}

// FindHeadings returns all headings in document order. A level of 0 matches
// every level; otherwise only headings of exactly that level are returned.
func FindHeadings(doc ast.Node, level int) []*ast.Heading {
	var out []*ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			if level == 0 || h.Level == level {
				out = append(out, h)
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// FindHeadingByText returns the first heading whose plain text equals title,
// compared case-insensitively.
func FindHeadingByText(doc ast.Node, src []byte, title string) *ast.Heading {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, h := range FindHeadings(doc, 0) {
		if strings.ToLower(strings.TrimSpace(CollectText(h, src))) == want {
			return h
		}
	}
	return nil
}

// CollectText concatenates the plain text of a node's inline children:
// text and code spans verbatim, soft and hard breaks as single spaces.
func CollectText(n ast.Node, src []byte) string {
	var sb strings.Builder
	collectText(n, src, &sb)
	return sb.String()
}

func collectText(n ast.Node, src []byte, sb *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		}
		collectText(c, src, sb)
	}
}

// lineStart returns the index of the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

// HeadingLineStart returns the byte index where the heading's line begins,
// or -1 when the heading carries no source segment (an empty ATX heading).
func HeadingLineStart(h *ast.Heading, src []byte) int {
	if h.Lines().Len() == 0 {
		return -1
	}
	return lineStart(src, h.Lines().At(0).Start)
}

// headingLineEnd returns the byte index just past the newline that ends the
// heading's last line, or len(src) when the heading ends the input.
func headingLineEnd(h *ast.Heading, src []byte) int {
	if h.Lines().Len() == 0 {
		return len(src)
	}
	stop := h.Lines().At(h.Lines().Len() - 1).Stop
	nl := bytes.IndexByte(src[stop:], '\n')
	if nl < 0 {
		return len(src)
	}
	return stop + nl + 1
}

// SectionByteRange returns [start, end) for the section introduced by h:
// from the first byte of the heading line to the start of the next heading
// with level <= h.Level, or to the end of src.
func SectionByteRange(doc ast.Node, h *ast.Heading, src []byte) (int, int) {
	start := HeadingLineStart(h, src)
	if start < 0 {
		return -1, -1
	}
	end := len(src)
	seen := false
	for _, other := range FindHeadings(doc, 0) {
		if other == h {
			seen = true
			continue
		}
		if !seen || other.Level > h.Level {
			continue
		}
		if ls := HeadingLineStart(other, src); ls >= 0 {
			end = ls
			break
		}
	}
	return start, end
}

// SectionContentByteRange returns [start, end) for the section's content:
// the bytes after the heading line's terminating newline.
func SectionContentByteRange(doc ast.Node, h *ast.Heading, src []byte) (int, int) {
	start, end := SectionByteRange(doc, h, src)
	if start < 0 {
		return -1, -1
	}
	contentStart := headingLineEnd(h, src)
	if contentStart > end {
		contentStart = end
	}
	return contentStart, end
}

// FindTables returns all GFM tables in document order.
func FindTables(doc ast.Node) []*east.Table {
	var out []*east.Table
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*east.Table); ok {
				out = append(out, t)
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// TableByteRange returns [start, end) spanning the table from the first byte
// of its header line to just past the newline ending its last row.
func TableByteRange(table ast.Node, src []byte) (int, int) {
	first, last := -1, -1
	_ = ast.Walk(table, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok && t.Segment.Len() > 0 {
			if first < 0 {
				first = t.Segment.Start
			}
			last = t.Segment.Stop
		}
		return ast.WalkContinue, nil
	})
	if first < 0 {
		return -1, -1
	}
	start := lineStart(src, first)
	end := len(src)
	if nl := bytes.IndexByte(src[last:], '\n'); nl >= 0 {
		end = last + nl + 1
	}
	return start, end
}

// ParseTable extracts the header cells and data rows of a table node.
// Cell text is the trimmed inline concatenation.
func ParseTable(table *east.Table, src []byte) (header []string, rows [][]string) {
	for c := table.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *east.TableHeader:
			header = cellTexts(row, src)
		case *east.TableRow:
			rows = append(rows, cellTexts(row, src))
		}
	}
	return header, rows
}

func cellTexts(row ast.Node, src []byte) []string {
	var out []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, strings.TrimSpace(CollectText(c, src)))
	}
	return out
}

// ExtractLinks returns the destination of every inline link in order.
func ExtractLinks(doc ast.Node) []string {
	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if l, ok := n.(*ast.Link); ok {
				out = append(out, string(l.Destination))
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// CountParagraphs counts paragraph nodes anywhere under doc.
func CountParagraphs(doc ast.Node) int {
	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if _, ok := n.(*ast.Paragraph); ok {
				count++
			}
		}
		return ast.WalkContinue, nil
	})
	return count
}

// CountListItems counts list items anywhere under doc. hasList reports
// whether any list is present at all.
func CountListItems(doc ast.Node) (count int, hasList bool) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch n.(type) {
			case *ast.List:
				hasList = true
			case *ast.ListItem:
				count++
			}
		}
		return ast.WalkContinue, nil
	})
	return count, hasList
}

// FenceLanguages returns the lowercased info strings of all fenced code
// blocks under doc, in order. Fences without an info string yield "".
func FenceLanguages(doc ast.Node, src []byte) []string {
	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if f, ok := n.(*ast.FencedCodeBlock); ok {
				out = append(out, strings.ToLower(string(f.Language(src))))
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}
