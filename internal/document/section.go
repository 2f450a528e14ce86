package document

import (
	"strings"

	"github.com/starford/raido/internal/mdast"
)

// Section is a lazy view over one heading range of a document body. Raw
// includes the heading line; Content is everything after it up to the next
// heading of equal or lower level.
type Section struct {
	Heading string
	Level   int
	Raw     string
	Content string
}

// Subsections returns the sections exactly one level deeper found inside
// this section's content.
func (s *Section) Subsections() []Section {
	return sectionsAtLevel([]byte(s.Content), s.Level+1)
}

// Tables parses every table found anywhere in the section's content.
func (s *Section) Tables() []Table {
	src := []byte(s.Content)
	doc := mdast.Parse(src)
	var out []Table
	for _, node := range mdast.FindTables(doc) {
		header, rows := mdast.ParseTable(node, src)
		out = append(out, Table{Header: header, Rows: rows})
	}
	return out
}

// Text returns the trimmed content of the section.
func (s *Section) Text() string {
	return strings.TrimSpace(s.Content)
}

// sectionsAtLevel extracts all sections whose heading is exactly level.
func sectionsAtLevel(src []byte, level int) []Section {
	doc := mdast.Parse(src)
	var out []Section
	for _, h := range mdast.FindHeadings(doc, level) {
		start, end := mdast.SectionByteRange(doc, h, src)
		if start < 0 {
			continue
		}
		cStart, cEnd := mdast.SectionContentByteRange(doc, h, src)
		out = append(out, Section{
			Heading: strings.TrimSpace(mdast.CollectText(h, src)),
			Level:   h.Level,
			Raw:     string(src[start:end]),
			Content: string(src[cStart:cEnd]),
		})
	}
	return out
}

// topLevelSections returns the sections at the minimum heading level that
// occurs in src, so a body using only "##" treats those as top level.
func topLevelSections(src []byte) []Section {
	doc := mdast.Parse(src)
	min := 0
	for _, h := range mdast.FindHeadings(doc, 0) {
		if min == 0 || h.Level < min {
			min = h.Level
		}
	}
	if min == 0 {
		return nil
	}
	return sectionsAtLevel(src, min)
}
