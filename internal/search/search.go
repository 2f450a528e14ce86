// Package search scans a corpus for substring matches in frontmatter
// fields and body lines, reporting each hit with its containing section and
// a little surrounding context.
package search

import (
	"strings"

	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/mdast"
	"github.com/starford/raido/internal/validate"
)

// Options narrows a search.
type Options struct {
	// CaseSensitive disables the default case folding.
	CaseSensitive bool
	// Section restricts matching to body lines inside the named section and
	// skips frontmatter entirely.
	Section string
	// Field restricts matching to one frontmatter field and skips the body.
	Field string
	// MaxResults caps the number of result documents, 0 means no cap.
	MaxResults int
}

// Match is one hit inside a document. Field is set for frontmatter hits,
// Section and Line for body hits.
type Match struct {
	Field   string `json:"field,omitempty"`
	Section string `json:"section,omitempty"`
	Line    int    `json:"line,omitempty"`
	Context string `json:"context"`
}

// Result groups the matches of one document.
type Result struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Matches []Match `json:"matches"`
}

// Directory searches every Markdown file under dir. Results come back
// sorted by path, since discovery sorts its output.
func Directory(dir, query string, opts Options) ([]Result, error) {
	paths, err := discovery.DiscoverFiles(dir, discovery.Options{})
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, p := range paths {
		if opts.MaxResults > 0 && len(out) >= opts.MaxResults {
			break
		}
		doc, err := document.FromFile(p)
		if err != nil {
			continue
		}
		matches := Document(doc, query, opts)
		if len(matches) == 0 {
			continue
		}
		out = append(out, Result{Path: p, Title: docTitle(doc), Matches: matches})
	}
	return out, nil
}

func docTitle(doc *document.Document) string {
	if doc.FM != nil {
		if title, ok := doc.FM.GetDisplay("title"); ok && title != "" {
			return title
		}
	}
	if doc.Path != "" {
		return validate.PathToID(doc.Path)
	}
	return ""
}

// Document scans one document and returns its matches.
func Document(doc *document.Document, query string, opts Options) []Match {
	var out []Match
	if opts.Section == "" {
		out = append(out, frontmatterMatches(doc, query, opts)...)
	}
	if opts.Field == "" {
		out = append(out, bodyMatches(doc, query, opts)...)
	}
	return out
}

func frontmatterMatches(doc *document.Document, query string, opts Options) []Match {
	if doc.FM == nil {
		return nil
	}
	var out []Match
	for _, key := range doc.FM.Keys() {
		if opts.Field != "" && key != opts.Field {
			continue
		}
		v, _ := doc.FM.Get(key)
		display := frontmatter.Display(v)
		if !contains(display, query, opts.CaseSensitive) {
			continue
		}
		out = append(out, Match{Field: key, Context: highlight(display, query, opts.CaseSensitive)})
	}
	return out
}

func bodyMatches(doc *document.Document, query string, opts Options) []Match {
	lines := strings.Split(doc.Body, "\n")
	sections := sectionByLine(doc.Body)

	var out []Match
	for i, line := range lines {
		if !contains(line, query, opts.CaseSensitive) {
			continue
		}
		section := sections[i]
		if opts.Section != "" && !strings.EqualFold(section, opts.Section) {
			continue
		}
		out = append(out, Match{
			Section: section,
			Line:    i + 1,
			Context: context(lines, i, query, opts.CaseSensitive),
		})
	}
	return out
}

// sectionByLine maps every zero-based body line to the heading text of the
// section it belongs to. Lines before the first heading map to "".
func sectionByLine(body string) []string {
	src := []byte(body)
	tree := mdast.Parse(src)

	type headingAt struct {
		line int
		text string
	}
	var headings []headingAt
	for _, h := range mdast.FindHeadings(tree, 0) {
		start := mdast.HeadingLineStart(h, src)
		if start < 0 {
			continue
		}
		line := strings.Count(body[:start], "\n")
		headings = append(headings, headingAt{line: line, text: strings.TrimSpace(mdast.CollectText(h, src))})
	}

	total := strings.Count(body, "\n") + 1
	out := make([]string, total)
	current := ""
	next := 0
	for i := 0; i < total; i++ {
		for next < len(headings) && headings[next].line <= i {
			current = headings[next].text
			next++
		}
		out[i] = current
	}
	return out
}

// context joins the nearest non-empty neighbor lines around the match and
// highlights the query inside the matched line.
func context(lines []string, idx int, query string, caseSensitive bool) string {
	var parts []string
	for i := idx - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			parts = append(parts, trimmed)
			break
		}
	}
	parts = append(parts, highlight(strings.TrimSpace(lines[idx]), query, caseSensitive))
	for i := idx + 1; i < len(lines); i++ {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			parts = append(parts, trimmed)
			break
		}
	}
	return strings.Join(parts, " ")
}

func contains(s, query string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(s, query)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(query))
}

// highlight wraps every occurrence of query in *...*, preserving the
// original casing of the matched text.
func highlight(s, query string, caseSensitive bool) string {
	if query == "" {
		return s
	}
	haystack := s
	needle := query
	if !caseSensitive {
		haystack = strings.ToLower(s)
		needle = strings.ToLower(query)
	}
	var sb strings.Builder
	pos := 0
	for {
		i := strings.Index(haystack[pos:], needle)
		if i < 0 {
			sb.WriteString(s[pos:])
			return sb.String()
		}
		start := pos + i
		end := start + len(needle)
		sb.WriteString(s[pos:start])
		sb.WriteString("*")
		sb.WriteString(s[start:end])
		sb.WriteString("*")
		pos = end
	}
}
