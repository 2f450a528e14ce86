// Package discovery finds corpus files: a recursive walk that follows
// symlinks, honors .gitignore on request, filters file names by glob, and
// applies frontmatter predicates.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/starford/raido/internal/document"
)

// FilterKind selects the predicate applied to a frontmatter field.
type FilterKind int

const (
	FieldEquals FilterKind = iota
	FieldNotEquals
	FieldContains
	FieldIn
	HasField
	NotHasField
)

// Filter is one frontmatter predicate. All filters must pass for a file to
// be included; files without frontmatter are skipped whenever any filter is
// present.
type Filter struct {
	Kind   FilterKind
	Field  string
	Value  string
	Values []string
}

// Options controls a walk.
type Options struct {
	// Pattern is the file-name glob; "*.md" when empty.
	Pattern string
	// Filters are the frontmatter predicates.
	Filters []Filter
	// NoIgnore disables .gitignore handling.
	NoIgnore bool
}

// DiscoverFiles walks dir and returns the matching paths sorted
// lexicographically.
func DiscoverFiles(dir string, opts Options) ([]string, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.md"
	}

	var matcher *ignore.GitIgnore
	if !opts.NoIgnore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore")); err == nil {
			matcher = gi
		}
	}

	var out []string
	visited := make(map[string]struct{})
	if err := walk(dir, dir, pattern, opts.Filters, matcher, visited, &out); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// walk recurses into dir, resolving symlinked directories and guarding
// against symlink loops with a visited set of resolved paths.
func walk(root, dir, pattern string, filters []Filter, matcher *ignore.GitIgnore, visited map[string]struct{}, out *[]string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	if _, seen := visited[resolved]; seen {
		return nil
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		info, err := os.Stat(path) // follows symlinks
		if err != nil {
			continue
		}

		if matcher != nil {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && matcher.MatchesPath(rel) {
				continue
			}
		}

		if info.IsDir() {
			if err := walk(root, path, pattern, filters, matcher, visited, out); err != nil {
				return err
			}
			continue
		}

		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		if matchesFilters(path, filters) {
			*out = append(*out, path)
		}
	}
	return nil
}

func matchesFilters(path string, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	doc, err := document.FromFile(path)
	if err != nil || doc.FM == nil {
		return false
	}
	for _, f := range filters {
		if !applyFilter(doc, f) {
			return false
		}
	}
	return true
}

func applyFilter(doc *document.Document, f Filter) bool {
	display, present := doc.FM.GetDisplay(f.Field)
	switch f.Kind {
	case FieldEquals:
		return present && display == f.Value
	case FieldNotEquals:
		// An absent field counts as not-equal.
		return !present || display != f.Value
	case FieldContains:
		return present && strings.Contains(display, f.Value)
	case FieldIn:
		if !present {
			return false
		}
		for _, v := range f.Values {
			if display == v {
				return true
			}
		}
		return false
	case HasField:
		return present
	case NotHasField:
		return !present
	}
	return false
}
