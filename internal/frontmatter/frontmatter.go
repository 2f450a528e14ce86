// Package frontmatter detects, parses, mutates, and re-serializes the
// optional YAML header of a Markdown document.
//
// Values live in the YAML value space as decoded by yaml.v3: nil, bool,
// int/int64/uint64/float64, string, []any, and map[string]any. Top-level keys
// are unique; serialization emits them in sorted order so repeated
// round-trips are byte-stable.
package frontmatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/apperr"
)

const fence = "---"

// Frontmatter is the parsed YAML header of one document.
type Frontmatter struct {
	data map[string]any
}

// New returns an empty Frontmatter.
func New() *Frontmatter {
	return &Frontmatter{data: make(map[string]any)}
}

// FromData wraps an existing key/value map.
func FromData(data map[string]any) *Frontmatter {
	if data == nil {
		data = make(map[string]any)
	}
	return &Frontmatter{data: data}
}

// TryParse splits raw into (frontmatter, body). When raw does not start with
// a fenced YAML header the frontmatter is nil and body is raw unchanged.
// Malformed YAML inside a well-formed fence is an error.
func TryParse(raw string) (*Frontmatter, string, error) {
	block, body, ok := splitFences(raw)
	if !ok {
		return nil, raw, nil
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(block), &data); err != nil {
		return nil, "", fmt.Errorf("%w: %v", apperr.ErrFrontmatterParse, err)
	}
	if data == nil {
		data = make(map[string]any)
	}
	return &Frontmatter{data: data}, body, nil
}

// splitFences separates the YAML block between the leading "---" fences from
// the body. Returns ok=false when no complete fence pair is present.
func splitFences(raw string) (block, body string, ok bool) {
	if !strings.HasPrefix(raw, fence+"\n") && raw != fence {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, fence+"\n")

	// Closing fence is a line containing only "---".
	if strings.HasPrefix(rest, fence+"\n") {
		return "", rest[len(fence)+1:], true
	}
	if idx := strings.Index(rest, "\n"+fence+"\n"); idx >= 0 {
		return rest[:idx+1], rest[idx+1+len(fence)+1:], true
	}
	if strings.HasSuffix(rest, "\n"+fence) {
		return rest[:len(rest)-len(fence)], "", true
	}
	return "", "", false
}

// Get returns the value at a dotted path such as "links.superseded_by".
// Each segment after the first descends one mapping level.
func (f *Frontmatter) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	current, ok := f.data[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetDisplay returns the stringified value at a dotted path.
func (f *Frontmatter) GetDisplay(path string) (string, bool) {
	v, ok := f.Get(path)
	if !ok {
		return "", false
	}
	return Display(v), true
}

// Has reports whether a top-level key exists.
func (f *Frontmatter) Has(key string) bool {
	_, ok := f.data[key]
	return ok
}

// Keys returns the top-level keys in sorted order.
func (f *Frontmatter) Keys() []string {
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data exposes the underlying map.
func (f *Frontmatter) Data() map[string]any {
	return f.data
}

// Set assigns a top-level key.
func (f *Frontmatter) Set(key string, value any) {
	f.data[key] = value
}

// SetFromString coerces raw with ParseValue and assigns it.
func (f *Frontmatter) SetFromString(key, raw string) {
	f.Set(key, ParseValue(raw))
}

// Remove deletes a top-level key and returns its previous value.
func (f *Frontmatter) Remove(key string) (any, bool) {
	v, ok := f.data[key]
	if ok {
		delete(f.data, key)
	}
	return v, ok
}

// ToYAML serializes the mapping with sorted keys. The result always ends
// with a newline unless the mapping is empty.
func (f *Frontmatter) ToYAML() string {
	if len(f.data) == 0 {
		return ""
	}
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range f.Keys() {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(f.data[k]); err != nil {
			continue
		}
		root.Content = append(root.Content, keyNode, valNode)
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return ""
	}
	return string(out)
}

// Display stringifies a YAML value for humans: null, true/false, decimal
// numbers, verbatim strings, "[a, b]" sequences, and YAML text for mappings.
func Display(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = Display(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		out, err := yaml.Marshal(val)
		if err != nil {
			return ""
		}
		return string(out)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ParseValue coerces a raw user string into a YAML value: true/false become
// bool, integer literals and dotted decimals become numbers, "[...]" is
// re-parsed as a YAML sequence, anything else stays a string.
func ParseValue(s string) any {
	trimmed := strings.TrimSpace(s)

	switch trimmed {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return int(n)
	}
	if strings.Contains(trimmed, ".") {
		if fl, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return fl
		}
	}

	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		var v any
		if err := yaml.Unmarshal([]byte(trimmed), &v); err == nil {
			if _, ok := v.([]any); ok {
				return v
			}
		}
	}

	return s
}

// StringSlice coerces a value into a list of strings: a string yields a
// single-element list, a sequence yields its stringified elements.
func StringSlice(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, Display(item))
		}
		return out
	default:
		return nil
	}
}
