package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/frontmatter"
	"github.com/starford/raido/internal/mdast"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/users"
)

// diagramLangs are the fence info strings accepted when a diagram
// constraint names no language.
var diagramLangs = map[string]bool{
	"mermaid": true, "d2": true, "plantuml": true, "graphviz": true, "dot": true,
}

// Validator checks single documents against a schema, given corpus-wide
// auxiliary sets.
type Validator struct {
	Schema *schema.Schema
	// Users is the optional user directory; without it @refs are only
	// checked for the leading @.
	Users *users.Directory
	// KnownFiles holds corpus file paths used to resolve .md refs.
	KnownFiles map[string]struct{}
	// KnownIDs holds the upper-cased document IDs of the corpus.
	KnownIDs map[string]struct{}
}

// New returns a Validator for the given schema.
func New(s *schema.Schema) *Validator {
	return &Validator{
		Schema:     s,
		KnownFiles: make(map[string]struct{}),
		KnownIDs:   make(map[string]struct{}),
	}
}

// ValidateDocument produces the diagnostics of one document.
func (v *Validator) ValidateDocument(doc *document.Document) []Diagnostic {
	if doc.FM == nil {
		return []Diagnostic{errorf("F000", "frontmatter", "document has no frontmatter")}
	}
	typeName, ok := doc.FM.GetDisplay("type")
	if !ok {
		return []Diagnostic{errorf("F001", "frontmatter", "missing %q field", "type")}
	}
	typeDef := v.Schema.GetType(typeName)
	if typeDef == nil {
		d := errorf("F002", "frontmatter.type", "unknown type %q", typeName)
		d.Hint = "known types: " + strings.Join(v.Schema.TypeNames(), ", ")
		return []Diagnostic{d}
	}

	var diags []Diagnostic
	diags = append(diags, v.checkFields(doc, typeDef)...)
	diags = append(diags, v.checkRules(doc, typeDef)...)
	diags = append(diags, v.checkRelationFields(doc, typeDef)...)
	diags = append(diags, v.checkSections(doc, typeDef)...)
	return diags
}

// checkFields validates every declared field of the type.
func (v *Validator) checkFields(doc *document.Document, typeDef *schema.TypeDef) []Diagnostic {
	var diags []Diagnostic
	for _, fd := range typeDef.Fields {
		val, present := doc.FM.Get(fd.Name)
		loc := "frontmatter." + fd.Name
		if !present {
			if fd.Required {
				d := errorf("F010", loc, "missing required field %q", fd.Name)
				hint := "expected type " + fd.Type.String()
				if fd.Description != "" {
					hint += " (" + fd.Description + ")"
				}
				d.Hint = hint
				diags = append(diags, d)
			}
			continue
		}
		diags = append(diags, v.checkFieldValue(fd, val, loc, doc)...)
	}
	return diags
}

func (v *Validator) checkFieldValue(fd *schema.FieldDef, val any, loc string, doc *document.Document) []Diagnostic {
	if fd.Type.IsList() {
		seq, ok := val.([]any)
		if !ok {
			return []Diagnostic{errorf("F020", loc, "field %q expected %s, got %s",
				fd.Name, fd.Type, frontmatter.Display(val))}
		}
		var diags []Diagnostic
		elemKind := elementKind(fd.Type.Kind)
		for i, item := range seq {
			elemLoc := fmt.Sprintf("%s[%d]", loc, i)
			diags = append(diags, v.checkScalar(fd, elemKind, item, elemLoc, doc)...)
		}
		return diags
	}
	return v.checkScalar(fd, fd.Type.Kind, val, loc, doc)
}

func elementKind(kind schema.FieldKind) schema.FieldKind {
	switch kind {
	case schema.KindStringList:
		return schema.KindString
	case schema.KindRefList:
		return schema.KindRef
	case schema.KindUserList:
		return schema.KindUser
	}
	return kind
}

func (v *Validator) checkScalar(fd *schema.FieldDef, kind schema.FieldKind, val any, loc string, doc *document.Document) []Diagnostic {
	switch kind {
	case schema.KindString:
		s, ok := val.(string)
		if !ok {
			return []Diagnostic{v.typeMismatch(fd, val, loc)}
		}
		return v.checkPattern(fd, s, loc)
	case schema.KindNumber:
		switch val.(type) {
		case int, int64, uint64, float64:
			return nil
		}
		return []Diagnostic{v.typeMismatch(fd, val, loc)}
	case schema.KindBool:
		if _, ok := val.(bool); !ok {
			return []Diagnostic{v.typeMismatch(fd, val, loc)}
		}
		return nil
	case schema.KindEnum:
		display := frontmatter.Display(val)
		for _, allowed := range fd.Type.EnumValues {
			if display == allowed {
				return nil
			}
		}
		d := errorf("F021", loc, "field %q has value %q which is not an allowed enum value", fd.Name, display)
		d.Hint = "allowed values: " + strings.Join(fd.Type.EnumValues, ", ")
		return []Diagnostic{d}
	case schema.KindRef:
		s, ok := val.(string)
		if !ok {
			return []Diagnostic{v.typeMismatch(fd, val, loc)}
		}
		return v.checkRef(s, loc, doc)
	case schema.KindUser:
		s, ok := val.(string)
		if !ok {
			return []Diagnostic{v.typeMismatch(fd, val, loc)}
		}
		return v.checkUser(s, loc)
	}
	return nil
}

func (v *Validator) typeMismatch(fd *schema.FieldDef, val any, loc string) Diagnostic {
	return errorf("F020", loc, "field %q expected %s, got %s", fd.Name, fd.Type, frontmatter.Display(val))
}

// checkPattern applies the field's regex, downgrading a bad schema regex to
// an S000 warning.
func (v *Validator) checkPattern(fd *schema.FieldDef, s, loc string) []Diagnostic {
	if fd.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(fd.Pattern)
	if err != nil {
		return []Diagnostic{warnf("S000", loc, "invalid regex %q in schema for field %q", fd.Pattern, fd.Name)}
	}
	if !re.MatchString(s) {
		return []Diagnostic{errorf("F030", loc, "field %q value %q does not match pattern %q", fd.Name, s, fd.Pattern)}
	}
	return nil
}

// checkRef validates one reference value: ref-format conformance, .md path
// resolution, and bare-ID lookup.
func (v *Validator) checkRef(value, loc string, doc *document.Document) []Diagnostic {
	if len(v.Schema.RefFormats) > 0 {
		matched := false
		for _, rf := range v.Schema.RefFormats {
			re, err := regexp.Compile(rf.Pattern)
			if err != nil {
				continue
			}
			if re.MatchString(value) {
				matched = true
				break
			}
		}
		if !matched {
			return []Diagnostic{warnf("R001", loc, "ref %q matches no ref-format", value)}
		}
	}

	if strings.HasSuffix(value, ".md") {
		resolved := value
		if doc.Path != "" {
			resolved = filepath.Join(filepath.Dir(doc.Path), value)
		}
		if _, err := os.Stat(resolved); err == nil {
			return nil
		}
		if _, ok := v.KnownFiles[filepath.Clean(resolved)]; ok {
			return nil
		}
		return []Diagnostic{errorf("R010", loc, "broken file reference %q", value)}
	}

	if len(v.KnownIDs) > 0 {
		if _, ok := v.KnownIDs[strings.ToUpper(value)]; !ok {
			return []Diagnostic{warnf("R011", loc, "unresolved ID reference %q", value)}
		}
	}
	return nil
}

// checkUser validates one @handle or @team/id value.
func (v *Validator) checkUser(value, loc string) []Diagnostic {
	if !strings.HasPrefix(value, "@") {
		return []Diagnostic{errorf("U010", loc, "user reference %q must start with @", value)}
	}
	if v.Users == nil {
		return nil
	}
	if v.Users.IsValidRef(value) {
		return nil
	}
	d := errorf("U011", loc, "unknown user or team %q", value)
	var known []string
	for _, h := range v.Users.KnownHandles() {
		known = append(known, "@"+h)
	}
	for _, t := range v.Users.KnownTeams() {
		known = append(known, "@team/"+t)
	}
	d.Hint = "known: " + strings.Join(known, ", ")
	return []Diagnostic{d}
}

// checkRules applies the type's conditional rules.
func (v *Validator) checkRules(doc *document.Document, typeDef *schema.TypeDef) []Diagnostic {
	var diags []Diagnostic
	for _, rule := range typeDef.Rules {
		trigger, ok := doc.FM.GetDisplay(rule.WhenField)
		if !ok || trigger != rule.Equals {
			continue
		}
		for _, field := range rule.ThenRequired {
			if doc.FM.Has(field) {
				continue
			}
			diags = append(diags, errorf("F040", "frontmatter."+field,
				"field %q required when %s=%s", field, rule.WhenField, rule.Equals))
		}
	}
	return diags
}

// checkRelationFields validates frontmatter keys that name a relation or
// its inverse, using the relation's cardinality. Keys already declared as
// fields of the type were checked above and are skipped here.
func (v *Validator) checkRelationFields(doc *document.Document, typeDef *schema.TypeDef) []Diagnostic {
	var diags []Diagnostic
	for _, key := range doc.FM.Keys() {
		rel, _, ok := v.Schema.FindRelation(key)
		if !ok || typeDef.GetField(key) != nil {
			continue
		}
		val, _ := doc.FM.Get(key)
		loc := "frontmatter." + key

		card, _ := v.Schema.RelationCardinality(key)
		switch card {
		case schema.One:
			s, ok := val.(string)
			if !ok {
				diags = append(diags, errorf("F020", loc,
					"relation %q expects a single reference, got %s", rel.Name, frontmatter.Display(val)))
				continue
			}
			diags = append(diags, v.checkRef(s, loc, doc)...)
		default:
			switch refs := val.(type) {
			case string:
				// A single string is auto-wrapped into a one-element list.
				diags = append(diags, v.checkRef(refs, loc, doc)...)
			case []any:
				for i, item := range refs {
					elemLoc := fmt.Sprintf("%s[%d]", loc, i)
					s, ok := item.(string)
					if !ok {
						diags = append(diags, errorf("F020", elemLoc,
							"relation %q expects references, got %s", rel.Name, frontmatter.Display(item)))
						continue
					}
					diags = append(diags, v.checkRef(s, elemLoc, doc)...)
				}
			default:
				diags = append(diags, errorf("F020", loc,
					"relation %q expects references, got %s", rel.Name, frontmatter.Display(val)))
			}
		}
	}
	return diags
}

// checkSections walks the SectionDef tree against the document body.
func (v *Validator) checkSections(doc *document.Document, typeDef *schema.TypeDef) []Diagnostic {
	var diags []Diagnostic
	for _, def := range typeDef.Sections {
		diags = append(diags, v.checkSection(doc, []string{def.Name}, def)...)
	}
	return diags
}

// resolveSection finds the first path element at any heading level, so a
// document title heading above the schema sections does not hide them, then
// descends direct subsections.
func resolveSection(doc *document.Document, path []string) *document.Section {
	sec, err := doc.GetSection(path[0])
	if err != nil {
		return nil
	}
	for _, name := range path[1:] {
		var next *document.Section
		for _, sub := range sec.Subsections() {
			if strings.EqualFold(sub.Heading, name) {
				s := sub
				next = &s
				break
			}
		}
		if next == nil {
			return nil
		}
		sec = next
	}
	return sec
}

func (v *Validator) checkSection(doc *document.Document, path []string, def *schema.SectionDef) []Diagnostic {
	dotted := strings.Join(path, " > ")
	sec := resolveSection(doc, path)
	if sec == nil {
		if def.Required {
			return []Diagnostic{errorf("S010", fmt.Sprintf("section %q", dotted),
				"missing required section %q", dotted)}
		}
		return nil
	}

	loc := fmt.Sprintf("section %q", dotted)
	var diags []Diagnostic
	if def.Table != nil {
		diags = append(diags, v.checkSectionTable(sec, def.Table, loc, dotted)...)
	}
	if def.Content != nil && def.Content.MinParagraphs > 0 {
		count := mdast.CountParagraphs(mdast.Parse([]byte(sec.Content)))
		if count < def.Content.MinParagraphs {
			diags = append(diags, errorf("S030", loc,
				"section %q has %d paragraph(s), expected at least %d", dotted, count, def.Content.MinParagraphs))
		}
	}
	if def.List != nil {
		count, hasList := mdast.CountListItems(mdast.Parse([]byte(sec.Content)))
		switch {
		case !hasList && def.List.Required:
			diags = append(diags, errorf("S031", loc, "section %q missing required list", dotted))
		case hasList && count < def.List.MinItems:
			diags = append(diags, errorf("S031", loc,
				"list in section %q has %d item(s), expected at least %d", dotted, count, def.List.MinItems))
		}
	}
	if def.Diagram != nil && def.Diagram.Required {
		if !hasDiagram(sec.Content, def.Diagram.Lang) {
			diags = append(diags, errorf("S032", loc, "section %q missing required diagram", dotted))
		}
	}

	for _, child := range def.Children {
		diags = append(diags, v.checkSection(doc, append(append([]string{}, path...), child.Name), child)...)
	}
	return diags
}

func hasDiagram(content, lang string) bool {
	for _, fence := range mdast.FenceLanguages(mdast.Parse([]byte(content)), []byte(content)) {
		if lang != "" {
			if fence == strings.ToLower(lang) {
				return true
			}
		} else if diagramLangs[fence] {
			return true
		}
	}
	return false
}

func (v *Validator) checkSectionTable(sec *document.Section, def *schema.TableDef, loc, dotted string) []Diagnostic {
	tables := sec.Tables()
	if len(tables) == 0 {
		if def.Required {
			return []Diagnostic{errorf("S020", loc, "section %q missing required table", dotted)}
		}
		return nil
	}

	table := tables[0]
	var diags []Diagnostic
	for _, col := range def.Columns {
		idx, err := table.ColumnIndex(col.Name)
		if err != nil {
			if col.Required {
				diags = append(diags, errorf("S021", loc,
					"table in section %q missing required column %q", dotted, col.Name))
			}
			continue
		}
		if col.Type != "user" {
			continue
		}
		for row := range table.Rows {
			cell := ""
			if idx < len(table.Rows[row]) {
				cell = table.Rows[row][idx]
			}
			cellLoc := fmt.Sprintf("%s table %q row %d", loc, col.Name, row)
			if strings.TrimSpace(cell) == "" {
				if col.Required {
					diags = append(diags, errorf("S022", cellLoc,
						"required user cell empty in column %q row %d", col.Name, row))
				}
				continue
			}
			diags = append(diags, v.checkUser(cell, cellLoc)...)
		}
	}
	return diags
}

// ValidateFile loads and validates one file; a load failure becomes a
// single E000 diagnostic so directory scans can continue.
func (v *Validator) ValidateFile(path string) FileResult {
	doc, err := document.FromFile(path)
	if err != nil {
		return FileResult{Path: path, Diagnostics: []Diagnostic{
			errorf("E000", "file", "failed to parse: %v", err),
		}}
	}
	return FileResult{Path: path, Diagnostics: v.ValidateDocument(doc)}
}

// ValidateDirectory validates every Markdown file under dir and then runs
// the corpus-wide max_count pass.
func (v *Validator) ValidateDirectory(dir string) (*Result, error) {
	paths, err := discovery.DiscoverFiles(dir, discovery.Options{})
	if err != nil {
		return nil, err
	}

	// Corpus context for ref resolution.
	for _, p := range paths {
		v.KnownFiles[filepath.Clean(p)] = struct{}{}
		v.KnownIDs[PathToID(p)] = struct{}{}
	}

	result := &Result{}
	byType := make(map[string][]int) // type name -> indices into result.Files
	for _, p := range paths {
		doc, err := document.FromFile(p)
		if err != nil {
			result.Files = append(result.Files, FileResult{Path: p, Diagnostics: []Diagnostic{
				errorf("E000", "file", "failed to parse: %v", err),
			}})
			continue
		}
		if doc.FM != nil {
			if typeName, ok := doc.FM.GetDisplay("type"); ok {
				byType[typeName] = append(byType[typeName], len(result.Files))
			}
		}
		result.Files = append(result.Files, FileResult{Path: p, Diagnostics: v.ValidateDocument(doc)})
	}

	// T010: attach to each document beyond a type's max_count.
	typeNames := make([]string, 0, len(byType))
	for name := range byType {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		td := v.Schema.GetType(name)
		if td == nil || td.MaxCount == 0 {
			continue
		}
		indices := byType[name]
		if len(indices) <= td.MaxCount {
			continue
		}
		for _, idx := range indices[td.MaxCount:] {
			result.Files[idx].Diagnostics = append(result.Files[idx].Diagnostics,
				errorf("T010", "corpus", "type %q has %d documents, exceeding max_count %d",
					name, len(indices), td.MaxCount))
		}
	}
	return result, nil
}

// PathToID derives the canonical document ID from a file path: the stem is
// upper-cased with underscores turned into dashes, then cut to its longest
// LETTERS-DIGITS prefix. Without such a prefix the whole stem is the ID.
func PathToID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	upper := strings.ToUpper(strings.ReplaceAll(stem, "_", "-"))

	re := regexp.MustCompile(`^([A-Z]+-\d+)`)
	if m := re.FindString(upper); m != "" {
		return m
	}
	return upper
}
