// Package validate checks documents against the schema and reports
// diagnostics with stable codes.
package validate

import (
	"fmt"
	"strings"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one structured observation about a document or corpus.
// Codes are stable strings prefixed by dimension: F (field), S (section),
// R (reference), U (user), T (type count), G (graph), E (I/O or parse).
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location string   `json:"location"`
	Hint     string   `json:"hint,omitempty"`
}

// Display renders the diagnostic in the human-readable report form.
func (d Diagnostic) Display() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s[%s]: %s\n", d.Severity, d.Code, d.Message)
	if d.Location != "" {
		fmt.Fprintf(&sb, "    --> %s\n", d.Location)
	}
	if d.Hint != "" {
		fmt.Fprintf(&sb, "    = hint: %s\n", d.Hint)
	}
	return sb.String()
}

// Compact renders the one-line form code:severity:location:message.
func (d Diagnostic) Compact() string {
	return fmt.Sprintf("%s:%s:%s:%s", d.Code, d.Severity, d.Location, d.Message)
}

func errorf(code, location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Location: location, Message: fmt.Sprintf(format, args...)}
}

func warnf(code, location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Location: location, Message: fmt.Sprintf(format, args...)}
}

// FileResult groups the diagnostics of one document.
type FileResult struct {
	Path        string       `json:"path"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Errors returns the error-severity diagnostics.
func (r *FileResult) Errors() []Diagnostic {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity diagnostics.
func (r *FileResult) Warnings() []Diagnostic {
	return r.filter(SeverityWarning)
}

func (r *FileResult) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// IsOK reports whether the file produced no diagnostics at all.
func (r *FileResult) IsOK() bool {
	return len(r.Diagnostics) == 0
}

// Result aggregates the validation of a directory.
type Result struct {
	Files []FileResult `json:"files"`
}

// HasErrors reports whether any file carries an error-severity diagnostic.
func (r *Result) HasErrors() bool {
	for _, f := range r.Files {
		if len(f.Errors()) > 0 {
			return true
		}
	}
	return false
}

// Counts returns the total number of errors and warnings.
func (r *Result) Counts() (errors, warnings int) {
	for _, f := range r.Files {
		errors += len(f.Errors())
		warnings += len(f.Warnings())
	}
	return errors, warnings
}

// ToReport renders the human-readable validation report.
func (r *Result) ToReport() string {
	var sb strings.Builder
	for _, f := range r.Files {
		if f.IsOK() {
			continue
		}
		sb.WriteString(f.Path)
		sb.WriteString("\n")
		for _, d := range f.Diagnostics {
			sb.WriteString(d.Display())
		}
		sb.WriteString("\n")
	}
	errs, warns := r.Counts()
	if errs == 0 && warns == 0 {
		sb.WriteString("All documents valid.\n")
	} else {
		fmt.Fprintf(&sb, "%d error(s), %d warning(s) in %d file(s)\n", errs, warns, len(r.Files))
	}
	return sb.String()
}

// ToCompactReport renders one line per diagnostic, prefixing the location
// with the file path.
func (r *Result) ToCompactReport() string {
	var sb strings.Builder
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			line := d
			line.Location = f.Path + ":" + d.Location
			sb.WriteString(line.Compact())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
