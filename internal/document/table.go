package document

import (
	"fmt"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

// Table is a GFM table value object: an ordered header row plus data rows.
// Mutations keep every row's cell count equal to the header count.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the index of a header cell, matched case-insensitively.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperr.ErrColumnNotFound, name)
}

// GetCell returns the cell at (column name, row index).
func (t *Table) GetCell(column string, row int) (string, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= len(t.Rows) {
		return "", fmt.Errorf("%w: row %d of %d", apperr.ErrRowOutOfBounds, row, len(t.Rows))
	}
	cells := t.Rows[row]
	if col >= len(cells) {
		return "", fmt.Errorf("%w: %q row %d", apperr.ErrCellNotFound, column, row)
	}
	return cells[col], nil
}

// SetCell assigns the cell at (column name, row index), padding the row to
// the header width first when it is short.
func (t *Table) SetCell(column string, row int, value string) error {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("%w: row %d of %d", apperr.ErrRowOutOfBounds, row, len(t.Rows))
	}
	t.Rows[row] = padRow(t.Rows[row], len(t.Header))
	t.Rows[row][col] = value
	return nil
}

// AddRow appends a data row, padded or truncated to the header width.
func (t *Table) AddRow(values []string) {
	t.Rows = append(t.Rows, padRow(values, len(t.Header)))
}

func padRow(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}

// ToMarkdown renders the table in GFM form, one trailing newline included.
func (t *Table) ToMarkdown() string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(c)
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	writeRow(t.Header)
	sb.WriteString("|")
	for range t.Header {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(padRow(row, len(t.Header)))
	}
	return sb.String()
}

// ToText renders the table with columns aligned by padding.
func (t *Table) ToText() string {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) && len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, w := range widths {
			c := ""
			if i < len(cells) {
				c = cells[i]
			}
			sb.WriteString(c)
			sb.WriteString(strings.Repeat(" ", w-len(c)))
			if i < len(widths)-1 {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}
	writeRow(t.Header)
	for _, row := range t.Rows {
		writeRow(row)
	}
	return sb.String()
}

// ToJSON projects each row into a map keyed by header cell.
func (t *Table) ToJSON() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				obj[h] = row[i]
			} else {
				obj[h] = ""
			}
		}
		out = append(out, obj)
	}
	return out
}
