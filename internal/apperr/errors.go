// Package apperr defines the sentinel errors shared across the corpus packages.
package apperr

import "errors"

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrNoFrontmatter    = errors.New("document has no frontmatter")
	ErrFrontmatterParse = errors.New("invalid frontmatter")
	ErrSectionNotFound  = errors.New("section not found")
	ErrTableNotFound    = errors.New("table not found")
	ErrColumnNotFound   = errors.New("column not found")
	ErrCellNotFound     = errors.New("cell not found")
	ErrRowOutOfBounds   = errors.New("row index out of bounds")
	ErrSchemaParse      = errors.New("invalid schema")
	ErrNoPath           = errors.New("document has no path")
	ErrWriteFailed      = errors.New("write failed")
)
