package index

import (
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/validate"
)

// DocIndex defines the interface for validation-cache operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type DocIndex interface {
	UpsertDocument(row DocRow, diags []validate.Diagnostic, links []models.Link) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*models.DocSummary, error)
	ListDocuments(typ, status string) ([]models.DocSummary, error)
	Diagnostics(path string) ([]validate.Diagnostic, error)
	Backlinks(targetID string) ([]models.Link, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocIndex at compile time.
var _ DocIndex = (*DB)(nil)
