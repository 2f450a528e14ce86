package api

import (
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/search"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

// Service coordinates storage, the validation cache, and the graph for the
// API layer.
type Service struct {
	store  storage.Provider
	db     *index.DB
	schema *schema.Schema
}

// NewService creates a new API service.
func NewService(store storage.Provider, db *index.DB, s *schema.Schema) *Service {
	return &Service{store: store, db: db, schema: s}
}

// DocumentDetail is the response payload for a single document.
type DocumentDetail struct {
	models.DocSummary
	Content     string                `json:"content"`
	Diagnostics []validate.Diagnostic `json:"diagnostics"`
	Backlinks   []models.Link         `json:"backlinks"`
}

// ValidationSummary aggregates the cached diagnostics of the whole corpus.
type ValidationSummary struct {
	Files    int                 `json:"files"`
	Errors   int                 `json:"errors"`
	Warnings int                 `json:"warnings"`
	Failing  []models.DocSummary `json:"failing"`
}

// ListDocuments returns the indexed documents, optionally filtered by type
// and status.
func (s *Service) ListDocuments(typ, status string) ([]models.DocSummary, error) {
	return s.db.ListDocuments(typ, status)
}

// GetDocument reads a document from storage and enriches it with the cached
// diagnostics and backlinks.
func (s *Service) GetDocument(path string) (*DocumentDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{Content: string(data)}
	if sum, _ := s.db.GetDocument(path); sum != nil {
		detail.DocSummary = *sum
	} else {
		detail.Path = path
		detail.ID = validate.PathToID(path)
	}

	diags, err := s.db.Diagnostics(path)
	if err != nil {
		return nil, err
	}
	if diags == nil {
		diags = []validate.Diagnostic{}
	}
	detail.Diagnostics = diags

	bl, err := s.db.Backlinks(detail.ID)
	if err != nil {
		return nil, err
	}
	if bl == nil {
		bl = []models.Link{}
	}
	detail.Backlinks = bl

	return detail, nil
}

// Summary aggregates error and warning counts across the cache.
func (s *Service) Summary() (*ValidationSummary, error) {
	docs, err := s.db.ListDocuments("", "")
	if err != nil {
		return nil, err
	}
	out := &ValidationSummary{Files: len(docs), Failing: []models.DocSummary{}}
	for _, d := range docs {
		out.Errors += d.Errors
		out.Warnings += d.Warnings
		if d.Errors > 0 || d.Warnings > 0 {
			out.Failing = append(out.Failing, d)
		}
	}
	return out, nil
}

// Graph builds the relation graph from the corpus on disk.
func (s *Service) Graph() (*graph.Graph, error) {
	return graph.FromDirectory(s.store.Root(), s.schema)
}

// Search scans the corpus for the query.
func (s *Service) Search(query string, opts search.Options) ([]search.Result, error) {
	results, err := search.Directory(s.store.Root(), query, opts)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []search.Result{}
	}
	return results, nil
}
