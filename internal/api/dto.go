package api

import (
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/search"
)

// DocListResponse wraps document listings.
type DocListResponse struct {
	Documents []models.DocSummary `json:"documents" validate:"required"`
	Total     int                 `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results" validate:"required"`
}

// GraphResponse wraps the relation graph in JSON form.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Edges []GraphEdge `json:"edges" validate:"required"`
}

// GraphNode is a node in the relation graph.
type GraphNode struct {
	ID     string `json:"id" example:"ADR-001" validate:"required"`
	Path   string `json:"path" example:"decisions/adr-001.md"`
	Type   string `json:"type" example:"adr"`
	Title  string `json:"title,omitempty" example:"Use Postgres"`
	Status string `json:"status,omitempty" example:"accepted"`
}

// GraphEdge is an edge in the relation graph.
type GraphEdge struct {
	From     string `json:"from" example:"ADR-002" validate:"required"`
	To       string `json:"to" example:"ADR-001" validate:"required"`
	Relation string `json:"relation" example:"supersedes" validate:"required"`
}
