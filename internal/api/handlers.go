package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from the URL (everything after
// /api/documents/). Supports encoded slashes from generated clients
// (e.g. decisions%2Fadr-001.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents with optional filtering
//	@Tags			documents
//	@Produce		json
//	@Param			type	query		string	false	"Filter by document type"
//	@Param			status	query		string	false	"Filter by status"
//	@Success		200		{object}	DocListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.svc.ListDocuments(q.Get("type"), q.Get("status"))
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single document with diagnostics and backlinks
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.GetDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get document failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Summary handles GET /api/validation.
//
//	@Summary		Corpus-wide validation summary from the cache
//	@Tags			validation
//	@Produce		json
//	@Success		200	{object}	ValidationSummary
//	@Security		BearerAuth
//	@Router			/validation [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary()
	if err != nil {
		slog.Error("validation summary failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the relation graph
//	@Tags			graph
//	@Produce		json
//	@Param			format	query		string	false	"Output format"	Enums(json, mermaid, dot)
//	@Param			type	query		string	false	"Render only documents of this type (mermaid and dot)"
//	@Success		200		{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph()
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	typeFilter := r.URL.Query().Get("type")
	switch r.URL.Query().Get("format") {
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(g.ToMermaid(typeFilter)))
		return
	case "dot":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(g.ToDot(typeFilter)))
		return
	}

	nodes := make([]GraphNode, 0)
	for _, n := range g.Nodes() {
		nodes = append(nodes, GraphNode{ID: n.ID, Path: n.Path, Type: n.Type, Title: n.Title, Status: n.Status})
	}
	edges := make([]GraphEdge, 0)
	for _, e := range g.Edges() {
		edges = append(edges, GraphEdge{From: e.From, To: e.To, Relation: e.Relation})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"edges": edges,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Search frontmatter fields and body text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			section	query		string	false	"Restrict to one section"
//	@Param			field	query		string	false	"Restrict to one frontmatter field"
//	@Param			limit	query		int		false	"Max result documents"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	opts := search.Options{
		Section:    r.URL.Query().Get("section"),
		Field:      r.URL.Query().Get("field"),
		MaxResults: limit,
	}
	results, err := h.svc.Search(q, opts)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
