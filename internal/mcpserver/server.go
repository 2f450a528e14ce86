// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the corpus tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/search"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

// Server wraps the MCP server with the corpus tools.
type Server struct {
	mcp       *server.MCPServer
	store     storage.Provider
	db        *index.DB
	schema    *schema.Schema
	validator *validate.Validator
}

// New creates a new MCP server with all corpus tools registered.
func New(store storage.Provider, db *index.DB, s *schema.Schema, v *validate.Validator) *Server {
	srv := &Server{store: store, db: db, schema: s, validator: v}

	srv.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.mcp.AddTool(mcp.NewTool("validate_document",
		mcp.WithDescription("Validate one Markdown document against the corpus schema and report diagnostics."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. decisions/adr-001.md)")),
	), srv.validateDocument)

	srv.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search frontmatter fields and body text across the corpus."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), srv.searchDocuments)

	srv.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read the full content of a Markdown document. "+
			"Documents follow the typed format (YAML frontmatter with a type field, "+
			"schema-validated). Read the contract first via the get_document_contract "+
			"tool or the raido://document-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (must end with .md)")),
	), srv.getDocument)

	srv.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical document format contract. "+
			"Call this before creating or updating documents to ensure correct structure."),
	), srv.getDocumentContract)

	srv.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List indexed documents with their type, status, and diagnostic counts."),
		mcp.WithString("type", mcp.Description("Optional document type filter")),
		mcp.WithString("status", mcp.Description("Optional status filter")),
	), srv.listDocuments)

	srv.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents whose relation fields reference the given document ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document ID to find backlinks for (e.g. ADR-001)")),
	), srv.getBacklinks)

	srv.mcp.AddTool(mcp.NewTool("next_id",
		mcp.WithDescription("Return the next free document ID for a prefix (e.g. ADR -> ADR-007)."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("ID prefix such as ADR or RFC")),
	), srv.nextID)

	// Resource: document format contract.
	srv.mcp.AddResource(
		mcp.NewResource("raido://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical typed Markdown document format that all corpus documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		srv.readDocumentFormatResource,
	)

	return srv
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) validateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	doc, err := document.FromString(string(data))
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("E000 error: failed to parse: %v", err)), nil
	}
	doc.Path = path

	diags := s.validator.ValidateDocument(doc)
	if len(diags) == 0 {
		return mcp.NewToolResultText("document is valid"), nil
	}
	var lines []string
	for _, d := range diags {
		lines = append(lines, d.Display())
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := search.Directory(s.store.Root(), query, search.Options{MaxResults: 20})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := ""
	if v, err := req.RequireString("type"); err == nil {
		typ = v
	}
	status := ""
	if v, err := req.RequireString("status"); err == nil {
		status = v
	}

	docs, err := s.db.ListDocuments(typ, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%s\t%d error(s), %d warning(s)",
			d.Path, d.ID, d.Type, d.Status, d.Errors, d.Warnings))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.db.Backlinks(strings.ToUpper(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	var lines []string
	for _, l := range bl {
		lines = append(lines, fmt.Sprintf("%s\t%s", l.Source, l.Relation))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) nextID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := graph.FromDirectory(s.store.Root(), s.schema)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(g.NextID(prefix)), nil
}
