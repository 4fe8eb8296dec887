// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes catalog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/catalogservice"
)

const schemaURI = "gapmap://schema"

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp *server.MCPServer
	svc *catalogservice.Service
}

// New creates a new MCP server with all catalog tools registered.
func New(svc *catalogservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Gapmap",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_catalog",
		mcp.WithDescription("Full-text search across R&D gaps, capabilities, resources and fields."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("kind", mcp.Description("Optional entity kind"),
			mcp.Enum("bottleneck", "capability", "resource", "field")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchCatalog)

	s.mcp.AddTool(mcp.NewTool("get_gap",
		mcp.WithDescription("Return an R&D gap with its field, capabilities and their resources."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Gap slug (e.g. reading-genomes)")),
	), s.getGap)

	s.mcp.AddTool(mcp.NewTool("get_capability",
		mcp.WithDescription("Return a foundational capability with its resources."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Capability slug")),
	), s.getCapability)

	s.mcp.AddTool(mcp.NewTool("list_fields",
		mcp.WithDescription("List the scientific fields that group R&D gaps."),
	), s.listFields)

	s.mcp.AddTool(mcp.NewTool("list_gaps",
		mcp.WithDescription("List R&D gaps ordered by number, optionally within one field."),
		mcp.WithString("field", mcp.Description("Optional field slug or ID")),
	), s.listGaps)

	s.mcp.AddTool(mcp.NewTool("get_catalog_schema",
		mcp.WithDescription("Returns the catalog data contract. "+
			"Call this first to learn the entity kinds and their relations."),
	), s.getCatalogSchema)

	s.mcp.AddResource(
		mcp.NewResource(schemaURI, "Catalog Schema",
			mcp.WithResourceDescription("Entity kinds, relations and invariants of the gap catalog."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error, what string) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", what))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("kind", "")
	limit := req.GetInt("limit", catalogservice.DefaultSearchLimit)

	results, err := s.svc.Search(ctx, query, kind, limit)
	if err != nil {
		return errorResult(err, query), nil
	}
	return jsonResult(results)
}

func (s *Server) getGap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.svc.GetBottleneck(ctx, slug)
	if err != nil {
		return errorResult(err, slug), nil
	}
	return jsonResult(b)
}

func (s *Server) getCapability(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.GetCapability(ctx, slug)
	if err != nil {
		return errorResult(err, slug), nil
	}
	return jsonResult(c)
}

func (s *Server) listFields(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := s.svc.ListFields(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fields)
}

func (s *Server) listGaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gaps, err := s.svc.ListBottlenecks(ctx, req.GetString("field", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(gaps)
}

func (s *Server) getCatalogSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CatalogSchemaContract), nil
}

func (s *Server) readSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "text/markdown",
			Text:     CatalogSchemaContract,
		},
	}, nil
}
