package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/gapmap/internal/catalogservice"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(catalogservice.NewService(testutil.LoadedDB(t)), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are invoked
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_catalog":
		result, err = srv.searchCatalog(ctx, req)
	case "get_gap":
		result, err = srv.getGap(ctx, req)
	case "get_capability":
		result, err = srv.getCapability(ctx, req)
	case "list_fields":
		result, err = srv.listFields(ctx, req)
	case "list_gaps":
		result, err = srv.listGaps(ctx, req)
	case "get_catalog_schema":
		result, err = srv.getCatalogSchema(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchCatalog(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_catalog", map[string]any{"query": "genomes"})
	if r.IsError {
		t.Fatalf("search failed: %s", resultText(r))
	}
	var hits []catalogservice.SearchHit
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].Slug != "reading-genomes" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchCatalog_KindFilter(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_catalog", map[string]any{"query": "sequencing", "kind": "capability", "limit": 5})
	var hits []catalogservice.SearchHit
	_ = json.Unmarshal([]byte(resultText(r)), &hits)
	for _, h := range hits {
		if h.Kind != models.KindCapability {
			t.Errorf("hit of kind %s leaked through filter", h.Kind)
		}
	}
	if len(hits) == 0 {
		t.Fatal("expected capability hits")
	}
}

func TestSearchCatalog_MissingQuery(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "search_catalog", map[string]any{}); !r.IsError {
		t.Fatal("expected error without query")
	}
}

func TestGetGap(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_gap", map[string]any{"slug": "reading-genomes"})
	if r.IsError {
		t.Fatalf("get_gap failed: %s", resultText(r))
	}
	var b models.Bottleneck
	if err := json.Unmarshal([]byte(resultText(r)), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Field.Name != "Biology" || len(b.Capabilities) != 1 {
		t.Fatalf("gap = %+v", b)
	}

	r = callTool(t, srv, "get_gap", map[string]any{"slug": "nope"})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Fatalf("missing gap result = %q", resultText(r))
	}
}

func TestGetCapability(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_capability", map[string]any{"slug": "quantum-sensors"})
	if r.IsError || !strings.Contains(resultText(r), "Magnetometry dataset") {
		t.Fatalf("capability result = %q", resultText(r))
	}
}

func TestListFieldsAndGaps(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_fields", map[string]any{})
	if !strings.Contains(resultText(r), "Physics") {
		t.Fatalf("fields = %q", resultText(r))
	}

	r = callTool(t, srv, "list_gaps", map[string]any{"field": "biology"})
	var gaps []catalogservice.Summary
	_ = json.Unmarshal([]byte(resultText(r)), &gaps)
	if len(gaps) != 1 || gaps[0].ID != "b1" {
		t.Fatalf("gaps = %+v", gaps)
	}
}

func TestCatalogSchema(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_catalog_schema", map[string]any{})
	if resultText(r) != CatalogSchemaContract {
		t.Fatal("schema tool should return the contract")
	}
	contents, err := srv.readSchemaResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != schemaURI {
		t.Fatalf("resource contents = %+v", contents[0])
	}
}
