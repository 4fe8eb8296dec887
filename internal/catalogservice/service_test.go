package catalogservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/testutil"
)

func TestListBottlenecks(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	ctx := context.Background()

	all, err := svc.ListBottlenecks(ctx, "")
	if err != nil {
		t.Fatalf("ListBottlenecks: %v", err)
	}
	if len(all) != 3 || all[0].Slug != "reading-genomes" {
		t.Fatalf("bottlenecks = %+v", all)
	}

	physics, err := svc.ListBottlenecks(ctx, "physics")
	if err != nil {
		t.Fatalf("ListBottlenecks(physics): %v", err)
	}
	if len(physics) != 1 || physics[0].ID != "b2" {
		t.Fatalf("physics = %+v", physics)
	}

	uncategorized, _ := svc.ListBottlenecks(ctx, models.UncategorizedFieldID)
	if len(uncategorized) != 1 || uncategorized[0].ID != "b3" {
		t.Fatalf("uncategorized = %+v", uncategorized)
	}
}

func TestListOtherKinds(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	ctx := context.Background()

	caps, err := svc.ListCapabilities(ctx)
	if err != nil || len(caps) != 2 {
		t.Fatalf("capabilities = %+v, %v", caps, err)
	}
	res, err := svc.ListResources(ctx)
	if err != nil || len(res) != 2 {
		t.Fatalf("resources = %+v, %v", res, err)
	}
	fields, err := svc.ListFields(ctx)
	if err != nil || len(fields) != 2 || fields[0].Name != "Biology" || fields[0].Slug != "biology" {
		t.Fatalf("fields = %+v, %v", fields, err)
	}
	for _, f := range fields {
		if f.Tags == nil {
			t.Errorf("field %s has nil tags", f.ID)
		}
	}
}

func TestGetBottleneck(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	b, err := svc.GetBottleneck(context.Background(), "measuring-qubits")
	if err != nil {
		t.Fatalf("GetBottleneck: %v", err)
	}
	if b.Field.Name != "Physics" || len(b.Capabilities) != 1 || b.Capabilities[0].Resources[0].ID != "r2" {
		t.Fatalf("bottleneck = %+v", b)
	}

	if _, err := svc.GetBottleneck(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetBottleneck(context.Background(), " "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetCapability(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	c, err := svc.GetCapability(context.Background(), "cheap-sequencing")
	if err != nil {
		t.Fatalf("GetCapability: %v", err)
	}
	if c.Rank != 3 || len(c.Resources) != 1 {
		t.Fatalf("capability = %+v", c)
	}
}

func TestSearch(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	ctx := context.Background()

	hits, err := svc.Search(ctx, "nanopore", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Kind != models.KindResource {
		t.Fatalf("hits = %+v", hits)
	}

	if _, err := svc.Search(ctx, "", "", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("empty query err = %v", err)
	}
	if _, err := svc.Search(ctx, "x", "tag", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("bad kind err = %v", err)
	}
}

func TestGraphAndStatus(t *testing.T) {
	svc := NewService(testutil.LoadedDB(t))
	ctx := context.Background()

	nodes, links, err := svc.Graph(ctx)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 9 || len(links) != 6 {
		t.Fatalf("graph = %d nodes, %d links", len(nodes), len(links))
	}

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Loaded || st.Checksum != "sample" || st.GeneratedAt == nil || st.Counts[models.KindBottleneck] != 3 {
		t.Fatalf("status = %+v", st)
	}
}

func TestStatusEmpty(t *testing.T) {
	svc := NewService(testutil.TestDB(t))
	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Loaded || st.GeneratedAt != nil {
		t.Fatalf("status = %+v", st)
	}
}
