package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/notion/notiontest"
	"github.com/starford/gapmap/internal/render"
)

var edited = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newProcessors(content ContentRenderer) *Processors {
	return New(content, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type stubRenderer struct {
	body  string
	err   error
	calls int
}

func (s *stubRenderer) PageMarkdown(context.Context, string) (string, error) {
	s.calls++
	return s.body, s.err
}

func TestClampRank(t *testing.T) {
	for _, r := range []int{-100, -1, 0, 1, 2, 3, 4, 5, 6, 1000} {
		want := max(0, min(5, r))
		if got := ClampRank(r); got != want {
			t.Errorf("ClampRank(%d) = %d, want %d", r, got, want)
		}
	}
}

func TestResource(t *testing.T) {
	page := notiontest.NewPage("res-1", edited, map[string]any{
		"Title":         notiontest.Title("  Protein folding atlas "),
		"URL":           notiontest.URL("https://example.org/atlas"),
		"Content":       notiontest.RichText("Inline summary"),
		"Resource Type": notiontest.MultiSelect("Dataset", "Publication", "Dataset"),
	})
	stub := &stubRenderer{body: "unused"}
	res := newProcessors(stub).Resource(context.Background(), page)
	if res.Err != nil || res.Fallback {
		t.Fatalf("unexpected result: %+v", res)
	}
	r := res.Value
	if r.Title != "Protein folding atlas" {
		t.Errorf("title = %q", r.Title)
	}
	if r.URL != "https://example.org/atlas" {
		t.Errorf("url = %q", r.URL)
	}
	if r.Content != "Inline summary" {
		t.Errorf("content = %q", r.Content)
	}
	if len(r.ResourceTypes) != 2 || r.ResourceTypes[0] != "Dataset" || r.ResourceTypes[1] != "Publication" {
		t.Errorf("resource types = %v", r.ResourceTypes)
	}
	if stub.calls != 0 {
		t.Errorf("renderer called %d times for inline content", stub.calls)
	}
	if !r.LastEditedTime.Equal(edited) {
		t.Errorf("last edited = %v", r.LastEditedTime)
	}
}

func TestResource_NameFallbackTitleProperty(t *testing.T) {
	page := notiontest.NewPage("res-2", edited, map[string]any{
		"Name": notiontest.Title("Named resource"),
	})
	res := newProcessors(nil).Resource(context.Background(), page)
	if res.Value.Title != "Named resource" {
		t.Fatalf("title = %q", res.Value.Title)
	}
}

func TestField_RendersBodyWhenDescriptionEmpty(t *testing.T) {
	src := notiontest.NewSource()
	src.Blocks["field-1"] = []notion.Block{notiontest.Paragraph("b1", "Body text.")}
	renderer := render.NewRenderer(src, nil)

	page := notiontest.NewPage("field-1", edited, map[string]any{
		"Name":        notiontest.Title("Biology"),
		"Description": notiontest.RichText(""),
	})
	res := newProcessors(renderer).Field(context.Background(), page)
	if res.Err != nil {
		t.Fatalf("Field: %v", res.Err)
	}
	if res.Value.Name != "Biology" || res.Value.Description != "Body text." {
		t.Fatalf("field = %+v", res.Value)
	}
	if src.BlockCalls("field-1") != 1 {
		t.Fatalf("block calls = %d", src.BlockCalls("field-1"))
	}
}

func TestField_RenderFailureKeepsRecord(t *testing.T) {
	page := notiontest.NewPage("field-2", edited, map[string]any{
		"Name": notiontest.Title("Physics"),
	})
	res := newProcessors(&stubRenderer{err: errors.New("boom")}).Field(context.Background(), page)
	if res.Fallback {
		t.Fatal("render failure should not produce a fallback record")
	}
	if res.Err == nil {
		t.Fatal("expected the render failure to be recorded")
	}
	if res.Value.Name != "Physics" || res.Value.Description != "" {
		t.Fatalf("field = %+v", res.Value)
	}
}

func TestCapability(t *testing.T) {
	resources := []models.Resource{{ID: "r1", Title: "One"}, {ID: "r2", Title: "Two"}}
	page := notiontest.NewPage("cap-1", edited, map[string]any{
		"Name":         notiontest.Title("Cheap Gene Synthesis!"),
		"Description":  notiontest.RichText("desc"),
		"Rank":         notiontest.Number(7),
		"Resources":    notiontest.Relation("r2", "missing", "r1"),
		"Tags":         notiontest.Relation("t1"),
		"Private Tags": notiontest.Relation("t2", "t2"),
	})
	res := newProcessors(nil).Capability(context.Background(), page, resources)
	if res.Err != nil {
		t.Fatalf("Capability: %v", res.Err)
	}
	c := res.Value
	if c.Slug != "cheap-gene-synthesis" {
		t.Errorf("slug = %q", c.Slug)
	}
	if c.Rank != 5 {
		t.Errorf("rank = %d, want clamped 5", c.Rank)
	}
	if len(c.Resources) != 2 || c.Resources[0].Title != "Two" || c.Resources[1].Title != "One" {
		t.Errorf("resources = %+v", c.Resources)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "t1" {
		t.Errorf("tags = %v", c.Tags)
	}
	if len(c.PrivateTags) != 1 || c.PrivateTags[0] != "t2" {
		t.Errorf("private tags = %v", c.PrivateTags)
	}
}

func TestBottleneck_UnresolvedFieldIsUncategorized(t *testing.T) {
	fields := []models.Field{{ID: "f1", Name: "Biology"}}
	caps := []models.Capability{{ID: "c1", Name: "Cap"}}
	page := notiontest.NewPage("bn-1", edited, map[string]any{
		"Name":                      notiontest.Title("Slow assays"),
		"Description":               notiontest.RichText("desc"),
		"Rank":                      notiontest.Number(-3),
		"Number":                    notiontest.Number(12),
		"Field":                     notiontest.Relation("f-missing"),
		"Foundational Capabilities": notiontest.Relation("c1"),
	})
	res := newProcessors(nil).Bottleneck(context.Background(), page, fields, caps)
	b := res.Value
	if b.Field != models.UncategorizedField() {
		t.Fatalf("field = %+v, want Uncategorized", b.Field)
	}
	if b.Rank != 0 || b.Number != 12 {
		t.Errorf("rank/number = %d/%d", b.Rank, b.Number)
	}
	if len(b.Capabilities) != 1 || b.Capabilities[0].Name != "Cap" {
		t.Errorf("capabilities = %+v", b.Capabilities)
	}
	if b.Tags == nil || b.PrivateTags == nil {
		t.Error("tag slices should be empty, not nil")
	}
}

func TestBottleneck_ResolvesField(t *testing.T) {
	fields := []models.Field{{ID: "f1", Name: "Biology"}}
	page := notiontest.NewPage("bn-2", edited, map[string]any{
		"Name":  notiontest.Title("Gap"),
		"Field": notiontest.Relation("f1"),
	})
	res := newProcessors(nil).Bottleneck(context.Background(), page, fields, nil)
	if res.Value.Field.Name != "Biology" {
		t.Fatalf("field = %+v", res.Value.Field)
	}
}

func TestBottleneck_MalformedPropertiesUseDefaults(t *testing.T) {
	page := notiontest.NewPage("bn-3", edited, map[string]any{
		"Rank":  notiontest.Title("not a number"),
		"Field": notiontest.Relation("f1"),
	})
	page.Properties["Name"] = json.RawMessage(`{"type":"title","title":"oops"}`)

	res := newProcessors(nil).Bottleneck(context.Background(), page, []models.Field{{ID: "f1", Name: "Bio"}}, nil)
	if res.Fallback {
		t.Fatal("field-level errors should not produce a fallback record")
	}
	if res.Err == nil {
		t.Fatal("expected field errors")
	}
	b := res.Value
	if b.Name != DefaultTitle || b.Slug != "untitled" {
		t.Errorf("name/slug = %q/%q", b.Name, b.Slug)
	}
	if b.Rank != 0 {
		t.Errorf("rank = %d", b.Rank)
	}
	if b.Field.Name != "Bio" {
		t.Errorf("field = %+v", b.Field)
	}
}

func TestFallbackRecord(t *testing.T) {
	page := notion.Page{ID: "0a1b2c3d-4e5f-6789-abcd-ef0123456789", LastEditedTime: edited}
	res := newProcessors(nil).Bottleneck(context.Background(), page, nil, nil)
	if !res.Fallback || res.Err == nil {
		t.Fatalf("expected fallback result, got %+v", res)
	}
	b := res.Value
	if b.Name != "Untitled 0a1b2c3d" || b.Slug != "untitled-0a1b2c3d" {
		t.Errorf("name/slug = %q/%q", b.Name, b.Slug)
	}
	if b.Field.ID != models.UncategorizedFieldID {
		t.Errorf("field = %+v", b.Field)
	}
}

func TestTag(t *testing.T) {
	page := notiontest.NewPage("t1", edited, map[string]any{"Name": notiontest.Title("Open source")})
	res := newProcessors(nil).Tag(context.Background(), page)
	if res.Value.Name != "Open source" || res.Value.ID != "t1" {
		t.Fatalf("tag = %+v", res.Value)
	}
}
