// Package catalogservice exposes read operations over the indexed catalog.
package catalogservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/index"
	"github.com/starford/gapmap/internal/models"
)

// DefaultSearchLimit applies when callers pass no limit.
const DefaultSearchLimit = 20

// MaxSearchLimit caps search results.
const MaxSearchLimit = 100

// Summary is a lightweight item in a list response.
type Summary struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Rank        int      `json:"rank"`
	Number      int      `json:"number,omitempty"`
	FieldID     string   `json:"fieldId,omitempty"`
	Tags        []string `json:"tags"`
}

// SearchHit is one search result.
type SearchHit struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// GraphNode is a node of the relationship graph.
type GraphNode struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Rank    int    `json:"rank"`
	FieldID string `json:"fieldId,omitempty"`
}

// GraphLink is an edge of the relationship graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Status describes the loaded catalog.
type Status struct {
	Loaded      bool           `json:"loaded"`
	Checksum    string         `json:"checksum,omitempty"`
	GeneratedAt *time.Time     `json:"generatedAt,omitempty"`
	Counts      map[string]int `json:"counts"`
}

// Service answers catalog queries from the index.
type Service struct {
	db index.CatalogIndex
}

// NewService creates a new catalog service.
func NewService(db index.CatalogIndex) *Service {
	return &Service{db: db}
}

// ListBottlenecks returns bottlenecks ordered by number, optionally limited
// to one field given by ID or slug.
func (s *Service) ListBottlenecks(_ context.Context, field string) ([]Summary, error) {
	return s.list(models.KindBottleneck, field)
}

// ListCapabilities returns capabilities ordered by name.
func (s *Service) ListCapabilities(_ context.Context) ([]Summary, error) {
	return s.list(models.KindCapability, "")
}

// ListResources returns resources ordered by title.
func (s *Service) ListResources(_ context.Context) ([]Summary, error) {
	return s.list(models.KindResource, "")
}

// ListFields returns fields ordered by name.
func (s *Service) ListFields(_ context.Context) ([]Summary, error) {
	return s.list(models.KindField, "")
}

func (s *Service) list(kind, field string) ([]Summary, error) {
	rows, err := s.db.List(kind, field)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(rows))
	for i, r := range rows {
		out[i] = Summary{
			ID:          r.ID,
			Slug:        r.Slug,
			Name:        r.Name,
			Description: r.Description,
			Rank:        r.Rank,
			Number:      r.Number,
			FieldID:     r.FieldID,
			Tags:        nonNilSlice(r.Tags),
		}
	}
	return out, nil
}

// GetBottleneck returns the bottleneck with the given slug or ID.
func (s *Service) GetBottleneck(_ context.Context, slug string) (*models.Bottleneck, error) {
	var b models.Bottleneck
	if err := s.get(models.KindBottleneck, slug, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetCapability returns the capability with the given slug or ID.
func (s *Service) GetCapability(_ context.Context, slug string) (*models.Capability, error) {
	var c models.Capability
	if err := s.get(models.KindCapability, slug, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) get(kind, key string, v any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s slug is required: %w", kind, apperr.ErrInvalidInput)
	}
	data, err := s.db.Get(kind, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("catalogservice: decode %s: %w", kind, err)
	}
	return nil
}

// Search runs a full-text query. kind is optional and must be one of the
// indexed entity kinds.
func (s *Service) Search(_ context.Context, query, kind string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", apperr.ErrInvalidInput)
	}
	if kind != "" && !IsKind(kind) {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	results, err := s.db.Search(query, kind, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchHit, len(results))
	for i, r := range results {
		out[i] = SearchHit(r)
	}
	return out, nil
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]GraphNode, []GraphLink, error) {
	nodes, links, err := s.db.Graph()
	if err != nil {
		return nil, nil, err
	}
	outNodes := make([]GraphNode, len(nodes))
	for i, n := range nodes {
		outNodes[i] = GraphNode(n)
	}
	outLinks := make([]GraphLink, len(links))
	for i, l := range links {
		outLinks[i] = GraphLink(l)
	}
	return outNodes, outLinks, nil
}

// Status reports whether a catalog is loaded and how large it is.
func (s *Service) Status(_ context.Context) (*Status, error) {
	st, err := s.db.Status()
	if err != nil {
		return nil, err
	}
	out := &Status{
		Loaded:   st.Checksum != "",
		Checksum: st.Checksum,
		Counts:   st.Counts,
	}
	if !st.GeneratedAt.IsZero() {
		out.GeneratedAt = &st.GeneratedAt
	}
	return out, nil
}

// IsKind reports whether kind names an indexed entity kind.
func IsKind(kind string) bool {
	switch kind {
	case models.KindBottleneck, models.KindCapability, models.KindResource, models.KindField:
		return true
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
