package api

import (
	"github.com/starford/gapmap/internal/catalogservice"
	"github.com/starford/gapmap/internal/models"
)

// Summary is a list item (aliased from the domain layer).
type Summary = catalogservice.Summary

// ListResponse wraps a listing of one entity kind.
type ListResponse struct {
	Items []Summary `json:"items" validate:"required"`
	Total int       `json:"total" example:"42" validate:"required"`
}

// BottleneckDetail is a fully resolved bottleneck.
type BottleneckDetail = models.Bottleneck

// CapabilityDetail is a fully resolved capability.
type CapabilityDetail = models.Capability

// SearchResult is a single search hit in the API response.
type SearchResult = catalogservice.SearchHit

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a node in the catalog graph.
type GraphNode = catalogservice.GraphNode

// GraphLink is an edge in the catalog graph.
type GraphLink = catalogservice.GraphLink

// GraphResponse wraps the catalog graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}

// StatusResponse describes the loaded catalog.
type StatusResponse = catalogservice.Status
