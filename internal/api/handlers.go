package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gapmap/internal/catalogservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *catalogservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *catalogservice.Service) *Handler {
	return &Handler{svc: svc}
}

func writeList(w http.ResponseWriter, items []Summary) {
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Total: len(items)})
}

// ListBottlenecks handles GET /api/bottlenecks.
//
//	@Summary		List bottlenecks ordered by number
//	@Tags			bottlenecks
//	@Produce		json
//	@Param			field	query		string	false	"Field ID or slug"
//	@Success		200		{object}	ListResponse
//	@Security		BearerAuth
//	@Router			/bottlenecks [get]
func (h *Handler) ListBottlenecks(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListBottlenecks(r.Context(), r.URL.Query().Get("field"))
	if err != nil {
		writeError(w, "list bottlenecks", err)
		return
	}
	writeList(w, items)
}

// GetBottleneck handles GET /api/bottlenecks/{slug}.
//
//	@Summary		Get a bottleneck by slug or ID
//	@Tags			bottlenecks
//	@Produce		json
//	@Param			slug	path		string	true	"Bottleneck slug"
//	@Success		200		{object}	BottleneckDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bottlenecks/{slug} [get]
func (h *Handler) GetBottleneck(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBottleneck(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get bottleneck", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListCapabilities handles GET /api/capabilities.
//
//	@Summary		List foundational capabilities
//	@Tags			capabilities
//	@Produce		json
//	@Success		200	{object}	ListResponse
//	@Security		BearerAuth
//	@Router			/capabilities [get]
func (h *Handler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCapabilities(r.Context())
	if err != nil {
		writeError(w, "list capabilities", err)
		return
	}
	writeList(w, items)
}

// GetCapability handles GET /api/capabilities/{slug}.
//
//	@Summary		Get a capability by slug or ID
//	@Tags			capabilities
//	@Produce		json
//	@Param			slug	path		string	true	"Capability slug"
//	@Success		200		{object}	CapabilityDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/capabilities/{slug} [get]
func (h *Handler) GetCapability(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCapability(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get capability", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListResources handles GET /api/resources.
//
//	@Summary		List resources
//	@Tags			resources
//	@Produce		json
//	@Success		200	{object}	ListResponse
//	@Security		BearerAuth
//	@Router			/resources [get]
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListResources(r.Context())
	if err != nil {
		writeError(w, "list resources", err)
		return
	}
	writeList(w, items)
}

// ListFields handles GET /api/fields.
//
//	@Summary		List fields
//	@Tags			fields
//	@Produce		json
//	@Success		200	{object}	ListResponse
//	@Security		BearerAuth
//	@Router			/fields [get]
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListFields(r.Context())
	if err != nil {
		writeError(w, "list fields", err)
		return
	}
	writeList(w, items)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the catalog
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			kind	query		string	false	"Entity kind"	Enums(resource, field, capability, bottleneck)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	results, err := h.svc.Search(r.Context(), q.Get("q"), q.Get("kind"), limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the catalog relationship graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// Status handles GET /api/status.
//
//	@Summary		Describe the loaded catalog
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
