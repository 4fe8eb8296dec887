package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gapmap/internal/catalogservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(svc *catalogservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/bottlenecks", h.ListBottlenecks)
	r.Get("/bottlenecks/{slug}", h.GetBottleneck)
	r.Get("/capabilities", h.ListCapabilities)
	r.Get("/capabilities/{slug}", h.GetCapability)
	r.Get("/resources", h.ListResources)
	r.Get("/fields", h.ListFields)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/status", h.Status)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
