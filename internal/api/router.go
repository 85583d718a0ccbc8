package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outline/internal/tree"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(engine *tree.Engine, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(engine)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree mutations.
	r.Put("/tree/{edgeID}/moveTo/{parentID}", h.MoveTo)
	r.Put("/tree/{edgeID}/moveBefore/{anchorID}", h.MoveBefore)
	r.Put("/tree/{edgeID}/moveAfter/{anchorID}", h.MoveAfter)
	r.Put("/tree/{edgeID}/expanded/{expanded}", h.SetExpanded)

	// Reads.
	r.Get("/tree/{parentID}/children", h.Children)
	r.Get("/edges/{edgeID}", h.GetEdge)
	r.Get("/sync", h.Sync)
	r.Get("/audit", h.Audit)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
