package post

import (
	"net/http"

	"Commons/internal/api/handlers"
	"Commons/internal/core/posts"
)

// ListHandler serves the post list once; live clients use the websocket feed
type ListHandler struct {
	projection *posts.ListProjection
}

// NewListHandler creates a new list handler
func NewListHandler(projection *posts.ListProjection) *ListHandler {
	return &ListHandler{
		projection: projection,
	}
}

// HandleList handles GET /api/posts
func (h *ListHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snap, err := h.projection.List(r.Context())
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, handlers.NewListView(snap))
}
