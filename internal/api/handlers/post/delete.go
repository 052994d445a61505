package post

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers"
	"Commons/internal/core/posts"
)

// DeleteHandler handles post deletion requests
type DeleteHandler struct {
	service posts.Service
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(service posts.Service) *DeleteHandler {
	return &DeleteHandler{
		service: service,
	}
}

// HandleDelete handles DELETE /api/posts/{postID}.
// Only the author may delete; comments of the post are left in place.
func (h *DeleteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	if err := h.service.DeletePost(r.Context(), postID); err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
