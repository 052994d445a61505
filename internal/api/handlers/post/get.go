package post

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers"
	"Commons/internal/core/errs"
	"Commons/internal/core/threads"
)

// GetHandler serves a post with its comments
type GetHandler struct {
	detail *threads.DetailProjection
}

// NewGetHandler creates a new get handler
func NewGetHandler(detail *threads.DetailProjection) *GetHandler {
	return &GetHandler{
		detail: detail,
	}
}

// HandleGet handles GET /api/posts/{postID}.
// Reading a post does not count a view; clients call HandleView once per open.
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	snap, err := h.detail.Get(r.Context(), postID)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}
	if !snap.Found() {
		handlers.HandleServiceError(w, errs.NewNotFoundError("post", postID))
		return
	}

	handlers.WriteJSON(w, http.StatusOK, handlers.NewDetailView(snap))
}

// ViewHandler records post views
type ViewHandler struct {
	detail *threads.DetailProjection
}

// NewViewHandler creates a new view handler
func NewViewHandler(detail *threads.DetailProjection) *ViewHandler {
	return &ViewHandler{
		detail: detail,
	}
}

// HandleView handles POST /api/posts/{postID}/views.
// The increment runs in the background; failures are only logged.
func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if postID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "post id is required")
		return
	}

	h.detail.RecordView(postID)
	w.WriteHeader(http.StatusAccepted)
}
