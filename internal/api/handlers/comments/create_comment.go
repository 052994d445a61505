package comments

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers"
	"Commons/internal/core/comments"
	"Commons/internal/core/engagement"
	"Commons/internal/core/users"
)

// CommentRecorder writes a comment and bumps its post's comment count
type CommentRecorder interface {
	RecordComment(ctx context.Context, req engagement.CommentRequest) (*comments.Comment, error)
}

// CreateCommentHandler handles comment creation requests
type CreateCommentHandler struct {
	recorder CommentRecorder
}

// NewCreateCommentHandler creates a new handler for creating comments
func NewCreateCommentHandler(recorder CommentRecorder) *CreateCommentHandler {
	return &CreateCommentHandler{
		recorder: recorder,
	}
}

// CreateCommentInput is the request body
type CreateCommentInput struct {
	Comment string `json:"comment"`
}

// HandleCreate handles POST /api/posts/{postID}/comments
//
// Request body: { "comment": "..." }
// Response: the stored comment
func (h *CreateCommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// 1. Limit request body size (100KB is plenty for a 10k grapheme comment)
	r.Body = http.MaxBytesReader(w, r.Body, 100*1024)

	// 2. Parse JSON body
	var input CreateCommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// 3. The author is the signed-in session (injected by auth middleware)
	session := users.SessionFromContext(r.Context())
	if session == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	// 4. Write the comment and its count increment
	comment, err := h.recorder.RecordComment(r.Context(), engagement.CommentRequest{
		PostID:      chi.URLParam(r, "postID"),
		AuthorEmail: session.Email,
		Body:        input.Comment,
	})
	if err != nil && comment == nil {
		handlers.HandleServiceError(w, err)
		return
	}
	if err != nil {
		// The comment is stored; only the count lags
		log.Printf("[COMMENT-CREATE] Comment %s stored but count update failed: %v", comment.ID, err)
	}

	// 5. Return the stored comment
	handlers.WriteJSON(w, http.StatusCreated, handlers.NewCommentView(*comment))
}
