package post

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"Commons/internal/api/handlers"
	"Commons/internal/core/blobs"
	"Commons/internal/core/posts"
)

// maxCreateBody leaves room for the form fields next to a full-size image
const maxCreateBody = blobs.MaxImageBytes + 1<<20

// CreateHandler handles post creation requests
type CreateHandler struct {
	service posts.Service
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(service posts.Service) *CreateHandler {
	return &CreateHandler{
		service: service,
	}
}

// HandleCreate handles POST /api/posts.
// Accepts multipart/form-data (title, content, postType, image) or a JSON body
// without an image.
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// 1. Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)

	// 2. Parse request body
	req, err := parseCreateRequest(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.WriteError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
				"Request body too large (max 10MB image)")
			return
		}
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// 3. Create the post; the service checks the session and validates input
	post, err := h.service.CreatePost(r.Context(), req)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	// 4. Return the stored post
	handlers.WriteJSON(w, http.StatusCreated, post)
}

func parseCreateRequest(r *http.Request) (posts.CreatePostRequest, error) {
	var req posts.CreatePostRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseMultipartForm(maxCreateBody); err != nil {
		return req, err
	}
	req.Title = r.FormValue("title")
	req.Content = r.FormValue("content")
	req.PostType = r.FormValue("postType")

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, err
	}
	defer func() { _ = file.Close() }()

	req.Image, err = io.ReadAll(file)
	return req, err
}
