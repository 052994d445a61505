package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterBlobRoutes serves uploaded images under /blobs/
func RegisterBlobRoutes(r chi.Router, files http.Handler) {
	r.Handle("/blobs/*", http.StripPrefix("/blobs/", files))
}
