package routes

import (
	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers/stream"
	"Commons/internal/api/middleware"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
)

// RegisterLiveRoutes registers the websocket feeds.
// Feeds are public; a signed-in stream closes when its session signs out.
func RegisterLiveRoutes(
	r chi.Router,
	list *posts.ListProjection,
	detail *threads.DetailProjection,
	observer stream.AuthObserver,
	allowedOrigins []string,
	authMiddleware middleware.AuthMiddleware,
) {
	handler := stream.NewHandler(list, detail, observer, allowedOrigins)

	r.Route("/api/live", func(r chi.Router) {
		r.Use(authMiddleware.OptionalAuth)
		r.Get("/posts", handler.HandlePosts)
		r.Get("/posts/{postID}", handler.HandlePost)
	})
}
