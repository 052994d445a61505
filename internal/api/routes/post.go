package routes

import (
	"github.com/go-chi/chi/v5"

	"Commons/internal/api/handlers/comments"
	"Commons/internal/api/handlers/post"
	"Commons/internal/api/middleware"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
)

// RegisterPostRoutes registers the board endpoints on the router
func RegisterPostRoutes(
	r chi.Router,
	service posts.Service,
	list *posts.ListProjection,
	detail *threads.DetailProjection,
	recorder comments.CommentRecorder,
	authMiddleware middleware.AuthMiddleware,
) {
	// Initialize handlers
	listHandler := post.NewListHandler(list)
	getHandler := post.NewGetHandler(detail)
	viewHandler := post.NewViewHandler(detail)
	createHandler := post.NewCreateHandler(service)
	deleteHandler := post.NewDeleteHandler(service)
	commentHandler := comments.NewCreateCommentHandler(recorder)

	r.Route("/api/posts", func(r chi.Router) {
		// Reads are public
		r.Get("/", listHandler.HandleList)
		r.Get("/{postID}", getHandler.HandleGet)

		// Counting a view needs no session
		r.Post("/{postID}/views", viewHandler.HandleView)

		// Writes require a session
		r.With(authMiddleware.RequireAuth).Post("/", createHandler.HandleCreate)
		// Only post authors can delete their own posts
		r.With(authMiddleware.RequireAuth).Delete("/{postID}", deleteHandler.HandleDelete)
		r.With(authMiddleware.RequireAuth).Post("/{postID}/comments", commentHandler.HandleCreate)
	})
}
