package posts

import "context"

// Service defines the post commands
type Service interface {
	// CreatePost publishes a post authored by the context's session
	// Flow: Validate -> Upload image (optional) -> Write document
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)

	// GetPost reads one post
	GetPost(ctx context.Context, postID string) (*Post, error)

	// DeletePost hard-deletes a post; only its author may do so.
	// Comments of the post are left in place.
	DeletePost(ctx context.Context, postID string) error
}
