// Package engagement keeps a post's viewCount and commentCount consistent under
// concurrent, uncoordinated writers. Both counters change only through the
// store's atomic Increment; never read a count, add to it, and write it back.
package engagement

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"Commons/internal/core/comments"
	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/posts"
)

// CommentRequest represents input for adding a comment
type CommentRequest struct {
	PostID      string
	AuthorEmail string
	Body        string
}

// Counters implements the view and comment write paths
type Counters struct {
	store docstore.Store
	now   func() time.Time
}

// NewCounters creates counters writing to store
func NewCounters(store docstore.Store) *Counters {
	return &Counters{
		store: store,
		now:   time.Now,
	}
}

// RecordView adds one view to the post.
// Not idempotent: callers trigger it once per genuine view.
func (c *Counters) RecordView(ctx context.Context, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return errs.NewValidationError("postId", "post id is required")
	}

	err := c.store.Increment(ctx, posts.Collection, postID, posts.FieldViewCount, 1)
	if errors.Is(err, docstore.ErrNotFound) {
		return errs.NewNotFoundError("post", postID)
	}
	return errs.Unavailable("record view", err)
}

// RecordComment writes a comment and adds one to the post's commentCount.
// The post's updatedAt is left alone.
//
// The comment and the count are two writes: a failure between them leaves the
// comment stored with the count one short, and the comment is still returned
// alongside the error.
func (c *Counters) RecordComment(ctx context.Context, req CommentRequest) (*comments.Comment, error) {
	if err := comments.ValidateBody(req.Body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PostID) == "" {
		return nil, errs.NewValidationError("postId", "post id is required")
	}
	if strings.TrimSpace(req.AuthorEmail) == "" {
		return nil, errs.NewAuthError(errs.ReasonSessionRequired)
	}

	// The post may still vanish after this check; its comment is then orphaned,
	// the same as comments of a deleted post.
	if _, err := c.store.Get(ctx, posts.Collection, req.PostID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, errs.NewNotFoundError("post", req.PostID)
		}
		return nil, errs.Unavailable("get post", err)
	}

	comment := comments.Comment{
		PostID:      req.PostID,
		AuthorEmail: req.AuthorEmail,
		Body:        req.Body,
		CreatedAt:   c.now().UTC().Truncate(time.Millisecond),
	}

	id, err := c.store.Create(ctx, comments.Collection, comment.Fields())
	if err != nil {
		return nil, errs.Unavailable("create comment", err)
	}
	comment.ID = id

	err = c.store.Increment(ctx, posts.Collection, req.PostID, posts.FieldCommentCount, 1)
	if err != nil {
		log.Printf("[ENGAGEMENT] Failed to increment commentCount of %s after comment %s: %v", req.PostID, id, err)
		if errors.Is(err, docstore.ErrNotFound) {
			return &comment, errs.NewNotFoundError("post", req.PostID)
		}
		return &comment, errs.Unavailable("increment comment count", err)
	}

	return &comment, nil
}
