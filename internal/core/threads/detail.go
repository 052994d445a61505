package threads

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Commons/internal/core/comments"
	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/live"
	"Commons/internal/core/posts"
)

// DefaultViewTimeout bounds a fire-and-forget view increment
const DefaultViewTimeout = 10 * time.Second

// DetailSnapshot is one emission of a post with its comments.
//
// Post is nil when the post does not exist (or was deleted); that is a "not
// found" state, not an error. The post's CommentCount and len(Comments) arrive
// through independent notifications and may briefly disagree.
type DetailSnapshot struct {
	Err      error
	Post     *posts.Post
	Comments []comments.Comment
}

// Found reports whether the post exists
func (s DetailSnapshot) Found() bool {
	return s.Post != nil
}

// DetailFeed is a live post detail; Close must be called to release it
type DetailFeed = *live.Feed[DetailSnapshot]

// Viewer records post views
type Viewer interface {
	RecordView(ctx context.Context, postID string) error
}

// DetailProjection maintains the live view of one post and its comments
type DetailProjection struct {
	store       docstore.Store
	viewer      Viewer
	logger      *slog.Logger
	viewTimeout time.Duration
}

// NewDetailProjection creates a detail projection over store
func NewDetailProjection(store docstore.Store, viewer Viewer, logger *slog.Logger) *DetailProjection {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailProjection{
		store:       store,
		viewer:      viewer,
		logger:      logger,
		viewTimeout: DefaultViewTimeout,
	}
}

// Subscribe opens two live queries, the post document and its comments, and
// publishes a combined snapshot whenever either changes. The first snapshot is
// published once both have reported. Closing the feed closes both queries.
func (p *DetailProjection) Subscribe(ctx context.Context, postID string) (DetailFeed, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, errs.NewValidationError("postId", "post id is required")
	}

	postSub, err := p.store.Subscribe(ctx, posts.ByID(postID))
	if err != nil {
		return nil, errs.Unavailable("subscribe post", err)
	}
	commentSub, err := p.store.Subscribe(ctx, comments.ForPost(postID))
	if err != nil {
		_ = postSub.Close()
		return nil, errs.Unavailable("subscribe comments", err)
	}

	out := live.New[DetailSnapshot](ctx)
	out.OnClose(func() {
		_ = postSub.Close()
		_ = commentSub.Close()
	})

	go p.combine(out, postSub, commentSub)

	p.logger.Debug("post detail feed opened", slog.String("post_id", postID))
	return out, nil
}

func (p *DetailProjection) combine(out DetailFeed, postSub, commentSub docstore.Subscription) {
	defer func() { _ = out.Close() }()

	var (
		post, thread       docstore.ResultSet
		havePost, haveList bool
	)
	for {
		select {
		case rs, ok := <-postSub.Updates():
			if !ok {
				return
			}
			post, havePost = rs, true
		case rs, ok := <-commentSub.Updates():
			if !ok {
				return
			}
			thread, haveList = rs, true
		case <-out.Done():
			return
		}

		if havePost && haveList {
			out.Publish(p.project(post, thread))
		}
	}
}

// Get evaluates the detail view once
func (p *DetailProjection) Get(ctx context.Context, postID string) (DetailSnapshot, error) {
	if strings.TrimSpace(postID) == "" {
		return DetailSnapshot{}, errs.NewValidationError("postId", "post id is required")
	}

	postDocs, err := p.store.Query(ctx, posts.ByID(postID))
	if err != nil {
		return DetailSnapshot{}, errs.Unavailable("get post", err)
	}
	commentDocs, err := p.store.Query(ctx, comments.ForPost(postID))
	if err != nil {
		return DetailSnapshot{}, errs.Unavailable("list comments", err)
	}

	return p.project(
		docstore.ResultSet{Docs: postDocs},
		docstore.ResultSet{Docs: commentDocs},
	), nil
}

// RecordView requests a view increment without waiting for it.
// Failures are logged; viewing a post never fails because of the counter.
func (p *DetailProjection) RecordView(postID string) {
	if p.viewer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.viewTimeout)
		defer cancel()
		if err := p.viewer.RecordView(ctx, postID); err != nil {
			p.logger.Warn("failed to record post view",
				slog.String("post_id", postID),
				slog.String("error", err.Error()))
		}
	}()
}

func (p *DetailProjection) project(post, thread docstore.ResultSet) DetailSnapshot {
	if post.Err != nil {
		return DetailSnapshot{Err: errs.Unavailable("get post", post.Err)}
	}
	if thread.Err != nil {
		return DetailSnapshot{Err: errs.Unavailable("list comments", thread.Err)}
	}

	snap := DetailSnapshot{Comments: comments.FromDocs(thread.Docs)}
	if len(post.Docs) > 0 {
		decoded := posts.FromDoc(post.Docs[0])
		snap.Post = &decoded
	}
	return snap
}
