package posts

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"Commons/internal/core/blobs"
	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/thumbnails"
	"Commons/internal/core/users"
)

// ImageDir is the blob store directory post thumbnails are uploaded to
const ImageDir = "posts"

type postService struct {
	store     docstore.Store
	blobStore blobs.Store
	thumbs    thumbnails.Processor
	preset    thumbnails.Preset
	now       func() time.Time
}

// Option configures optional post service behaviour
type Option func(*postService)

// WithThumbnails resizes uploaded images with proc before they are stored.
// Without it images are stored as uploaded.
func WithThumbnails(proc thumbnails.Processor, preset thumbnails.Preset) Option {
	return func(s *postService) {
		s.thumbs = proc
		s.preset = preset
	}
}

// NewPostService creates a new post service
// blobStore can be nil, in which case posts with images are rejected
func NewPostService(store docstore.Store, blobStore blobs.Store, opts ...Option) Service {
	s := &postService{
		store:     store,
		blobStore: blobStore,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost creates a new post
// Flow:
// 1. Require a session (the author)
// 2. Validate title and content
// 3. Resize the image, if any, upload it and keep its URL as the thumbnail
// 4. Write the post with zeroed counters
func (s *postService) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	session, err := users.RequireSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	thumbnailURL := ""
	if len(req.Image) > 0 {
		if s.blobStore == nil {
			return nil, errs.NewValidationError("image", "image uploads are not enabled")
		}
		image, err := s.thumbnail(req.Image)
		if err != nil {
			return nil, err
		}
		path, err := blobs.ImagePath(ImageDir, image)
		if err != nil {
			return nil, err
		}
		thumbnailURL, err = s.blobStore.Upload(ctx, image, path)
		if err != nil {
			return nil, errs.Unavailable("upload image", err)
		}
	}

	// Millisecond precision, as persisted
	now := s.now().UTC().Truncate(time.Millisecond)
	post := Post{
		Title:        req.Title,
		Content:      req.Content,
		AuthorEmail:  session.Email,
		PostType:     normalizePostType(req.PostType),
		CreatedAt:    now,
		UpdatedAt:    now,
		ThumbnailURL: thumbnailURL,
	}

	id, err := s.store.Create(ctx, Collection, post.Fields())
	if err != nil {
		return nil, errs.Unavailable("create post", err)
	}
	post.ID = id

	log.Printf("[POST-CREATE] %s created post %s (type=%s, image=%t)", session.Email, id, post.PostType, post.HasThumbnail())
	return &post, nil
}

// GetPost reads posts/{postID}
func (s *postService) GetPost(ctx context.Context, postID string) (*Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, errs.NewValidationError("postId", "post id is required")
	}

	doc, err := s.store.Get(ctx, Collection, postID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, errs.NewNotFoundError("post", postID)
	}
	if err != nil {
		return nil, errs.Unavailable("get post", err)
	}

	post := FromDoc(*doc)
	return &post, nil
}

// DeletePost deletes a post after checking the session owns it
func (s *postService) DeletePost(ctx context.Context, postID string) error {
	session, err := users.RequireSession(ctx)
	if err != nil {
		return err
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	// SECURITY: the recorded author is the only authorization key
	if post.AuthorEmail != session.Email {
		log.Printf("[SECURITY] Delete of post %s by non-author %s (author=%s)", postID, session.Email, post.AuthorEmail)
		return errs.NewAuthorizationError("delete post", session.Email)
	}

	if err := s.store.Delete(ctx, Collection, postID); err != nil {
		return errs.Unavailable("delete post", err)
	}

	log.Printf("[POST-DELETE] %s deleted post %s", session.Email, postID)
	return nil
}

func (s *postService) thumbnail(data []byte) ([]byte, error) {
	if s.thumbs == nil {
		return data, nil
	}
	if len(data) > blobs.MaxImageBytes {
		return nil, errs.NewValidationError("image", "image is too large")
	}

	out, err := s.thumbs.Process(data, s.preset)
	switch {
	case errors.Is(err, thumbnails.ErrUnsupportedFormat), errors.Is(err, thumbnails.ErrProcessingFailed):
		return nil, errs.NewValidationError("image", "image could not be read")
	case err != nil:
		return nil, err
	}
	return out, nil
}

func validateCreateRequest(req CreatePostRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return errs.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return errs.NewValidationError("content", "content is required")
	}
	return nil
}
