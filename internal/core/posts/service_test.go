package posts

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/thumbnails"
	"Commons/internal/core/users"
	"Commons/internal/db/memory"
)

// pngHeader is enough for content sniffing to report image/png
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type mockBlobStore struct {
	uploads map[string][]byte
	err     error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{uploads: make(map[string][]byte)}
}

func (m *mockBlobStore) Upload(ctx context.Context, data []byte, path string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploads[path] = data
	return "https://blobs.test/" + path, nil
}

func signedIn(email string) context.Context {
	return users.WithSession(context.Background(), &users.Session{UserID: "uid-" + email, Email: email, Token: "tok"})
}

func newTestService(t *testing.T) (*postService, *memory.Store, *mockBlobStore) {
	t.Helper()
	store := memory.NewStore()
	blobStore := newMockBlobStore()
	svc := NewPostService(store, blobStore).(*postService)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 123_456_789, time.UTC) }
	return svc, store, blobStore
}

func TestCreatePost_Success(t *testing.T) {
	svc, store, _ := newTestService(t)

	post, err := svc.CreatePost(signedIn("author@example.com"), CreatePostRequest{
		Title:   "Welcome",
		Content: "First post",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "author@example.com", post.AuthorEmail)
	assert.Equal(t, DefaultPostType, post.PostType, "missing type falls back to the default")
	assert.Equal(t, int64(0), post.ViewCount)
	assert.Equal(t, int64(0), post.CommentCount)
	assert.False(t, post.IsDelete)
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)
	assert.Equal(t, 123*time.Millisecond, time.Duration(post.CreatedAt.Nanosecond()), "timestamps keep millisecond precision")

	doc, err := store.Get(context.Background(), Collection, post.ID)
	require.NoError(t, err)
	stored := FromDoc(*doc)
	assert.Equal(t, "Welcome", stored.Title)
	assert.Equal(t, "2024-06-01T12:00:00.123Z", doc.Fields.String(FieldCreatedAt))
	assert.Equal(t, int64(0), doc.Fields.Int(FieldViewCount))
}

func TestCreatePost_CustomPostType(t *testing.T) {
	svc, _, _ := newTestService(t)

	post, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{
		Title: "Q", Content: "?", PostType: "  " + PostTypeQA + " ",
	})
	require.NoError(t, err)
	assert.Equal(t, PostTypeQA, post.PostType)
}

func TestCreatePost_RequiresSession(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.CreatePost(context.Background(), CreatePostRequest{Title: "t", Content: "c"})
	require.Error(t, err)
	assert.True(t, errs.IsAuthError(err))

	docs, err := store.Query(context.Background(), Newest())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCreatePost_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreatePostRequest
	}{
		{name: "missing title", req: CreatePostRequest{Content: "c"}},
		{name: "blank title", req: CreatePostRequest{Title: "   ", Content: "c"}},
		{name: "missing content", req: CreatePostRequest{Title: "t"}},
		{name: "blank content", req: CreatePostRequest{Title: "t", Content: "\n"}},
		{name: "not an image", req: CreatePostRequest{Title: "t", Content: "c", Image: []byte("plain text")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, blobStore := newTestService(t)

			_, err := svc.CreatePost(signedIn("a@example.com"), tt.req)
			require.Error(t, err)
			assert.True(t, errs.IsValidationError(err))

			docs, err := store.Query(context.Background(), Newest())
			require.NoError(t, err)
			assert.Empty(t, docs, "rejected input writes nothing")
			assert.Empty(t, blobStore.uploads)
		})
	}
}

func TestCreatePost_WithImage(t *testing.T) {
	svc, _, blobStore := newTestService(t)

	post, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{
		Title: "pic", Content: "look", Image: pngHeader,
	})
	require.NoError(t, err)

	require.Len(t, blobStore.uploads, 1)
	for path := range blobStore.uploads {
		assert.True(t, strings.HasPrefix(path, ImageDir+"/"))
		assert.True(t, strings.HasSuffix(path, ".png"))
		assert.Equal(t, "https://blobs.test/"+path, post.ThumbnailURL)
	}
	assert.True(t, post.HasThumbnail())
}

func TestCreatePost_UploadFailureWritesNothing(t *testing.T) {
	svc, store, blobStore := newTestService(t)
	blobStore.err = errors.New("bucket offline")

	_, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{
		Title: "pic", Content: "look", Image: pngHeader,
	})
	require.Error(t, err)
	assert.True(t, errs.IsUnavailable(err))

	docs, err := store.Query(context.Background(), Newest())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeletePost_NonAuthorRejected(t *testing.T) {
	svc, store, _ := newTestService(t)

	post, err := svc.CreatePost(signedIn("author@example.com"), CreatePostRequest{Title: "mine", Content: "c"})
	require.NoError(t, err)

	err = svc.DeletePost(signedIn("other@example.com"), post.ID)
	require.Error(t, err)
	assert.True(t, errs.IsAuthorizationError(err))

	_, err = store.Get(context.Background(), Collection, post.ID)
	assert.NoError(t, err, "post remains after a rejected delete")
}

func TestDeletePost_Author(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := signedIn("author@example.com")

	post, err := svc.CreatePost(ctx, CreatePostRequest{Title: "mine", Content: "c"})
	require.NoError(t, err)

	// A comment of the post survives its deletion
	commentID, err := store.Create(context.Background(), "comments", docstore.Fields{"postId": post.ID, "comment": "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(ctx, post.ID))

	_, err = store.Get(context.Background(), Collection, post.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = store.Get(context.Background(), "comments", commentID)
	assert.NoError(t, err)
}

func TestDeletePost_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.DeletePost(signedIn("a@example.com"), "nope")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestGetPost(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	got, err := svc.GetPost(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "t", got.Title)

	_, err = svc.GetPost(context.Background(), "")
	assert.True(t, errs.IsValidationError(err))
}

func TestCreatePost_ResizesImage(t *testing.T) {
	store := memory.NewStore()
	blobStore := newMockBlobStore()
	svc := NewPostService(store, blobStore, WithThumbnails(thumbnails.NewProcessor(), thumbnails.PostThumbnail))

	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, image.NewRGBA(image.Rect(0, 0, 2048, 1024))))

	post, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{
		Title: "big", Content: "pic", Image: src.Bytes(),
	})
	require.NoError(t, err)
	require.Len(t, blobStore.uploads, 1)

	for path, data := range blobStore.uploads {
		assert.True(t, strings.HasSuffix(path, ".jpg"), "thumbnails are stored as JPEG: %s", path)
		assert.Equal(t, "https://blobs.test/"+path, post.ThumbnailURL)

		img, format, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 1024, img.Bounds().Dx())
		assert.Equal(t, 512, img.Bounds().Dy())
	}
}

func TestCreatePost_UnreadableImageRejected(t *testing.T) {
	store := memory.NewStore()
	blobStore := newMockBlobStore()
	svc := NewPostService(store, blobStore, WithThumbnails(thumbnails.NewProcessor(), thumbnails.PostThumbnail))

	// Sniffs as PNG but does not decode
	_, err := svc.CreatePost(signedIn("a@example.com"), CreatePostRequest{
		Title: "pic", Content: "look", Image: pngHeader,
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidationError(err))
	assert.Empty(t, blobStore.uploads)

	docs, err := store.Query(context.Background(), docstore.Query{Collection: Collection})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
