package threads

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/core/comments"
	"Commons/internal/core/errs"
	"Commons/internal/core/posts"
	"Commons/internal/db/memory"
)

type mockViewer struct {
	calls chan string
	err   error
}

func (m *mockViewer) RecordView(ctx context.Context, postID string) error {
	m.calls <- postID
	return m.err
}

// syncBuffer is a goroutine-safe log sink
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := posts.Post{Title: "t", Content: "c", AuthorEmail: "a@example.com", PostType: posts.DefaultPostType, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, store.Put(ctx, posts.Collection, "p1", p.Fields()))

	later := comments.Comment{PostID: "p1", AuthorEmail: "b@example.com", Body: "second", CreatedAt: created.Add(2 * time.Minute)}
	earlier := comments.Comment{PostID: "p1", AuthorEmail: "c@example.com", Body: "first", CreatedAt: created.Add(time.Minute)}
	other := comments.Comment{PostID: "p2", AuthorEmail: "d@example.com", Body: "elsewhere", CreatedAt: created}
	require.NoError(t, store.Put(ctx, comments.Collection, "c-later", later.Fields()))
	require.NoError(t, store.Put(ctx, comments.Collection, "c-earlier", earlier.Fields()))
	require.NoError(t, store.Put(ctx, comments.Collection, "c-other", other.Fields()))
}

func waitForSnapshot(t *testing.T, feed DetailFeed, pred func(DetailSnapshot) bool) DetailSnapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-feed.Updates():
			require.True(t, ok, "feed closed unexpectedly")
			require.NoError(t, snap.Err)
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for detail snapshot")
		}
	}
}

func bodies(cs []comments.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Body
	}
	return out
}

func TestDetailProjection_Get(t *testing.T) {
	store := memory.NewStore()
	seed(t, store)
	proj := NewDetailProjection(store, nil, nil)

	snap, err := proj.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, snap.Found())
	assert.Equal(t, "t", snap.Post.Title)
	assert.Equal(t, []string{"first", "second"}, bodies(snap.Comments), "oldest first, other posts excluded")
}

func TestDetailProjection_MissingPostIsNotAnError(t *testing.T) {
	store := memory.NewStore()
	proj := NewDetailProjection(store, nil, nil)

	snap, err := proj.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, snap.Found())
	assert.Nil(t, snap.Post)
	assert.Empty(t, snap.Comments)

	_, err = proj.Get(context.Background(), " ")
	assert.True(t, errs.IsValidationError(err))
}

func TestDetailProjection_SubscribeFollowsBothQueries(t *testing.T) {
	store := memory.NewStore()
	seed(t, store)
	proj := NewDetailProjection(store, nil, nil)

	feed, err := proj.Subscribe(context.Background(), "p1")
	require.NoError(t, err)
	defer func() { _ = feed.Close() }()

	first := waitForSnapshot(t, feed, func(s DetailSnapshot) bool { return true })
	require.True(t, first.Found())
	assert.Len(t, first.Comments, 2)

	// New comment arrives
	c := comments.Comment{PostID: "p1", AuthorEmail: "e@example.com", Body: "third", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Put(context.Background(), comments.Collection, "c-third", c.Fields()))
	snap := waitForSnapshot(t, feed, func(s DetailSnapshot) bool { return len(s.Comments) == 3 })
	assert.Equal(t, []string{"first", "second", "third"}, bodies(snap.Comments))

	// Counter increments show up on the post
	require.NoError(t, store.Increment(context.Background(), posts.Collection, "p1", posts.FieldViewCount, 1))
	waitForSnapshot(t, feed, func(s DetailSnapshot) bool { return s.Found() && s.Post.ViewCount == 1 })

	// Deletion turns into not-found while comments stay
	require.NoError(t, store.Delete(context.Background(), posts.Collection, "p1"))
	snap = waitForSnapshot(t, feed, func(s DetailSnapshot) bool { return !s.Found() })
	assert.Len(t, snap.Comments, 3)
}

func TestDetailProjection_CloseReleasesBothSubscriptions(t *testing.T) {
	store := memory.NewStore()
	seed(t, store)
	proj := NewDetailProjection(store, nil, nil)

	feed, err := proj.Subscribe(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Watchers())

	require.NoError(t, feed.Close())
	assert.Eventually(t, func() bool { return store.Watchers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDetailProjection_StoreCloseEndsFeed(t *testing.T) {
	store := memory.NewStore()
	seed(t, store)
	proj := NewDetailProjection(store, nil, nil)

	feed, err := proj.Subscribe(context.Background(), "p1")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("detail feed did not close with its source")
	}
}

func TestDetailProjection_RecordView(t *testing.T) {
	viewer := &mockViewer{calls: make(chan string, 1)}
	proj := NewDetailProjection(memory.NewStore(), viewer, nil)

	proj.RecordView("p1")

	select {
	case id := <-viewer.calls:
		assert.Equal(t, "p1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("view was not recorded")
	}
}

func TestDetailProjection_RecordViewFailureIsLogged(t *testing.T) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	viewer := &mockViewer{calls: make(chan string, 1), err: errors.New("quota exceeded")}
	proj := NewDetailProjection(memory.NewStore(), viewer, logger)

	proj.RecordView("p1")
	<-viewer.calls

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("quota exceeded"))
	}, 2*time.Second, 10*time.Millisecond)
}
