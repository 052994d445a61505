package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/core/docstore"
)

func nextResult(t *testing.T, sub docstore.Subscription) docstore.ResultSet {
	t.Helper()
	select {
	case rs, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return rs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result set")
	}
	return docstore.ResultSet{}
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("doc-%d", n)
	})
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewStore(sequentialIDs())

	id, err := s.Create(ctx, "posts", docstore.Fields{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	doc, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Fields.String("title"))

	require.NoError(t, s.Update(ctx, "posts", id, docstore.Fields{"content": "body"}))
	doc, err = s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Fields.String("title"), "update merges")
	assert.Equal(t, "body", doc.Fields.String("content"))

	require.NoError(t, s.Put(ctx, "posts", id, docstore.Fields{"title": "replaced"}))
	doc, err = s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Empty(t, doc.Fields.String("content"), "put replaces")

	require.NoError(t, s.Delete(ctx, "posts", id))
	_, err = s.Get(ctx, "posts", id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "posts", id), "deleting a missing document is a no-op")
}

func TestStore_UpdateMissing(t *testing.T) {
	s := NewStore()
	err := s.Update(context.Background(), "posts", "nope", docstore.Fields{"a": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.Create(ctx, "posts", docstore.Fields{"title": "a"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	doc.Fields["title"] = "mutated"

	again, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Fields.String("title"))
}

func TestStore_ConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.Create(ctx, "posts", docstore.Fields{"viewCount": 0})
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Increment(ctx, "posts", id, "viewCount", 1))
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, int64(n), doc.Fields.Int("viewCount"))
}

func TestStore_IncrementMissingFieldStartsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.Create(ctx, "posts", docstore.Fields{})
	require.NoError(t, err)

	require.NoError(t, s.Increment(ctx, "posts", id, "commentCount", 1))
	doc, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Fields.Int("commentCount"))

	assert.ErrorIs(t, s.Increment(ctx, "posts", "missing", "commentCount", 1), docstore.ErrNotFound)
}

func TestStore_QueryOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore(sequentialIDs())

	_, _ = s.Create(ctx, "comments", docstore.Fields{"postId": "p1", "createdAt": "2024-01-02T00:00:00.000Z"})
	_, _ = s.Create(ctx, "comments", docstore.Fields{"postId": "p2", "createdAt": "2024-01-01T00:00:00.000Z"})
	_, _ = s.Create(ctx, "comments", docstore.Fields{"postId": "p1", "createdAt": "2024-01-01T00:00:00.000Z"})

	docs, err := s.Query(ctx, docstore.Query{
		Collection: "comments",
		Where:      &docstore.Filter{Field: "postId", Equals: "p1"},
		OrderBy:    &docstore.Order{Field: "createdAt"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-3", docs[0].ID)
	assert.Equal(t, "doc-1", docs[1].ID)
}

func TestStore_SubscribePublishesInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "posts"})
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	initial := nextResult(t, sub)
	require.NoError(t, initial.Err)
	assert.Empty(t, initial.Docs)

	id, err := s.Create(ctx, "posts", docstore.Fields{"title": "first"})
	require.NoError(t, err)

	rs := nextResult(t, sub)
	require.Len(t, rs.Docs, 1)
	assert.Equal(t, id, rs.Docs[0].ID)

	// Writes to other collections are not delivered
	_, err = s.Create(ctx, "comments", docstore.Fields{"postId": id})
	require.NoError(t, err)
	select {
	case rs := <-sub.Updates():
		t.Fatalf("unexpected result set for another collection: %+v", rs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_SubscriptionCloseReleasesWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStore()

	a, err := s.Subscribe(ctx, docstore.Query{Collection: "posts"})
	require.NoError(t, err)
	_, err = s.Subscribe(ctx, docstore.Query{Collection: "posts"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Watchers())

	require.NoError(t, a.Close())
	assert.Equal(t, 1, s.Watchers())

	cancel()
	assert.Eventually(t, func() bool { return s.Watchers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	s := NewStore()
	sub, err := s.Subscribe(context.Background(), docstore.Query{Collection: "posts"})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	<-sub.Done()

	_, err = s.Create(context.Background(), "posts", docstore.Fields{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
	_, err = s.Subscribe(context.Background(), docstore.Query{Collection: "posts"})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStore()
	_, err := s.Create(ctx, "posts", docstore.Fields{})
	assert.ErrorIs(t, err, context.Canceled)
}
