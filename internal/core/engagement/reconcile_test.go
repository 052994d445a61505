package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/core/posts"
	"Commons/internal/db/memory"
)

func TestReconcileCommentCounts_RepairsLostIncrement(t *testing.T) {
	base := memory.NewStore()
	store := &countingStore{Store: base}
	postID := seedPost(t, base)
	counters := NewCounters(store)
	ctx := context.Background()

	_, err := counters.RecordComment(ctx, CommentRequest{PostID: postID, AuthorEmail: "a@example.com", Body: "one"})
	require.NoError(t, err)

	store.incrementErr = errors.New("connection reset")
	comment, err := counters.RecordComment(ctx, CommentRequest{PostID: postID, AuthorEmail: "a@example.com", Body: "two"})
	require.Error(t, err)
	require.NotNil(t, comment)
	require.Equal(t, int64(1), getPost(t, base, postID).CommentCount)

	drifts, err := ReconcileCommentCounts(ctx, base, true)
	require.NoError(t, err)
	assert.Equal(t, []Drift{{PostID: postID, Stored: 1, Actual: 2}}, drifts)
	assert.Equal(t, int64(1), getPost(t, base, postID).CommentCount, "dry run writes nothing")

	drifts, err = ReconcileCommentCounts(ctx, base, false)
	require.NoError(t, err)
	assert.Len(t, drifts, 1)
	assert.Equal(t, int64(2), getPost(t, base, postID).CommentCount)

	drifts, err = ReconcileCommentCounts(ctx, base, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReconcileCommentCounts_IgnoresOrphansAndLeavesOtherFields(t *testing.T) {
	store := memory.NewStore()
	postID := seedPost(t, store)
	counters := NewCounters(store)
	ctx := context.Background()

	require.NoError(t, counters.RecordView(ctx, postID))
	_, err := counters.RecordComment(ctx, CommentRequest{PostID: postID, AuthorEmail: "a@example.com", Body: "hi"})
	require.NoError(t, err)

	// Comment whose post was deleted
	require.NoError(t, store.Put(ctx, posts.Collection, "gone", posts.Post{Title: "x", Content: "y"}.Fields()))
	_, err = counters.RecordComment(ctx, CommentRequest{PostID: "gone", AuthorEmail: "a@example.com", Body: "orphan"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, posts.Collection, "gone"))

	drifts, err := ReconcileCommentCounts(ctx, store, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	p := getPost(t, store, postID)
	assert.Equal(t, int64(1), p.CommentCount)
	assert.Equal(t, int64(1), p.ViewCount)
	assert.Equal(t, postCreatedAt, p.UpdatedAt)
}
