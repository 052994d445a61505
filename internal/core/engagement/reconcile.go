package engagement

import (
	"context"
	"errors"
	"log"

	"Commons/internal/core/comments"
	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/posts"
)

// Drift is one post whose stored commentCount disagrees with its comments
type Drift struct {
	PostID string
	Stored int64
	Actual int64
}

// ReconcileCommentCounts recomputes every post's commentCount from the comments
// collection and, unless dryRun is set, writes the corrected values.
//
// The write is an absolute set, not an Increment, so it is only correct while no
// comments are being recorded. It exists to repair counts left one short by a
// failed increment in RecordComment.
func ReconcileCommentCounts(ctx context.Context, store docstore.Store, dryRun bool) ([]Drift, error) {
	postDocs, err := store.Query(ctx, docstore.Query{Collection: posts.Collection})
	if err != nil {
		return nil, errs.Unavailable("query posts", err)
	}
	commentDocs, err := store.Query(ctx, docstore.Query{Collection: comments.Collection})
	if err != nil {
		return nil, errs.Unavailable("query comments", err)
	}

	actual := make(map[string]int64, len(postDocs))
	for _, doc := range commentDocs {
		actual[doc.Fields.String(comments.FieldPostID)]++
	}

	var drifts []Drift
	for _, doc := range postDocs {
		stored := doc.Fields.Int(posts.FieldCommentCount)
		if stored == actual[doc.ID] {
			continue
		}
		d := Drift{PostID: doc.ID, Stored: stored, Actual: actual[doc.ID]}
		drifts = append(drifts, d)

		if dryRun {
			continue
		}
		err := store.Update(ctx, posts.Collection, doc.ID, docstore.Fields{posts.FieldCommentCount: d.Actual})
		if err != nil {
			// Deleted since the query; nothing left to fix
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return drifts, errs.Unavailable("update comment count", err)
		}
		log.Printf("[ENGAGEMENT] Reconciled commentCount of %s: %d -> %d", d.PostID, d.Stored, d.Actual)
	}

	return drifts, nil
}
