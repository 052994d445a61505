package comments

import (
	"sort"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
)

// Collection is the document collection comments live in
const Collection = "comments"

// Persisted field names of a comment document
const (
	FieldPostID    = "postId"
	FieldEmail     = "email"
	FieldComment   = "comment"
	FieldCreatedAt = "createdAt"
)

// MaxCommentGraphemes bounds a comment body
const MaxCommentGraphemes = 10000

// Comment is a reply attached to one post.
// Comments are never edited or deleted, and survive the deletion of their post.
type Comment struct {
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	AuthorEmail string    `json:"email"`
	Body        string    `json:"comment"`
}

// CreatedDate is the date-only form shown next to a comment
func (c Comment) CreatedDate() string {
	return c.CreatedAt.UTC().Format(time.DateOnly)
}

// FromDoc decodes a comment document
func FromDoc(doc docstore.Doc) Comment {
	createdAt, _ := doc.Fields.Time(FieldCreatedAt)
	return Comment{
		ID:          doc.ID,
		PostID:      doc.Fields.String(FieldPostID),
		AuthorEmail: doc.Fields.String(FieldEmail),
		Body:        doc.Fields.String(FieldComment),
		CreatedAt:   createdAt,
	}
}

// Fields encodes the comment for the document store; the id is not a field
func (c Comment) Fields() docstore.Fields {
	return docstore.Fields{
		FieldPostID:    c.PostID,
		FieldEmail:     c.AuthorEmail,
		FieldComment:   c.Body,
		FieldCreatedAt: docstore.FormatTime(c.CreatedAt),
	}
}

// ForPost is the query selecting every comment of postID
func ForPost(postID string) docstore.Query {
	return docstore.Query{
		Collection: Collection,
		Where:      &docstore.Filter{Field: FieldPostID, Equals: postID},
	}
}

// ValidateBody rejects empty (after trimming) or oversized comment bodies
func ValidateBody(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return errs.NewValidationError("comment", "comment is required")
	}
	if uniseg.GraphemeClusterCount(trimmed) > MaxCommentGraphemes {
		return errs.NewValidationError("comment", "comment exceeds 10000 characters")
	}
	return nil
}

// Sort orders comments for display: oldest first, id breaking ties
func Sort(cs []Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// FromDocs decodes and sorts a comment result set
func FromDocs(docs []docstore.Doc) []Comment {
	out := make([]Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FromDoc(doc))
	}
	Sort(out)
	return out
}
