package posts

import (
	"strings"
	"time"

	"Commons/internal/core/docstore"
)

// Collection is the document collection posts live in
const Collection = "posts"

// Persisted field names of a post document
const (
	FieldTitle        = "title"
	FieldContent      = "content"
	FieldEmail        = "email"
	FieldPostType     = "postType"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
	FieldViewCount    = "viewCount"
	FieldCommentCount = "commentCount"
	FieldIsDelete     = "isDelete"
	FieldThumbnailURL = "thumbnailUrl"
)

// Post type labels offered by the client picker. Any other label is accepted.
const (
	PostTypeNotice   = "공지사항"
	PostTypeFreeform = "자유글"
	PostTypeQA       = "Q&A"
)

// DefaultPostType is used when a post is created without a type
const DefaultPostType = PostTypeNotice

// SuggestedPostTypes lists the picker labels in display order
var SuggestedPostTypes = []string{PostTypeNotice, PostTypeFreeform, PostTypeQA}

// Post is a board post as persisted in the document store.
// ViewCount and CommentCount are only ever changed through atomic increments.
type Post struct {
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	AuthorEmail  string    `json:"email"`
	PostType     string    `json:"postType"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ViewCount    int64     `json:"viewCount"`
	CommentCount int64     `json:"commentCount"`
	// IsDelete is written false and never read: posts are hard-deleted
	IsDelete bool `json:"isDelete"`
}

// HasThumbnail reports whether the post carries an image
func (p Post) HasThumbnail() bool {
	return p.ThumbnailURL != ""
}

// CreatePostRequest represents input for creating a new post
type CreatePostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	PostType string `json:"postType"`
	// Image is the raw thumbnail upload; empty means no image
	Image []byte `json:"-"`
}

// ListItem is one row of the post list
type ListItem struct {
	CreatedAt      time.Time `json:"-"`
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ContentPreview string    `json:"contentPreview"`
	PostType       string    `json:"postType"`
	CreatedDate    string    `json:"createdDate"`
	AuthorEmail    string    `json:"email"`
	ThumbnailURL   string    `json:"thumbnailUrl"`
	CommentCount   int64     `json:"commentCount"`
	ViewCount      int64     `json:"viewCount"`
}

// FromDoc decodes a post document. Missing counters read as zero.
func FromDoc(doc docstore.Doc) Post {
	createdAt, _ := doc.Fields.Time(FieldCreatedAt)
	updatedAt, _ := doc.Fields.Time(FieldUpdatedAt)
	return Post{
		ID:           doc.ID,
		Title:        doc.Fields.String(FieldTitle),
		Content:      doc.Fields.String(FieldContent),
		AuthorEmail:  doc.Fields.String(FieldEmail),
		PostType:     doc.Fields.String(FieldPostType),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		ViewCount:    doc.Fields.Int(FieldViewCount),
		CommentCount: doc.Fields.Int(FieldCommentCount),
		IsDelete:     doc.Fields.Bool(FieldIsDelete),
		ThumbnailURL: doc.Fields.String(FieldThumbnailURL),
	}
}

// Fields encodes the post for the document store; the id is not a field
func (p Post) Fields() docstore.Fields {
	return docstore.Fields{
		FieldTitle:        p.Title,
		FieldContent:      p.Content,
		FieldEmail:        p.AuthorEmail,
		FieldPostType:     p.PostType,
		FieldCreatedAt:    docstore.FormatTime(p.CreatedAt),
		FieldUpdatedAt:    docstore.FormatTime(p.UpdatedAt),
		FieldViewCount:    p.ViewCount,
		FieldCommentCount: p.CommentCount,
		FieldIsDelete:     p.IsDelete,
		FieldThumbnailURL: p.ThumbnailURL,
	}
}

// ToListItem projects the post for the list screen
func (p Post) ToListItem(previewLength int) ListItem {
	return ListItem{
		ID:             p.ID,
		Title:          p.Title,
		ContentPreview: Preview(p.Content, previewLength),
		PostType:       p.PostType,
		CreatedAt:      p.CreatedAt,
		CreatedDate:    p.CreatedAt.UTC().Format(time.DateOnly),
		AuthorEmail:    p.AuthorEmail,
		ThumbnailURL:   p.ThumbnailURL,
		CommentCount:   p.CommentCount,
		ViewCount:      p.ViewCount,
	}
}

// ByID is the query selecting the single post postID
func ByID(postID string) docstore.Query {
	return docstore.Query{Collection: Collection, DocID: postID}
}

// Newest is the query selecting every post, newest first
func Newest() docstore.Query {
	return docstore.Query{
		Collection: Collection,
		OrderBy:    &docstore.Order{Field: FieldCreatedAt, Desc: true},
	}
}

func normalizePostType(postType string) string {
	if t := strings.TrimSpace(postType); t != "" {
		return t
	}
	return DefaultPostType
}
