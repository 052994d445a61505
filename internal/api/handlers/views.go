package handlers

import (
	"Commons/internal/core/comments"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
)

// ListView is the JSON form of a post list snapshot
type ListView struct {
	Type  string           `json:"type"`
	Items []posts.ListItem `json:"items"`
}

// CommentView is a comment plus its display date
type CommentView struct {
	comments.Comment
	CreatedDate string `json:"createdDate"`
}

// DetailView is the JSON form of a post detail snapshot.
// Post is null when the post does not exist.
type DetailView struct {
	Post     *posts.Post   `json:"post"`
	Type     string        `json:"type"`
	Comments []CommentView `json:"comments"`
	Found    bool          `json:"found"`
}

// NewListView renders a list snapshot (which must not carry an error)
func NewListView(snap posts.ListSnapshot) ListView {
	items := snap.Items
	if items == nil {
		items = []posts.ListItem{}
	}
	return ListView{Type: "posts", Items: items}
}

// NewCommentView renders one comment
func NewCommentView(c comments.Comment) CommentView {
	return CommentView{Comment: c, CreatedDate: c.CreatedDate()}
}

// NewDetailView renders a detail snapshot (which must not carry an error)
func NewDetailView(snap threads.DetailSnapshot) DetailView {
	view := DetailView{
		Type:     "post",
		Post:     snap.Post,
		Found:    snap.Found(),
		Comments: make([]CommentView, 0, len(snap.Comments)),
	}
	for _, c := range snap.Comments {
		view.Comments = append(view.Comments, NewCommentView(c))
	}
	return view
}
