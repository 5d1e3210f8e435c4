package domain

import (
	"context"
	"time"
)

// Comment is visitor feedback attached to one design.
type Comment struct {
	ID             string    `json:"id"`
	DesignFilename string    `json:"-"`
	Text           string    `json:"text"`
	Author         string    `json:"author,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Replies        []Reply   `json:"replies,omitempty"`
}

// Reply answers a single comment.
type Reply struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger maps a design filename to its comments, oldest first.
type Ledger map[string][]Comment

// CommentsFor returns the comments for filename, never nil.
func (l Ledger) CommentsFor(filename string) []Comment {
	if comments, ok := l[filename]; ok {
		return comments
	}
	return []Comment{}
}

// Count returns the total number of comments across all designs.
func (l Ledger) Count() int {
	n := 0
	for _, comments := range l {
		n += len(comments)
	}
	return n
}

// CommentStore owns the ledger document. Implementations serialize
// read-modify-write cycles so concurrent appends are never lost.
type CommentStore interface {
	Load(ctx context.Context) (Ledger, error)
	Append(ctx context.Context, designFilename, text, author string) (*Comment, error)
	AppendReply(ctx context.Context, designFilename, commentID, text, author string) (*Reply, error)
	CommentsFor(ctx context.Context, designFilename string) ([]Comment, error)
}
