package domain

import (
	"sort"
	"strings"
	"time"
)

type Post struct {
	ID           string    `json:"id" bson:"_id"`
	AuthorID     string    `json:"author_id" bson:"author_id"`
	Title        string    `json:"title" bson:"title"`
	Body         string    `json:"body" bson:"body"`
	ImageURL     string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Upvotes      int       `json:"upvotes" bson:"upvotes"`
	CommentCount int       `json:"comment_count" bson:"comment_count"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

func (p *Post) Validate() error {
	var fields []string
	if strings.TrimSpace(p.Title) == "" || len(p.Title) > 200 {
		fields = append(fields, "title")
	}
	if strings.TrimSpace(p.Body) == "" {
		fields = append(fields, "body")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	PostID    string    `json:"post_id" bson:"post_id"`
	ParentID  *string   `json:"parent_id" bson:"parent_id"`
	AuthorID  string    `json:"author_id" bson:"author_id"`
	Body      string    `json:"body" bson:"body"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (c *Comment) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return NewValidationError("body")
	}
	return nil
}

// CommentNode is one rendered comment with its nested replies.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}

// BuildCommentTree assembles a flat list of comments into a forest.
// Top-level comments are ordered newest first, replies oldest first at every depth.
// A comment whose parent is missing from the list is treated as top-level.
func BuildCommentTree(comments []Comment) []*CommentNode {
	nodes := make(map[string]*CommentNode, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &CommentNode{Comment: comments[i], Replies: []*CommentNode{}}
	}

	roots := make([]*CommentNode, 0)
	for i := range comments {
		node := nodes[comments[i].ID]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	for _, node := range nodes {
		sort.SliceStable(node.Replies, func(i, j int) bool {
			return node.Replies[i].CreatedAt.Before(node.Replies[j].CreatedAt)
		})
	}
	return roots
}

type Upvote struct {
	PostID    string    `bson:"post_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type NotificationType string

const (
	NotificationComment NotificationType = "COMMENT"
	NotificationReply   NotificationType = "REPLY"
	NotificationUpvote  NotificationType = "UPVOTE"
	NotificationOrder   NotificationType = "ORDER"
)

type Notification struct {
	ID        string           `json:"id" bson:"_id"`
	UserID    string           `json:"user_id" bson:"user_id"`
	Type      NotificationType `json:"type" bson:"type"`
	ActorID   string           `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	PostID    string           `json:"post_id,omitempty" bson:"post_id,omitempty"`
	CommentID string           `json:"comment_id,omitempty" bson:"comment_id,omitempty"`
	OrderID   string           `json:"order_id,omitempty" bson:"order_id,omitempty"`
	EventID   string           `json:"-" bson:"event_id,omitempty"`
	Message   string           `json:"message" bson:"message"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}
