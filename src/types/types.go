package types

import (
	"context"
	"time"
)

type Post struct {
	ID         string          `json:"UUID"`
	Author     Author          `json:"author"`
	Text       string          `json:"text"`
	Votes      map[string]Vote `json:"votes,omitempty"`
	TimePosted time.Time       `json:"timePosted"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
}

type Author struct {
	ID          string    `json:"UUID"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Emoji       string    `json:"emoji"`
	Color       []float64 `json:"color,omitempty"`
}

// Vote is keyed by the voter's UUID inside Post.Votes.
type Vote struct {
	ID         string    `json:"UUID"`
	UserID     string    `json:"userUUID"`
	IsUpvote   bool      `json:"isUpvote"`
	TimePosted time.Time `json:"timePosted"`
}

// MaxListWindow caps offset+limit of a paged listing; the Elastic index
// is created with the same max_result_window.
const MaxListWindow = 20000

// PostStore is the read side of the document store used by the handlers.
type PostStore interface {
	// RecentPosts returns at most limit posts ordered by TimePosted, newest first.
	RecentPosts(ctx context.Context, limit int) ([]Post, error)
	GetPosts(ctx context.Context, limit, offset int) ([]Post, int, error)
	Ping(ctx context.Context) error
}

type PostWriter interface {
	SavePosts(ctx context.Context, posts []Post) error
	EnsureSchema(ctx context.Context) error
}
