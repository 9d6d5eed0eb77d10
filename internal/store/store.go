// Package store persists notifications behind a backend-neutral interface.
//
// Every backend enforces a uniqueness constraint on post_id so concurrent creates
// for the same post converge on a single record without application locks.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no notification matches the lookup.
	ErrNotFound = errors.New("store: notification not found")
	// ErrDuplicatePost is returned by Insert when a notification already exists for the post.
	ErrDuplicatePost = errors.New("store: notification for post already exists")
)

// Notification is the stored form of a post announcement.
type Notification struct {
	ID        string
	PostID    string
	Message   string
	SeenBy    []string
	CreatedAt time.Time
}

// HasSeen reports whether userID is in the seen set.
func (n *Notification) HasSeen(userID string) bool {
	for _, id := range n.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ListOptions pages List results. A zero Limit returns every record.
type ListOptions struct {
	Limit  int
	Offset int
}

// NotificationStore is implemented by each storage backend.
type NotificationStore interface {
	// FindByPostID returns ErrNotFound when the post has no notification.
	FindByPostID(ctx context.Context, postID string) (*Notification, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Notification, error)
	// Insert stores n, filling ID and CreatedAt when empty. It returns ErrDuplicatePost
	// when the post_id uniqueness constraint rejects the write.
	Insert(ctx context.Context, n *Notification) error
	// AddSeen adds userID to the seen set and returns the updated record.
	AddSeen(ctx context.Context, id, userID string, at time.Time) (*Notification, error)
	// List returns notifications ordered by created_at descending.
	List(ctx context.Context, opts ListOptions) ([]Notification, error)
	// Count returns the number of stored notifications.
	Count(ctx context.Context) (int64, error)
	// DeleteCreatedBefore removes every notification created strictly before cutoff.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
