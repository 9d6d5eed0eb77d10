package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/solite/internal/notifications"
	"github.com/charlesng35/solite/internal/store"
	apperrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
)

// NotificationRecord is the requester-independent view of a notification.
type NotificationRecord struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Message   string    `json:"message"`
	SeenBy    []string  `json:"seen_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationDTO is a notification projected for one requester. IsSeen is
// computed at read time and never stored.
type NotificationDTO struct {
	NotificationRecord
	IsSeen bool `json:"is_seen"`
}

// CreateNotificationInput defines attributes required to create a notification.
type CreateNotificationInput struct {
	PostID      string
	Message     string
	RequesterID string
}

// ListNotificationsInput pages the notification list. A zero Limit returns everything.
type ListNotificationsInput struct {
	RequesterID string
	Limit       int
	Offset      int
}

// NotificationBroadcaster pushes events to connected clients.
type NotificationBroadcaster interface {
	Broadcast(event notifications.Event)
}

// NotificationService owns the one-notification-per-post invariant and the
// monotone seen set of each notification.
type NotificationService struct {
	store store.NotificationStore
	hub   NotificationBroadcaster
	now   func() time.Time
	log   *zap.Logger
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithNotificationClock overrides the clock used for seen timestamps.
func WithNotificationClock(now func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNotificationService constructs a NotificationService. The broadcaster is optional.
func NewNotificationService(st store.NotificationStore, hub NotificationBroadcaster, opts ...NotificationOption) (*NotificationService, error) {
	if st == nil {
		return nil, errors.New("notification service: store is required")
	}
	svc := &NotificationService{
		store: st,
		hub:   hub,
		now:   time.Now,
		log:   logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create returns the notification for the post, inserting it when absent. The
// boolean reports whether this call stored a new record. Concurrent creates for
// the same post are settled by the store's uniqueness constraint: the loser
// re-reads and returns the winner unchanged.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, bool, error) {
	ctx = ensureContext(ctx)

	postID := strings.TrimSpace(input.PostID)
	requesterID := strings.TrimSpace(input.RequesterID)
	message := strings.TrimSpace(input.Message)
	if requesterID == "" {
		return nil, false, apperrors.ErrUnauthorized
	}
	if postID == "" {
		return nil, false, apperrors.NewBadRequest("post_id is required")
	}
	if message == "" {
		return nil, false, apperrors.NewBadRequest("message is required")
	}

	existing, err := s.store.FindByPostID(ctx, postID)
	switch {
	case err == nil:
		metrics.NotificationsCreated.WithLabelValues("existing").Inc()
		dto := project(existing, requesterID)
		return &dto, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("notification service: lookup post %s: %w", postID, err)
	}

	record := &store.Notification{
		PostID:  postID,
		Message: message,
		SeenBy:  []string{requesterID},
	}
	if err := s.store.Insert(ctx, record); err != nil {
		if !errors.Is(err, store.ErrDuplicatePost) {
			return nil, false, fmt.Errorf("notification service: insert: %w", err)
		}
		winner, err := s.store.FindByPostID(ctx, postID)
		if err != nil {
			return nil, false, fmt.Errorf("notification service: reload after conflict: %w", err)
		}
		metrics.NotificationsCreated.WithLabelValues("existing").Inc()
		dto := project(winner, requesterID)
		return &dto, false, nil
	}

	metrics.NotificationsCreated.WithLabelValues("created").Inc()
	s.log.Debug("notification created", zap.String("notification_id", record.ID), zap.String("post_id", postID))

	dto := project(record, requesterID)
	s.broadcast(notifications.EventCreated, dto.NotificationRecord)
	return &dto, true, nil
}

// List returns every notification newest first, annotated for the requester,
// together with the total number of stored notifications.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, int64, error) {
	ctx = ensureContext(ctx)
	requesterID := strings.TrimSpace(input.RequesterID)
	if requesterID == "" {
		return nil, 0, apperrors.ErrUnauthorized
	}
	if input.Limit < 0 || input.Offset < 0 {
		return nil, 0, apperrors.NewBadRequest("limit and offset must not be negative")
	}

	rows, err := s.store.List(ctx, store.ListOptions{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, 0, fmt.Errorf("notification service: list: %w", err)
	}

	total := int64(len(rows))
	if input.Limit > 0 || input.Offset > 0 {
		if total, err = s.store.Count(ctx); err != nil {
			return nil, 0, fmt.Errorf("notification service: count: %w", err)
		}
	}

	items := make([]NotificationDTO, 0, len(rows))
	for i := range rows {
		items = append(items, project(&rows[i], requesterID))
	}
	return items, total, nil
}

// MarkSeen adds the requester to the notification's seen set. Repeated calls are no-ops.
func (s *NotificationService) MarkSeen(ctx context.Context, requesterID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	requesterID = strings.TrimSpace(requesterID)
	notificationID = strings.TrimSpace(notificationID)
	if requesterID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if notificationID == "" {
		return nil, apperrors.ErrNotFound
	}

	updated, err := s.store.AddSeen(ctx, notificationID, requesterID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Notification not found")
		}
		return nil, fmt.Errorf("notification service: mark seen: %w", err)
	}

	metrics.NotificationsSeen.Inc()

	dto := project(updated, requesterID)
	s.broadcast(notifications.EventSeen, dto.NotificationRecord)
	return &dto, nil
}

// PurgeOlderThan deletes every notification created before cutoff, seen or not.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.store.DeleteCreatedBefore(ensureContext(ctx), cutoff)
	if err != nil {
		return 0, fmt.Errorf("notification service: purge: %w", err)
	}
	if removed > 0 {
		metrics.NotificationsPurged.Add(float64(removed))
	}
	return removed, nil
}

func (s *NotificationService) broadcast(event string, record NotificationRecord) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(notifications.Event{
		Event:          event,
		Notification:   record,
		NotificationID: record.ID,
	})
}

func project(n *store.Notification, requesterID string) NotificationDTO {
	seenBy := make([]string, len(n.SeenBy))
	copy(seenBy, n.SeenBy)
	return NotificationDTO{
		NotificationRecord: NotificationRecord{
			ID:        n.ID,
			PostID:    n.PostID,
			Message:   n.Message,
			SeenBy:    seenBy,
			CreatedAt: n.CreatedAt,
		},
		IsSeen: n.HasSeen(requesterID),
	}
}
