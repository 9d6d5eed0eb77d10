package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/solite/internal/database"
	"github.com/charlesng35/solite/internal/models"
)

// GormStore keeps notifications in the relational database. Seen state lives in
// the notification_seens join table keyed by (notification_id, user_id).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore using the provided database handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("gorm store: db is required")
	}
	return &GormStore{db: db}, nil
}

// FindByPostID implements NotificationStore.
func (s *GormStore) FindByPostID(ctx context.Context, postID string) (*Notification, error) {
	return s.first(ctx, "post_id = ?", postID)
}

// Get implements NotificationStore.
func (s *GormStore) Get(ctx context.Context, id string) (*Notification, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) first(ctx context.Context, query string, arg string) (*Notification, error) {
	var row models.Notification
	err := s.db.WithContext(ctx).
		Preload("Seen", func(tx *gorm.DB) *gorm.DB { return tx.Order("seen_at ASC, user_id ASC") }).
		Where(query, arg).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gorm store: load notification: %w", err)
	}
	return fromModel(&row), nil
}

// Insert implements NotificationStore.
func (s *GormStore) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("gorm store: generate id: %w", err)
		}
		n.ID = id.String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	// SQLite compares timestamps as text, so everything is stored in UTC.
	n.CreatedAt = n.CreatedAt.UTC()

	row := models.Notification{
		BaseModel: models.BaseModel{ID: n.ID, CreatedAt: n.CreatedAt, UpdatedAt: n.CreatedAt},
		PostID:    n.PostID,
		Message:   n.Message,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, userID := range n.SeenBy {
			seen := models.NotificationSeen{NotificationID: row.ID, UserID: userID, SeenAt: n.CreatedAt}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seen).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicatePost
		}
		return fmt.Errorf("gorm store: insert notification: %w", err)
	}
	return nil
}

// AddSeen implements NotificationStore.
func (s *GormStore) AddSeen(ctx context.Context, id, userID string, at time.Time) (*Notification, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Notification{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		seen := models.NotificationSeen{NotificationID: id, UserID: userID, SeenAt: at.UTC()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seen).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm store: mark seen: %w", err)
	}
	return s.Get(ctx, id)
}

// List implements NotificationStore.
func (s *GormStore) List(ctx context.Context, opts ListOptions) ([]Notification, error) {
	query := s.db.WithContext(ctx).
		Preload("Seen", func(tx *gorm.DB) *gorm.DB { return tx.Order("seen_at ASC, user_id ASC") }).
		Order("created_at DESC").
		Order("id DESC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm store: list notifications: %w", err)
	}

	out := make([]Notification, 0, len(rows))
	for i := range rows {
		out = append(out, *fromModel(&rows[i]))
	}
	return out, nil
}

// Count implements NotificationStore.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm store: count notifications: %w", err)
	}
	return total, nil
}

// DeleteCreatedBefore implements NotificationStore. Seen rows go first so the purge
// does not depend on foreign key cascades being enabled.
func (s *GormStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.Notification{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("notification_id IN (?)", expired).Delete(&models.NotificationSeen{}).Error; err != nil {
			return err
		}
		result := tx.Where("created_at < ?", cutoff).Delete(&models.Notification{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("gorm store: purge notifications: %w", err)
	}
	return removed, nil
}

func fromModel(row *models.Notification) *Notification {
	return &Notification{
		ID:        row.ID,
		PostID:    row.PostID,
		Message:   row.Message,
		SeenBy:    row.SeenBy(),
		CreatedAt: row.CreatedAt,
	}
}
