package models

import "time"

// Notification announces a new post. There is at most one notification per post.
type Notification struct {
	BaseModel

	PostID  string             `gorm:"type:varchar(36);uniqueIndex;not null" json:"post_id"`
	Message string             `gorm:"type:text;not null" json:"message"`
	Seen    []NotificationSeen `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"-"`
}

// NotificationSeen records that a user has seen a notification. Rows are only ever
// added; the composite key makes repeated marks a no-op.
type NotificationSeen struct {
	NotificationID string    `gorm:"primaryKey;type:varchar(36)" json:"notification_id"`
	UserID         string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	SeenAt         time.Time `json:"seen_at"`
}

// SeenBy returns the ids of users that have seen the notification, in load order.
func (n *Notification) SeenBy() []string {
	ids := make([]string, 0, len(n.Seen))
	for _, seen := range n.Seen {
		ids = append(ids, seen.UserID)
	}
	return ids
}
