package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationPriority represents the severity of a notification
type NotificationPriority string

const (
	PriorityNormal    NotificationPriority = "normal"
	PriorityImportant NotificationPriority = "important"
	PriorityCritical  NotificationPriority = "critical"
)

// ValidPriority checks whether a priority value is one of the known levels
func ValidPriority(p string) bool {
	switch NotificationPriority(p) {
	case PriorityNormal, PriorityImportant, PriorityCritical:
		return true
	}
	return false
}

// Known notification type categories
var NotificationTypes = []string{
	"task", "deadline", "reward", "achievement", "message",
	"report", "success", "warning", "error", "announcement",
}

// ValidNotificationType checks whether a type value is a known category
func ValidNotificationType(t string) bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification represents a persisted notification event.
// ID is the sole deduplication key across the REST baseline and the
// pub/sub transport. A null UserID means the notification is broadcast
// to every user.
type Notification struct {
	ID             string               `gorm:"column:id;primaryKey;size:36" json:"id"`
	UserID         *uint                `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Title          string               `gorm:"column:title;size:255;not null" json:"title"`
	Message        string               `gorm:"column:message;type:text" json:"message"`
	Type           string               `gorm:"column:type;size:50;not null;default:'message'" json:"type"`
	Priority       NotificationPriority `gorm:"column:priority;size:20;not null;default:'normal';index" json:"priority"`
	Link           string               `gorm:"column:link;size:500" json:"link,omitempty"`
	Sound          string               `gorm:"column:sound;size:100;default:'default'" json:"sound,omitempty"`
	IsRead         bool                 `gorm:"column:is_read;default:false" json:"is_read"`
	IsAcknowledged bool                 `gorm:"column:is_acknowledged;default:false" json:"is_acknowledged"`
	AcknowledgedAt *time.Time           `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time            `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt      gorm.DeletedAt       `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
