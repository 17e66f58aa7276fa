package models

import (
	"time"
)

// UserPreference holds per-user notification preferences. Each field has
// exactly one writer path: last_seen_version is written only by the
// version gate's close handler, muted only by the mute toggle.
type UserPreference struct {
	ID              uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID          uint      `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	LastSeenVersion string    `gorm:"column:last_seen_version;size:50" json:"last_seen_version"`
	Muted           bool      `gorm:"column:muted;default:false" json:"muted"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for UserPreference
func (UserPreference) TableName() string {
	return "user_preferences"
}
