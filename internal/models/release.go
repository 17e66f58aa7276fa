package models

import (
	"time"

	"gorm.io/gorm"
)

// Release represents a published product release. The latest release
// version is compared against each user's last_seen_version to decide
// whether the "what's new" modal should be shown.
type Release struct {
	ID         uint           `gorm:"column:id;primaryKey" json:"id"`
	Version    string         `gorm:"column:version;uniqueIndex;size:50;not null" json:"version"`
	Title      string         `gorm:"column:title;size:255" json:"title"`
	Notes      string         `gorm:"column:notes;type:text" json:"notes"`
	ReleasedAt time.Time      `gorm:"column:released_at" json:"released_at"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for Release
func (Release) TableName() string {
	return "releases"
}
