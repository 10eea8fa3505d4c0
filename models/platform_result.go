package models

import (
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlatformResult represents the outcome of publishing a post to a single platform.
// One row per (post, platform) pair per processing run; rows are never mutated.
type PlatformResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_platform_results_uuid" json:"uuid"`
	PostID         uint      `gorm:"not null;index:idx_platform_results_post_id" json:"post_id"`
	Platform       string    `gorm:"type:varchar(32);not null;index:idx_platform_results_platform" json:"platform"`
	Success        bool      `gorm:"not null" json:"success"`
	PlatformPostID *string   `gorm:"type:varchar(128)" json:"platform_post_id,omitempty"`
	URL            *string   `gorm:"type:text" json:"url,omitempty"`
	Error          *string   `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Post *Post `gorm:"foreignKey:PostID;references:ID" json:"post,omitempty"`
}

// TableName returns the table name for the model
func (PlatformResult) TableName() string {
	return "platform_results"
}

// BeforeCreate is called before creating a new record
func (r *PlatformResult) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// PlatformResultFilter represents filter criteria for platform results
type PlatformResultFilter struct {
	ID       *uint   `json:"id,omitempty"`
	PostID   *uint   `json:"post_id,omitempty"`
	Platform *string `json:"platform,omitempty"`
	Success  *bool   `json:"success,omitempty"`
}
