package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostStatus represents the status of a post
type PostStatus string

const (
	PostStatusDraft           PostStatus = "draft"
	PostStatusScheduled       PostStatus = "scheduled"
	PostStatusPublished       PostStatus = "published"
	PostStatusPartiallyFailed PostStatus = "partially_failed"
	PostStatusFailed          PostStatus = "failed"
	PostStatusCancelled       PostStatus = "cancelled"
)

// String returns the string representation of the status
func (s PostStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished,
		PostStatusPartiallyFailed, PostStatusFailed, PostStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is an end state
func (s PostStatus) IsTerminal() bool {
	switch s {
	case PostStatusPublished, PostStatusPartiallyFailed, PostStatusFailed, PostStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PostStatus
func (s *PostStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PostStatus(v)
	case []byte:
		*s = PostStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PostStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PostStatus
func (s PostStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PostStatus: %s", s)
	}
	return string(s), nil
}

// Post represents a scheduled social post in the database
type Post struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_posts_uuid" json:"uuid"`
	TeamID      uint            `gorm:"not null;index:idx_posts_team_id" json:"team_id"`
	UserID      uint            `gorm:"not null;index:idx_posts_user_id" json:"user_id"`
	Content     string          `gorm:"type:text;not null" json:"content"`
	MediaURLs   pq.StringArray  `gorm:"type:text[]" json:"media_urls,omitempty"`
	Platforms   pq.StringArray  `gorm:"type:text[];not null" json:"platforms"`
	ScheduledAt time.Time       `gorm:"not null;index:idx_posts_scheduled_at" json:"scheduled_at"`
	Timezone    string          `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Status      PostStatus      `gorm:"type:post_status;not null;default:'draft';index:idx_posts_status" json:"status"`
	QueueJobID  *string         `gorm:"type:varchar(64);index:idx_posts_queue_job_id" json:"queue_job_id,omitempty"`
	Metadata    json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_posts_created_at" json:"created_at"`
	UpdatedAt   *time.Time      `gorm:"index:idx_posts_updated_at" json:"updated_at,omitempty"`

	// Relations
	PlatformResults []PlatformResult `gorm:"foreignKey:PostID" json:"platform_results,omitempty"`
}

// TableName returns the table name for the model
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate is called before creating a new record
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PostStatusDraft
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (p *Post) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	p.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks if the post can transition to the given status
func (p *Post) CanTransitionTo(newStatus PostStatus) bool {
	switch p.Status {
	case PostStatusDraft:
		return newStatus == PostStatusScheduled
	case PostStatusScheduled:
		return newStatus == PostStatusPublished ||
			newStatus == PostStatusPartiallyFailed ||
			newStatus == PostStatusFailed ||
			newStatus == PostStatusCancelled
	case PostStatusFailed, PostStatusPartiallyFailed:
		// Operator-triggered retry re-schedules the failed platforms
		return newStatus == PostStatusScheduled
	default:
		return false
	}
}

// IsCancellable checks if the post can still be cancelled
func (p *Post) IsCancellable() bool {
	return p.Status == PostStatusScheduled
}

// PostFilter represents filter criteria for posts
type PostFilter struct {
	ID              *uint       `json:"id,omitempty"`
	UUID            *uuid.UUID  `json:"uuid,omitempty"`
	TeamID          *uint       `json:"team_id,omitempty"`
	UserID          *uint       `json:"user_id,omitempty"`
	Status          *PostStatus `json:"status,omitempty"`
	Platform        *string     `json:"platform,omitempty"`
	ScheduledAfter  *time.Time  `json:"scheduled_after,omitempty"`
	ScheduledBefore *time.Time  `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time  `json:"created_after,omitempty"`
	CreatedBefore   *time.Time  `json:"created_before,omitempty"`
}
