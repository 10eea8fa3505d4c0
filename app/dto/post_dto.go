package dto

import (
	"time"
)

// SchedulePostRequest represents the request to schedule a post
type SchedulePostRequest struct {
	TeamID      uint           `json:"-"`
	UserID      uint           `json:"-"`
	Content     string         `json:"content" validate:"required,min=1,max=63206"`
	MediaURLs   []string       `json:"media_urls,omitempty" validate:"omitempty,max=4,dive,url"`
	Platforms   []string       `json:"platforms" validate:"required,min=1,dive,min=1"`
	ScheduledAt time.Time      `json:"scheduled_at" validate:"required"`
	Timezone    string         `json:"timezone,omitempty" validate:"omitempty,max=64"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SchedulePostResponse represents the response after scheduling a post
type SchedulePostResponse struct {
	UUID        string    `json:"uuid"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DelayMs     int64     `json:"delay_ms"`
	QueueJobID  string    `json:"queue_job_id"`
	CreatedAt   string    `json:"created_at"`
}

// CancelPostRequest represents the request to cancel a scheduled post
type CancelPostRequest struct {
	TeamID   uint   `json:"-"`
	PostUUID string `json:"-" validate:"required,uuid4"`
}

// CancelPostResponse represents the response after cancelling a post
type CancelPostResponse struct {
	UUID       string `json:"uuid"`
	Status     string `json:"status"`
	JobRemoved bool   `json:"job_removed"`
}

// ReschedulePostRequest represents the request to reschedule a post
type ReschedulePostRequest struct {
	TeamID      uint      `json:"-"`
	PostUUID    string    `json:"-" validate:"required,uuid4"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// ReschedulePostResponse represents the response after rescheduling a post
type ReschedulePostResponse struct {
	UUID        string    `json:"uuid"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DelayMs     int64     `json:"delay_ms"`
	QueueJobID  string    `json:"queue_job_id"`
}

// PlatformResultDTO represents one platform's publish outcome
type PlatformResultDTO struct {
	Platform       string  `json:"platform"`
	Success        bool    `json:"success"`
	PlatformPostID *string `json:"platform_post_id,omitempty"`
	URL            *string `json:"url,omitempty"`
	Error          *string `json:"error,omitempty"`
}

// PostStatusResponse joins persisted post state with live queue introspection
type PostStatusResponse struct {
	UUID             string              `json:"uuid"`
	Status           string              `json:"status"`
	Content          string              `json:"content"`
	Platforms        []string            `json:"platforms"`
	ScheduledAt      time.Time           `json:"scheduled_at"`
	Timezone         string              `json:"timezone"`
	QueueJobID       *string             `json:"queue_job_id,omitempty"`
	DelayRemainingMs *int64              `json:"delay_remaining_ms,omitempty"`
	JobState         *string             `json:"job_state,omitempty"`
	JobProgress      *int                `json:"job_progress,omitempty"`
	PlatformResults  []PlatformResultDTO `json:"platform_results,omitempty"`
	CreatedAt        string              `json:"created_at"`
	UpdatedAt        *string             `json:"updated_at,omitempty"`
}

// RetryPostRequest represents the operator-triggered retry of failed platforms
type RetryPostRequest struct {
	TeamID   uint   `json:"-"`
	PostUUID string `json:"-" validate:"required,uuid4"`
}

// RetryPostResponse represents the response after requeuing failed platforms
type RetryPostResponse struct {
	UUID       string   `json:"uuid"`
	Status     string   `json:"status"`
	Platforms  []string `json:"platforms"`
	QueueJobID string   `json:"queue_job_id"`
}

// PublishJobPayload is the denormalized job body carried through the queue.
// The worker re-validates the post's authoritative state before acting on it.
type PublishJobPayload struct {
	PostUUID  string   `json:"post_uuid"`
	TeamID    uint     `json:"team_id"`
	UserID    uint     `json:"user_id"`
	Content   string   `json:"content"`
	Platforms []string `json:"platforms"`
	MediaURLs []string `json:"media_urls,omitempty"`
}
