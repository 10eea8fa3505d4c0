package dto

import "time"

// CreateWebhookConfigRequest represents the request to register a webhook endpoint
type CreateWebhookConfigRequest struct {
	TeamID uint     `json:"-"`
	URL    string   `json:"url" validate:"required,url,max=2048"`
	Events []string `json:"events" validate:"required,min=1,dive,min=1"`
	Name   string   `json:"name" validate:"required,min=1,max=128"`
}

// UpdateWebhookConfigRequest represents a partial update of a webhook endpoint
type UpdateWebhookConfigRequest struct {
	TeamID     uint      `json:"-"`
	ConfigUUID string    `json:"-" validate:"required,uuid4"`
	URL        *string   `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	Events     *[]string `json:"events,omitempty" validate:"omitempty,min=1,dive,min=1"`
	Name       *string   `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	IsActive   *bool     `json:"is_active,omitempty"`
}

// WebhookConfigResponse represents a webhook endpoint. The signing secret is
// only included on creation.
type WebhookConfigResponse struct {
	UUID      string   `json:"uuid"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Name      string   `json:"name"`
	IsActive  bool     `json:"is_active"`
	Secret    string   `json:"secret,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt *string  `json:"updated_at,omitempty"`
}

// TestWebhookRequest represents the request to fire a synthetic event at one endpoint
type TestWebhookRequest struct {
	TeamID     uint   `json:"-"`
	ConfigUUID string `json:"-" validate:"required,uuid4"`
}

// TestWebhookResponse represents the outcome of a synthetic delivery attempt
type TestWebhookResponse struct {
	UUID         string  `json:"uuid"`
	Delivered    bool    `json:"delivered"`
	ResponseCode *int    `json:"response_code,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// WebhookDeliveryDTO represents one recorded delivery attempt
type WebhookDeliveryDTO struct {
	UUID         string     `json:"uuid"`
	Event        string     `json:"event"`
	Status       string     `json:"status"`
	ResponseCode *int       `json:"response_code,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    string     `json:"created_at"`
}

// WebhookJobPayload is the job body for asynchronous webhook fan-out
type WebhookJobPayload struct {
	Event    string         `json:"event"`
	TeamID   uint           `json:"team_id"`
	UserID   uint           `json:"user_id"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
