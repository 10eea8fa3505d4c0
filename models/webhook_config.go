package models

import (
	"net/url"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// WebhookEvent enumerates the outbound event names third parties can subscribe to
type WebhookEvent string

const (
	WebhookEventPostPublished        WebhookEvent = "post.published"
	WebhookEventPostFailed           WebhookEvent = "post.failed"
	WebhookEventPostScheduled        WebhookEvent = "post.scheduled"
	WebhookEventUserInvited          WebhookEvent = "user.invited"
	WebhookEventPlatformConnected    WebhookEvent = "platform.connected"
	WebhookEventPlatformDisconnected WebhookEvent = "platform.disconnected"
	WebhookEventTest                 WebhookEvent = "webhook.test"
)

// String returns the string representation of the event
func (e WebhookEvent) String() string {
	return string(e)
}

// Valid checks if the event name is part of the enumeration
func (e WebhookEvent) Valid() bool {
	switch e {
	case WebhookEventPostPublished, WebhookEventPostFailed, WebhookEventPostScheduled,
		WebhookEventUserInvited, WebhookEventPlatformConnected,
		WebhookEventPlatformDisconnected, WebhookEventTest:
		return true
	default:
		return false
	}
}

// AllWebhookEvents lists every registrable event name
func AllWebhookEvents() []WebhookEvent {
	return []WebhookEvent{
		WebhookEventPostPublished,
		WebhookEventPostFailed,
		WebhookEventPostScheduled,
		WebhookEventUserInvited,
		WebhookEventPlatformConnected,
		WebhookEventPlatformDisconnected,
		WebhookEventTest,
	}
}

// WebhookConfig represents a team's registered webhook endpoint
type WebhookConfig struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_webhook_configs_uuid" json:"uuid"`
	TeamID    uint           `gorm:"not null;index:idx_webhook_configs_team_id" json:"team_id"`
	Name      string         `gorm:"type:varchar(128);not null" json:"name"`
	URL       string         `gorm:"type:text;not null" json:"url"`
	Events    pq.StringArray `gorm:"type:text[];not null" json:"events"`
	Secret    string         `gorm:"type:varchar(128);not null" json:"-"`
	IsActive  *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Deliveries []WebhookDelivery `gorm:"foreignKey:WebhookConfigID" json:"deliveries,omitempty"`
}

// TableName returns the table name for the model
func (WebhookConfig) TableName() string {
	return "webhook_configs"
}

// BeforeCreate is called before creating a new record
func (w *WebhookConfig) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	if w.IsActive == nil {
		w.IsActive = utils.ToPtr(true)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (w *WebhookConfig) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	w.UpdatedAt = &now
	return nil
}

// SubscribesTo reports whether the config is subscribed to the given event
func (w *WebhookConfig) SubscribesTo(event WebhookEvent) bool {
	for _, e := range w.Events {
		if e == event.String() {
			return true
		}
	}
	return false
}

// IsValidWebhookURL restricts registrable URLs to http/https schemes
func IsValidWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// WebhookConfigFilter represents filter criteria for webhook configs
type WebhookConfigFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	TeamID   *uint      `json:"team_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
	Event    *string    `json:"event,omitempty"`
}
