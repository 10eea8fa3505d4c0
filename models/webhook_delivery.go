package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookDeliveryStatus represents the status of a webhook delivery attempt
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusSuccess WebhookDeliveryStatus = "success"
	WebhookDeliveryStatusFailed  WebhookDeliveryStatus = "failed"
)

// String returns the string representation of the status
func (s WebhookDeliveryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s WebhookDeliveryStatus) Valid() bool {
	switch s {
	case WebhookDeliveryStatusPending, WebhookDeliveryStatusSuccess, WebhookDeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for WebhookDeliveryStatus
func (s *WebhookDeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = WebhookDeliveryStatus(v)
	case []byte:
		*s = WebhookDeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into WebhookDeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for WebhookDeliveryStatus
func (s WebhookDeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid WebhookDeliveryStatus: %s", s)
	}
	return string(s), nil
}

// WebhookDelivery is an append-only audit row recording one delivery outcome
type WebhookDelivery struct {
	ID              uint                  `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uk_webhook_deliveries_uuid" json:"uuid"`
	WebhookConfigID uint                  `gorm:"not null;index:idx_webhook_deliveries_config_id" json:"webhook_config_id"`
	Event           string                `gorm:"type:varchar(64);not null;index:idx_webhook_deliveries_event" json:"event"`
	Status          WebhookDeliveryStatus `gorm:"type:webhook_delivery_status;not null;default:'pending'" json:"status"`
	ResponseCode    *int                  `json:"response_code,omitempty"`
	ResponseBody    *string               `gorm:"type:text" json:"response_body,omitempty"`
	AttemptCount    int                   `gorm:"not null;default:0" json:"attempt_count"`
	CreatedAt       time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_webhook_deliveries_created_at" json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`

	// Relations
	WebhookConfig *WebhookConfig `gorm:"foreignKey:WebhookConfigID;references:ID" json:"webhook_config,omitempty"`
}

// TableName returns the table name for the model
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

// BeforeCreate is called before creating a new record
func (d *WebhookDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	if d.Status == "" {
		d.Status = WebhookDeliveryStatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// WebhookDeliveryFilter represents filter criteria for webhook deliveries
type WebhookDeliveryFilter struct {
	ID              *uint                  `json:"id,omitempty"`
	WebhookConfigID *uint                  `json:"webhook_config_id,omitempty"`
	Event           *string                `json:"event,omitempty"`
	Status          *WebhookDeliveryStatus `json:"status,omitempty"`
	CreatedAfter    *time.Time             `json:"created_after,omitempty"`
	CreatedBefore   *time.Time             `json:"created_before,omitempty"`
}
