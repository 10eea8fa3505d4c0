package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/utils"
)

// WebhookDeliverer handles queued webhook jobs by fanning the envelope out to
// every subscribed endpoint for the team.
type WebhookDeliverer struct {
	delivery services.WebhookDeliveryService
}

// NewWebhookDeliverer creates a webhook deliverer
func NewWebhookDeliverer(delivery services.WebhookDeliveryService) *WebhookDeliverer {
	return &WebhookDeliverer{delivery: delivery}
}

// Deliver handles one queued webhook job. Delivery failures to individual
// endpoints are recorded, not returned; only a broken payload or a config
// lookup failure fails the job.
func (w *WebhookDeliverer) Deliver(ctx context.Context, job *queue.Job) error {
	var payload dto.WebhookJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}

	event := models.WebhookEvent(payload.Event)
	if !event.Valid() {
		return fmt.Errorf("unknown webhook event %q", payload.Event)
	}

	envelope := &services.WebhookEnvelope{
		Event:     payload.Event,
		Data:      payload.Data,
		Timestamp: utils.UTCNow().Format(time.RFC3339),
		TeamID:    payload.TeamID,
		UserID:    payload.UserID,
		Metadata:  payload.Metadata,
	}

	if _, err := w.delivery.SendToMultiple(ctx, payload.TeamID, event, envelope); err != nil {
		return fmt.Errorf("webhook fan-out failed for event %s: %w", payload.Event, err)
	}

	return nil
}
