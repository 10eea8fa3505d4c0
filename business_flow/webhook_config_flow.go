// Package businessflow contains the core business logic and use cases for webhook configuration workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"gorm.io/gorm"
)

// WebhookConfigFlow handles registration and maintenance of webhook endpoints
type WebhookConfigFlow interface {
	CreateWebhookConfig(ctx context.Context, req *dto.CreateWebhookConfigRequest, metadata *ClientMetadata) (*dto.WebhookConfigResponse, error)
	ListWebhookConfigs(ctx context.Context, teamID uint) ([]dto.WebhookConfigResponse, error)
	UpdateWebhookConfig(ctx context.Context, req *dto.UpdateWebhookConfigRequest, metadata *ClientMetadata) (*dto.WebhookConfigResponse, error)
	DeleteWebhookConfig(ctx context.Context, configUUID string, teamID uint) error
	TestWebhook(ctx context.Context, req *dto.TestWebhookRequest, metadata *ClientMetadata) (*dto.TestWebhookResponse, error)
	ListDeliveries(ctx context.Context, configUUID string, teamID uint, limit, offset int) ([]dto.WebhookDeliveryDTO, error)
}

// WebhookConfigFlowImpl implements the webhook configuration business flow
type WebhookConfigFlowImpl struct {
	configRepo   repository.WebhookConfigRepository
	deliveryRepo repository.WebhookDeliveryRepository
	delivery     services.WebhookDeliveryService
	db           *gorm.DB
}

// NewWebhookConfigFlow creates a new webhook config flow instance
func NewWebhookConfigFlow(
	configRepo repository.WebhookConfigRepository,
	deliveryRepo repository.WebhookDeliveryRepository,
	delivery services.WebhookDeliveryService,
	db *gorm.DB,
) WebhookConfigFlow {
	return &WebhookConfigFlowImpl{
		configRepo:   configRepo,
		deliveryRepo: deliveryRepo,
		delivery:     delivery,
		db:           db,
	}
}

// CreateWebhookConfig registers a new webhook endpoint. The generated signing
// secret is returned exactly once, in the creation response.
func (s *WebhookConfigFlowImpl) CreateWebhookConfig(ctx context.Context, req *dto.CreateWebhookConfigRequest, metadata *ClientMetadata) (*dto.WebhookConfigResponse, error) {
	if !models.IsValidWebhookURL(req.URL) {
		return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook validation failed", ErrWebhookURLInvalid)
	}
	events, err := validateEvents(req.Events)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook validation failed", err)
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_CREATION_FAILED", "Failed to generate signing secret", err)
	}

	cfg := &models.WebhookConfig{
		TeamID:   req.TeamID,
		Name:     req.Name,
		URL:      req.URL,
		Events:   events,
		Secret:   secret,
		IsActive: utils.ToPtr(true),
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.configRepo.Save(txCtx, cfg)
	})
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_CREATION_FAILED", "Failed to persist webhook config", err)
	}

	resp := ToWebhookConfigResponse(*cfg, true)
	return &resp, nil
}

// ListWebhookConfigs returns every endpoint registered for the team
func (s *WebhookConfigFlowImpl) ListWebhookConfigs(ctx context.Context, teamID uint) ([]dto.WebhookConfigResponse, error) {
	filter := models.WebhookConfigFilter{TeamID: &teamID}
	configs, err := s.configRepo.ByFilter(ctx, filter, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to list webhook configs", err)
	}

	out := make([]dto.WebhookConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, ToWebhookConfigResponse(*cfg, false))
	}

	return out, nil
}

// UpdateWebhookConfig applies a partial update to an endpoint
func (s *WebhookConfigFlowImpl) UpdateWebhookConfig(ctx context.Context, req *dto.UpdateWebhookConfigRequest, metadata *ClientMetadata) (*dto.WebhookConfigResponse, error) {
	if req.URL == nil && req.Events == nil && req.Name == nil && req.IsActive == nil {
		return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook validation failed", ErrWebhookUpdateRequired)
	}

	cfg, err := getWebhookConfig(ctx, s.configRepo, req.ConfigUUID, req.TeamID)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup webhook config", err)
	}

	if req.URL != nil {
		if !models.IsValidWebhookURL(*req.URL) {
			return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook validation failed", ErrWebhookURLInvalid)
		}
		cfg.URL = *req.URL
	}
	if req.Events != nil {
		events, err := validateEvents(*req.Events)
		if err != nil {
			return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook validation failed", err)
		}
		cfg.Events = events
	}
	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.IsActive != nil {
		cfg.IsActive = req.IsActive
	}

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, NewBusinessError("WEBHOOK_UPDATE_FAILED", "Failed to persist webhook config", err)
	}

	resp := ToWebhookConfigResponse(*cfg, false)
	return &resp, nil
}

// DeleteWebhookConfig removes an endpoint and stops all future deliveries to it
func (s *WebhookConfigFlowImpl) DeleteWebhookConfig(ctx context.Context, configUUID string, teamID uint) error {
	cfg, err := getWebhookConfig(ctx, s.configRepo, configUUID, teamID)
	if err != nil {
		return NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup webhook config", err)
	}

	if err := s.configRepo.Delete(ctx, cfg.ID); err != nil {
		return NewBusinessError("WEBHOOK_DELETE_FAILED", "Failed to delete webhook config", err)
	}

	return nil
}

// TestWebhook delivers a synthetic webhook.test event to one endpoint inline
// so admins can verify their receiver before relying on real events.
func (s *WebhookConfigFlowImpl) TestWebhook(ctx context.Context, req *dto.TestWebhookRequest, metadata *ClientMetadata) (*dto.TestWebhookResponse, error) {
	cfg, err := getWebhookConfig(ctx, s.configRepo, req.ConfigUUID, req.TeamID)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup webhook config", err)
	}
	if !utils.IsTrue(cfg.IsActive) {
		return nil, NewBusinessError("WEBHOOK_STATE_CONFLICT", "Webhook config is inactive", ErrWebhookConfigInactive)
	}

	envelope := &services.WebhookEnvelope{
		Event:     models.WebhookEventTest.String(),
		Data:      map[string]any{"message": "test delivery", "config_uuid": cfg.UUID.String()},
		Timestamp: utils.UTCNow().Format(time.RFC3339),
		TeamID:    req.TeamID,
	}

	result := s.delivery.SendWebhook(ctx, cfg.URL, cfg.Secret, envelope)

	return &dto.TestWebhookResponse{
		UUID:         cfg.UUID.String(),
		Delivered:    result.Success,
		ResponseCode: result.StatusCode,
		Error:        result.Error,
	}, nil
}

// ListDeliveries returns recorded delivery attempts for one endpoint
func (s *WebhookConfigFlowImpl) ListDeliveries(ctx context.Context, configUUID string, teamID uint, limit, offset int) ([]dto.WebhookDeliveryDTO, error) {
	cfg, err := getWebhookConfig(ctx, s.configRepo, configUUID, teamID)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup webhook config", err)
	}

	deliveries, err := s.deliveryRepo.ByConfigID(ctx, cfg.ID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to list webhook deliveries", err)
	}

	out := make([]dto.WebhookDeliveryDTO, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, dto.WebhookDeliveryDTO{
			UUID:         d.UUID.String(),
			Event:        d.Event,
			Status:       d.Status.String(),
			ResponseCode: d.ResponseCode,
			AttemptCount: d.AttemptCount,
			CompletedAt:  d.CompletedAt,
			CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		})
	}

	return out, nil
}

func validateEvents(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, ErrWebhookEventsRequired
	}

	seen := make(map[string]bool, len(raw))
	events := make([]string, 0, len(raw))
	for _, e := range raw {
		if seen[e] {
			continue
		}
		if !models.WebhookEvent(e).Valid() {
			return nil, fmt.Errorf("%w: %s", ErrWebhookEventUnknown, e)
		}
		seen[e] = true
		events = append(events, e)
	}

	return events, nil
}

func generateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
