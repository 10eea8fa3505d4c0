// Package services provides external service integrations and technical concerns like webhook delivery
package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/config"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/redis/go-redis/v9"
)

// WebhookEnvelope is the signed payload delivered to subscriber endpoints
type WebhookEnvelope struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	TeamID    uint           `json:"teamId"`
	UserID    uint           `json:"userId"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DeliveryResult is the outcome of delivering one envelope to one URL
type DeliveryResult struct {
	Success      bool
	StatusCode   *int
	ResponseBody *string
	Attempts     int
	Error        *string
}

// FanoutResult aggregates fan-out delivery across every subscribed endpoint
type FanoutResult struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// WebhookDeliveryService signs, delivers, and records outbound webhook events
type WebhookDeliveryService interface {
	GenerateSignature(payload []byte, secret string) string
	VerifySignature(payload []byte, signature, secret string) bool
	SendWebhook(ctx context.Context, url, secret string, envelope *WebhookEnvelope) *DeliveryResult
	SendToMultiple(ctx context.Context, teamID uint, event models.WebhookEvent, envelope *WebhookEnvelope) (*FanoutResult, error)
	QueueWebhook(ctx context.Context, event models.WebhookEvent, teamID, userID uint, data, metadata map[string]any) (string, error)
}

// WebhookDeliveryServiceImpl implements WebhookDeliveryService
type WebhookDeliveryServiceImpl struct {
	config       *config.WebhookConfig
	client       *http.Client
	q            queue.Queue
	configRepo   repository.WebhookConfigRepository
	deliveryRepo repository.WebhookDeliveryRepository
	rc           *redis.Client
}

// NewWebhookDeliveryService creates a new webhook delivery service instance
func NewWebhookDeliveryService(
	cfg *config.WebhookConfig,
	q queue.Queue,
	configRepo repository.WebhookConfigRepository,
	deliveryRepo repository.WebhookDeliveryRepository,
	rc *redis.Client,
) WebhookDeliveryService {
	return &WebhookDeliveryServiceImpl{
		config:       cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		q:            q,
		configRepo:   configRepo,
		deliveryRepo: deliveryRepo,
		rc:           rc,
	}
}

// GenerateSignature computes the hex-encoded HMAC-SHA256 of the payload
func (s *WebhookDeliveryServiceImpl) GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares in constant time
func (s *WebhookDeliveryServiceImpl) VerifySignature(payload []byte, signature, secret string) bool {
	expected := s.GenerateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// nonRetryable holds response codes that stop delivery after the first attempt
var nonRetryable = map[int]struct{}{
	http.StatusBadRequest:          {},
	http.StatusUnauthorized:        {},
	http.StatusForbidden:           {},
	http.StatusNotFound:            {},
	http.StatusGone:                {},
	http.StatusUnprocessableEntity: {},
}

// SendWebhook signs the envelope and delivers it with retries on escalating
// backoff. Delivery stops early on non-retryable response codes.
func (s *WebhookDeliveryServiceImpl) SendWebhook(ctx context.Context, url, secret string, envelope *WebhookEnvelope) *DeliveryResult {
	result := &DeliveryResult{}

	payload, err := json.Marshal(envelope)
	if err != nil {
		result.Error = utils.ToPtr(fmt.Sprintf("failed to marshal webhook envelope: %v", err))
		return result
	}
	signature := s.GenerateSignature(payload, secret)

	maxAttempts := s.config.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt - 1)
			select {
			case <-ctx.Done():
				result.Error = utils.ToPtr(ctx.Err().Error())
				return result
			case <-time.After(delay):
			}
		}
		result.Attempts = attempt + 1

		code, body, err := s.deliver(ctx, url, payload, signature)
		if err != nil {
			result.Error = utils.ToPtr(err.Error())
			continue
		}

		result.StatusCode = utils.ToPtr(code)
		result.ResponseBody = utils.ToPtr(body)
		if code >= 200 && code < 300 {
			result.Success = true
			result.Error = nil
			return result
		}

		result.Error = utils.ToPtr(fmt.Sprintf("webhook endpoint returned %d", code))
		if _, stop := nonRetryable[code]; stop {
			return result
		}
	}

	return result
}

func (s *WebhookDeliveryServiceImpl) deliver(ctx context.Context, url string, payload []byte, signature string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(utils.WebhookSignatureHeader, "sha256="+signature)
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}

func (s *WebhookDeliveryServiceImpl) retryDelay(retry int) time.Duration {
	delays := s.config.RetryDelays
	if len(delays) == 0 {
		delays = utils.WebhookRetryDelays
	}
	if retry >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[retry]
}

// SendToMultiple fans the envelope out to every active config subscribed to
// the event, independently, and records each delivery outcome.
func (s *WebhookDeliveryServiceImpl) SendToMultiple(ctx context.Context, teamID uint, event models.WebhookEvent, envelope *WebhookEnvelope) (*FanoutResult, error) {
	configs, err := s.configRepo.ListActiveByTeamAndEvent(ctx, teamID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook configs: %w", err)
	}

	fanout := &FanoutResult{Total: len(configs)}
	for _, cfg := range configs {
		result := s.SendWebhook(ctx, cfg.URL, cfg.Secret, envelope)
		if result.Success {
			fanout.Delivered++
		} else {
			fanout.Failed++
		}
		s.recordDelivery(ctx, cfg, event, result)
	}

	return fanout, nil
}

// recordDelivery persists the outcome durably and, best-effort, transiently for short-term polling
func (s *WebhookDeliveryServiceImpl) recordDelivery(ctx context.Context, cfg *models.WebhookConfig, event models.WebhookEvent, result *DeliveryResult) {
	status := models.WebhookDeliveryStatusFailed
	if result.Success {
		status = models.WebhookDeliveryStatusSuccess
	}

	delivery := &models.WebhookDelivery{
		WebhookConfigID: cfg.ID,
		Event:           event.String(),
		Status:          status,
		ResponseCode:    result.StatusCode,
		ResponseBody:    result.ResponseBody,
		AttemptCount:    result.Attempts,
		CompletedAt:     utils.ToPtr(utils.UTCNow()),
	}
	if err := s.deliveryRepo.Save(ctx, delivery); err != nil {
		log.Printf("failed to record webhook delivery for config %s: %v", cfg.UUID, err)
		return
	}

	if s.rc == nil {
		return
	}
	snapshot, err := json.Marshal(delivery)
	if err != nil {
		return
	}
	key := fmt.Sprintf("webhook:delivery:%s", delivery.UUID)
	if err := s.rc.Set(ctx, key, snapshot, utils.WebhookDeliveryStatusTTL).Err(); err != nil {
		log.Printf("failed to cache webhook delivery status: %v", err)
	}
}

// QueueWebhook decouples callers from delivery latency by enqueuing a
// delivery job instead of sending inline.
func (s *WebhookDeliveryServiceImpl) QueueWebhook(ctx context.Context, event models.WebhookEvent, teamID, userID uint, data, metadata map[string]any) (string, error) {
	payload := dto.WebhookJobPayload{
		Event:    event.String(),
		TeamID:   teamID,
		UserID:   userID,
		Data:     data,
		Metadata: metadata,
	}

	job, err := s.q.Enqueue(ctx, utils.JobTypeDeliverWebhook, payload, queue.EnqueueOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue webhook delivery: %w", err)
	}

	return job.ID, nil
}

// MockWebhookDeliveryService implements WebhookDeliveryService for testing
type MockWebhookDeliveryService struct {
	SendWebhookFunc    func(ctx context.Context, url, secret string, envelope *WebhookEnvelope) *DeliveryResult
	SendToMultipleFunc func(ctx context.Context, teamID uint, event models.WebhookEvent, envelope *WebhookEnvelope) (*FanoutResult, error)
	QueueWebhookFunc   func(ctx context.Context, event models.WebhookEvent, teamID, userID uint, data, metadata map[string]any) (string, error)

	QueuedEvents []models.WebhookEvent
}

func (m *MockWebhookDeliveryService) GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MockWebhookDeliveryService) VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(m.GenerateSignature(payload, secret)), []byte(signature))
}

func (m *MockWebhookDeliveryService) SendWebhook(ctx context.Context, url, secret string, envelope *WebhookEnvelope) *DeliveryResult {
	if m.SendWebhookFunc != nil {
		return m.SendWebhookFunc(ctx, url, secret, envelope)
	}
	return &DeliveryResult{Success: true, Attempts: 1}
}

func (m *MockWebhookDeliveryService) SendToMultiple(ctx context.Context, teamID uint, event models.WebhookEvent, envelope *WebhookEnvelope) (*FanoutResult, error) {
	if m.SendToMultipleFunc != nil {
		return m.SendToMultipleFunc(ctx, teamID, event, envelope)
	}
	return &FanoutResult{}, nil
}

func (m *MockWebhookDeliveryService) QueueWebhook(ctx context.Context, event models.WebhookEvent, teamID, userID uint, data, metadata map[string]any) (string, error) {
	m.QueuedEvents = append(m.QueuedEvents, event)
	if m.QueueWebhookFunc != nil {
		return m.QueueWebhookFunc(ctx, event, teamID, userID, data, metadata)
	}
	return "mock-job-id", nil
}
