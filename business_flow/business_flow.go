// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
)

// ClientMetadata holds all client-related information for audit logging and request tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func getPost(ctx context.Context, repo repository.PostRepository, postUUID string, teamID uint) (*models.Post, error) {
	id, err := utils.ParseUUID(postUUID)
	if err != nil {
		return nil, ErrPostUUIDRequired
	}

	post, err := repo.ByUUID(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.TeamID != teamID {
		return nil, ErrPostAccessDenied
	}

	return post, nil
}

func getWebhookConfig(ctx context.Context, repo repository.WebhookConfigRepository, configUUID string, teamID uint) (*models.WebhookConfig, error) {
	id, err := utils.ParseUUID(configUUID)
	if err != nil {
		return nil, ErrWebhookConfigNotFound
	}

	cfg, err := repo.ByUUID(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrWebhookConfigNotFound
	}
	if cfg.TeamID != teamID {
		return nil, ErrWebhookConfigNotFound
	}

	return cfg, nil
}

// ToPlatformResultDTO converts a platform result model to its API representation
func ToPlatformResultDTO(result models.PlatformResult) dto.PlatformResultDTO {
	return dto.PlatformResultDTO{
		Platform:       result.Platform,
		Success:        result.Success,
		PlatformPostID: result.PlatformPostID,
		URL:            result.URL,
		Error:          result.Error,
	}
}

// ToWebhookConfigResponse converts a webhook config model to its API representation.
// The signing secret is omitted unless includeSecret is set.
func ToWebhookConfigResponse(cfg models.WebhookConfig, includeSecret bool) dto.WebhookConfigResponse {
	resp := dto.WebhookConfigResponse{
		UUID:      cfg.UUID.String(),
		URL:       cfg.URL,
		Events:    cfg.Events,
		Name:      cfg.Name,
		IsActive:  utils.IsTrue(cfg.IsActive),
		CreatedAt: cfg.CreatedAt.Format(time.RFC3339),
	}
	if cfg.UpdatedAt != nil {
		resp.UpdatedAt = utils.ToPtr(cfg.UpdatedAt.Format(time.RFC3339))
	}
	if includeSecret {
		resp.Secret = cfg.Secret
	}

	return resp
}
