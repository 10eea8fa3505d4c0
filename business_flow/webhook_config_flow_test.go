package businessflow

import (
	"context"
	"strings"
	"testing"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhookFlow(configRepo *repository.MockWebhookConfigRepository, deliveryRepo *repository.MockWebhookDeliveryRepository, delivery services.WebhookDeliveryService) *WebhookConfigFlowImpl {
	if delivery == nil {
		delivery = &services.MockWebhookDeliveryService{}
	}
	return &WebhookConfigFlowImpl{
		configRepo:   configRepo,
		deliveryRepo: deliveryRepo,
		delivery:     delivery,
	}
}

func teamWebhookConfig(teamID uint) *models.WebhookConfig {
	return &models.WebhookConfig{
		ID:       21,
		UUID:     uuid.New(),
		TeamID:   teamID,
		Name:     "ci hook",
		URL:      "https://example.com/hooks",
		Events:   []string{"post.published"},
		Secret:   "whsec_stored",
		IsActive: utils.ToPtr(true),
	}
}

func TestGenerateWebhookSecret(t *testing.T) {
	s1, err := generateWebhookSecret()
	require.NoError(t, err)
	s2, err := generateWebhookSecret()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s1, "whsec_"))
	assert.Len(t, s1, len("whsec_")+64)
	assert.NotEqual(t, s1, s2)
}

func TestValidateEvents(t *testing.T) {
	t.Run("ValidEventsDeduplicated", func(t *testing.T) {
		events, err := validateEvents([]string{"post.published", "post.failed", "post.published"})
		require.NoError(t, err)
		assert.Equal(t, []string{"post.published", "post.failed"}, events)
	})

	t.Run("EmptyListRejected", func(t *testing.T) {
		_, err := validateEvents(nil)
		assert.ErrorIs(t, err, ErrWebhookEventsRequired)
	})

	t.Run("UnknownEventRejected", func(t *testing.T) {
		_, err := validateEvents([]string{"post.published", "post.exploded"})
		assert.ErrorIs(t, err, ErrWebhookEventUnknown)
	})
}

func TestCreateWebhookConfigValidation(t *testing.T) {
	flow := newTestWebhookFlow(&repository.MockWebhookConfigRepository{}, &repository.MockWebhookDeliveryRepository{}, nil)

	t.Run("InvalidURLRejected", func(t *testing.T) {
		_, err := flow.CreateWebhookConfig(context.Background(), &dto.CreateWebhookConfigRequest{
			TeamID: 7,
			Name:   "hook",
			URL:    "ftp://example.com/hooks",
			Events: []string{"post.published"},
		}, nil)
		assert.True(t, IsWebhookURLInvalid(err))
	})

	t.Run("UnknownEventRejected", func(t *testing.T) {
		_, err := flow.CreateWebhookConfig(context.Background(), &dto.CreateWebhookConfigRequest{
			TeamID: 7,
			Name:   "hook",
			URL:    "https://example.com/hooks",
			Events: []string{"nope"},
		}, nil)
		assert.True(t, IsWebhookEventUnknown(err))
	})
}

func TestUpdateWebhookConfig(t *testing.T) {
	t.Run("PartialUpdateApplied", func(t *testing.T) {
		cfg := teamWebhookConfig(7)
		configRepo := &repository.MockWebhookConfigRepository{
			ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
		}

		flow := newTestWebhookFlow(configRepo, &repository.MockWebhookDeliveryRepository{}, nil)
		resp, err := flow.UpdateWebhookConfig(context.Background(), &dto.UpdateWebhookConfigRequest{
			ConfigUUID: cfg.UUID.String(),
			TeamID:     7,
			IsActive:   utils.ToPtr(false),
		}, nil)

		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		// Untouched fields survive the partial update
		assert.Equal(t, "https://example.com/hooks", resp.URL)
		require.Len(t, configRepo.Updated, 1)

		// The secret never leaves the creation response
		assert.Empty(t, resp.Secret)
	})

	t.Run("EmptyUpdateRejected", func(t *testing.T) {
		flow := newTestWebhookFlow(&repository.MockWebhookConfigRepository{}, &repository.MockWebhookDeliveryRepository{}, nil)
		_, err := flow.UpdateWebhookConfig(context.Background(), &dto.UpdateWebhookConfigRequest{
			ConfigUUID: uuid.New().String(),
			TeamID:     7,
		}, nil)

		var berr *BusinessError
		require.ErrorAs(t, err, &berr)
		assert.ErrorIs(t, err, ErrWebhookUpdateRequired)
	})

	t.Run("ForeignTeamReportedAsNotFound", func(t *testing.T) {
		cfg := teamWebhookConfig(7)
		configRepo := &repository.MockWebhookConfigRepository{
			ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
		}

		flow := newTestWebhookFlow(configRepo, &repository.MockWebhookDeliveryRepository{}, nil)
		_, err := flow.UpdateWebhookConfig(context.Background(), &dto.UpdateWebhookConfigRequest{
			ConfigUUID: cfg.UUID.String(),
			TeamID:     99,
			IsActive:   utils.ToPtr(false),
		}, nil)

		assert.True(t, IsWebhookConfigNotFound(err))
	})
}

func TestDeleteWebhookConfig(t *testing.T) {
	cfg := teamWebhookConfig(7)
	configRepo := &repository.MockWebhookConfigRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
	}

	flow := newTestWebhookFlow(configRepo, &repository.MockWebhookDeliveryRepository{}, nil)
	err := flow.DeleteWebhookConfig(context.Background(), cfg.UUID.String(), 7)

	require.NoError(t, err)
	assert.Equal(t, []uint{cfg.ID}, configRepo.Deleted)
}

func TestTestWebhook(t *testing.T) {
	t.Run("DeliversSyntheticEvent", func(t *testing.T) {
		cfg := teamWebhookConfig(7)
		configRepo := &repository.MockWebhookConfigRepository{
			ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
		}

		var gotURL, gotSecret, gotEvent string
		delivery := &services.MockWebhookDeliveryService{
			SendWebhookFunc: func(ctx context.Context, url, secret string, envelope *services.WebhookEnvelope) *services.DeliveryResult {
				gotURL = url
				gotSecret = secret
				gotEvent = envelope.Event
				return &services.DeliveryResult{Success: true, Attempts: 1, StatusCode: utils.ToPtr(200)}
			},
		}

		flow := newTestWebhookFlow(configRepo, &repository.MockWebhookDeliveryRepository{}, delivery)
		resp, err := flow.TestWebhook(context.Background(), &dto.TestWebhookRequest{
			ConfigUUID: cfg.UUID.String(),
			TeamID:     7,
		}, nil)

		require.NoError(t, err)
		assert.True(t, resp.Delivered)
		assert.Equal(t, cfg.URL, gotURL)
		assert.Equal(t, cfg.Secret, gotSecret)
		assert.Equal(t, models.WebhookEventTest.String(), gotEvent)
	})

	t.Run("InactiveConfigRejected", func(t *testing.T) {
		cfg := teamWebhookConfig(7)
		cfg.IsActive = utils.ToPtr(false)
		configRepo := &repository.MockWebhookConfigRepository{
			ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
		}

		flow := newTestWebhookFlow(configRepo, &repository.MockWebhookDeliveryRepository{}, nil)
		_, err := flow.TestWebhook(context.Background(), &dto.TestWebhookRequest{
			ConfigUUID: cfg.UUID.String(),
			TeamID:     7,
		}, nil)

		assert.ErrorIs(t, err, ErrWebhookConfigInactive)
	})
}

func TestListDeliveries(t *testing.T) {
	cfg := teamWebhookConfig(7)
	configRepo := &repository.MockWebhookConfigRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.WebhookConfig, error) { return cfg, nil },
	}
	deliveryRepo := &repository.MockWebhookDeliveryRepository{
		ByConfigIDFunc: func(ctx context.Context, configID uint, limit, offset int) ([]*models.WebhookDelivery, error) {
			assert.Equal(t, cfg.ID, configID)
			return []*models.WebhookDelivery{
				{
					UUID:         uuid.New(),
					Event:        "post.published",
					Status:       models.WebhookDeliveryStatusSuccess,
					ResponseCode: utils.ToPtr(200),
					AttemptCount: 1,
					CreatedAt:    utils.UTCNow(),
				},
			}, nil
		},
	}

	flow := newTestWebhookFlow(configRepo, deliveryRepo, nil)
	deliveries, err := flow.ListDeliveries(context.Background(), cfg.UUID.String(), 7, 50, 0)

	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "post.published", deliveries[0].Event)
	assert.Equal(t, "success", deliveries[0].Status)
}
