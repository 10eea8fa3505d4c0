package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kage-Bunshin/models"
)

// MockPostRepository implements PostRepository for testing
type MockPostRepository struct {
	ByIDFunc               func(ctx context.Context, id uint) (*models.Post, error)
	ByFilterFunc           func(ctx context.Context, filter models.PostFilter, orderBy string, limit, offset int) ([]*models.Post, error)
	SaveFunc               func(ctx context.Context, post *models.Post) error
	SaveBatchFunc          func(ctx context.Context, posts []*models.Post) error
	CountFunc              func(ctx context.Context, filter models.PostFilter) (int64, error)
	ByUUIDFunc             func(ctx context.Context, uuid string) (*models.Post, error)
	ByTeamIDFunc           func(ctx context.Context, teamID uint, limit, offset int) ([]*models.Post, error)
	ByStatusFunc           func(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error)
	ListStuckScheduledFunc func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error)
	UpdateFunc             func(ctx context.Context, post *models.Post) error
	UpdateStatusFunc       func(ctx context.Context, postID uint, status models.PostStatus) error

	// Saved and Updated collect writes when the funcs are nil
	Saved   []*models.Post
	Updated []*models.Post
	// StatusUpdates records UpdateStatus calls per post id when the func is nil
	StatusUpdates map[uint]models.PostStatus
}

func (m *MockPostRepository) ByID(ctx context.Context, id uint) (*models.Post, error) {
	if m.ByIDFunc != nil {
		return m.ByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockPostRepository) ByFilter(ctx context.Context, filter models.PostFilter, orderBy string, limit, offset int) ([]*models.Post, error) {
	if m.ByFilterFunc != nil {
		return m.ByFilterFunc(ctx, filter, orderBy, limit, offset)
	}
	return nil, nil
}

func (m *MockPostRepository) Save(ctx context.Context, post *models.Post) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, post)
	}
	m.Saved = append(m.Saved, post)
	return nil
}

func (m *MockPostRepository) SaveBatch(ctx context.Context, posts []*models.Post) error {
	if m.SaveBatchFunc != nil {
		return m.SaveBatchFunc(ctx, posts)
	}
	m.Saved = append(m.Saved, posts...)
	return nil
}

func (m *MockPostRepository) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockPostRepository) ByUUID(ctx context.Context, uuid string) (*models.Post, error) {
	if m.ByUUIDFunc != nil {
		return m.ByUUIDFunc(ctx, uuid)
	}
	return nil, nil
}

func (m *MockPostRepository) ByTeamID(ctx context.Context, teamID uint, limit, offset int) ([]*models.Post, error) {
	if m.ByTeamIDFunc != nil {
		return m.ByTeamIDFunc(ctx, teamID, limit, offset)
	}
	return nil, nil
}

func (m *MockPostRepository) ByStatus(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error) {
	if m.ByStatusFunc != nil {
		return m.ByStatusFunc(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *MockPostRepository) ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
	if m.ListStuckScheduledFunc != nil {
		return m.ListStuckScheduledFunc(ctx, olderThan, limit)
	}
	return nil, nil
}

func (m *MockPostRepository) Update(ctx context.Context, post *models.Post) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, post)
	}
	m.Updated = append(m.Updated, post)
	return nil
}

func (m *MockPostRepository) UpdateStatus(ctx context.Context, postID uint, status models.PostStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, postID, status)
	}
	if m.StatusUpdates == nil {
		m.StatusUpdates = make(map[uint]models.PostStatus)
	}
	m.StatusUpdates[postID] = status
	return nil
}

// MockPlatformResultRepository implements PlatformResultRepository for testing
type MockPlatformResultRepository struct {
	ByIDFunc      func(ctx context.Context, id uint) (*models.PlatformResult, error)
	ByFilterFunc  func(ctx context.Context, filter models.PlatformResultFilter, orderBy string, limit, offset int) ([]*models.PlatformResult, error)
	SaveFunc      func(ctx context.Context, result *models.PlatformResult) error
	SaveBatchFunc func(ctx context.Context, results []*models.PlatformResult) error
	CountFunc     func(ctx context.Context, filter models.PlatformResultFilter) (int64, error)
	ByPostIDFunc  func(ctx context.Context, postID uint) ([]*models.PlatformResult, error)

	Saved []*models.PlatformResult
}

func (m *MockPlatformResultRepository) ByID(ctx context.Context, id uint) (*models.PlatformResult, error) {
	if m.ByIDFunc != nil {
		return m.ByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockPlatformResultRepository) ByFilter(ctx context.Context, filter models.PlatformResultFilter, orderBy string, limit, offset int) ([]*models.PlatformResult, error) {
	if m.ByFilterFunc != nil {
		return m.ByFilterFunc(ctx, filter, orderBy, limit, offset)
	}
	return nil, nil
}

func (m *MockPlatformResultRepository) Save(ctx context.Context, result *models.PlatformResult) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, result)
	}
	m.Saved = append(m.Saved, result)
	return nil
}

func (m *MockPlatformResultRepository) SaveBatch(ctx context.Context, results []*models.PlatformResult) error {
	if m.SaveBatchFunc != nil {
		return m.SaveBatchFunc(ctx, results)
	}
	m.Saved = append(m.Saved, results...)
	return nil
}

func (m *MockPlatformResultRepository) Count(ctx context.Context, filter models.PlatformResultFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockPlatformResultRepository) ByPostID(ctx context.Context, postID uint) ([]*models.PlatformResult, error) {
	if m.ByPostIDFunc != nil {
		return m.ByPostIDFunc(ctx, postID)
	}
	return nil, nil
}

// MockWebhookConfigRepository implements WebhookConfigRepository for testing
type MockWebhookConfigRepository struct {
	ByIDFunc                     func(ctx context.Context, id uint) (*models.WebhookConfig, error)
	ByFilterFunc                 func(ctx context.Context, filter models.WebhookConfigFilter, orderBy string, limit, offset int) ([]*models.WebhookConfig, error)
	SaveFunc                     func(ctx context.Context, config *models.WebhookConfig) error
	SaveBatchFunc                func(ctx context.Context, configs []*models.WebhookConfig) error
	CountFunc                    func(ctx context.Context, filter models.WebhookConfigFilter) (int64, error)
	ByUUIDFunc                   func(ctx context.Context, uuid string) (*models.WebhookConfig, error)
	ListActiveByTeamAndEventFunc func(ctx context.Context, teamID uint, event models.WebhookEvent) ([]*models.WebhookConfig, error)
	UpdateFunc                   func(ctx context.Context, config *models.WebhookConfig) error
	DeleteFunc                   func(ctx context.Context, configID uint) error

	Saved   []*models.WebhookConfig
	Updated []*models.WebhookConfig
	Deleted []uint
}

func (m *MockWebhookConfigRepository) ByID(ctx context.Context, id uint) (*models.WebhookConfig, error) {
	if m.ByIDFunc != nil {
		return m.ByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockWebhookConfigRepository) ByFilter(ctx context.Context, filter models.WebhookConfigFilter, orderBy string, limit, offset int) ([]*models.WebhookConfig, error) {
	if m.ByFilterFunc != nil {
		return m.ByFilterFunc(ctx, filter, orderBy, limit, offset)
	}
	return nil, nil
}

func (m *MockWebhookConfigRepository) Save(ctx context.Context, config *models.WebhookConfig) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, config)
	}
	m.Saved = append(m.Saved, config)
	return nil
}

func (m *MockWebhookConfigRepository) SaveBatch(ctx context.Context, configs []*models.WebhookConfig) error {
	if m.SaveBatchFunc != nil {
		return m.SaveBatchFunc(ctx, configs)
	}
	m.Saved = append(m.Saved, configs...)
	return nil
}

func (m *MockWebhookConfigRepository) Count(ctx context.Context, filter models.WebhookConfigFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockWebhookConfigRepository) ByUUID(ctx context.Context, uuid string) (*models.WebhookConfig, error) {
	if m.ByUUIDFunc != nil {
		return m.ByUUIDFunc(ctx, uuid)
	}
	return nil, nil
}

func (m *MockWebhookConfigRepository) ListActiveByTeamAndEvent(ctx context.Context, teamID uint, event models.WebhookEvent) ([]*models.WebhookConfig, error) {
	if m.ListActiveByTeamAndEventFunc != nil {
		return m.ListActiveByTeamAndEventFunc(ctx, teamID, event)
	}
	return nil, nil
}

func (m *MockWebhookConfigRepository) Update(ctx context.Context, config *models.WebhookConfig) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, config)
	}
	m.Updated = append(m.Updated, config)
	return nil
}

func (m *MockWebhookConfigRepository) Delete(ctx context.Context, configID uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, configID)
	}
	m.Deleted = append(m.Deleted, configID)
	return nil
}

// MockWebhookDeliveryRepository implements WebhookDeliveryRepository for testing
type MockWebhookDeliveryRepository struct {
	ByIDFunc       func(ctx context.Context, id uint) (*models.WebhookDelivery, error)
	ByFilterFunc   func(ctx context.Context, filter models.WebhookDeliveryFilter, orderBy string, limit, offset int) ([]*models.WebhookDelivery, error)
	SaveFunc       func(ctx context.Context, delivery *models.WebhookDelivery) error
	SaveBatchFunc  func(ctx context.Context, deliveries []*models.WebhookDelivery) error
	CountFunc      func(ctx context.Context, filter models.WebhookDeliveryFilter) (int64, error)
	ByConfigIDFunc func(ctx context.Context, configID uint, limit, offset int) ([]*models.WebhookDelivery, error)
	UpdateFunc     func(ctx context.Context, delivery *models.WebhookDelivery) error

	Saved   []*models.WebhookDelivery
	Updated []*models.WebhookDelivery
}

func (m *MockWebhookDeliveryRepository) ByID(ctx context.Context, id uint) (*models.WebhookDelivery, error) {
	if m.ByIDFunc != nil {
		return m.ByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockWebhookDeliveryRepository) ByFilter(ctx context.Context, filter models.WebhookDeliveryFilter, orderBy string, limit, offset int) ([]*models.WebhookDelivery, error) {
	if m.ByFilterFunc != nil {
		return m.ByFilterFunc(ctx, filter, orderBy, limit, offset)
	}
	return nil, nil
}

func (m *MockWebhookDeliveryRepository) Save(ctx context.Context, delivery *models.WebhookDelivery) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, delivery)
	}
	m.Saved = append(m.Saved, delivery)
	return nil
}

func (m *MockWebhookDeliveryRepository) SaveBatch(ctx context.Context, deliveries []*models.WebhookDelivery) error {
	if m.SaveBatchFunc != nil {
		return m.SaveBatchFunc(ctx, deliveries)
	}
	m.Saved = append(m.Saved, deliveries...)
	return nil
}

func (m *MockWebhookDeliveryRepository) Count(ctx context.Context, filter models.WebhookDeliveryFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockWebhookDeliveryRepository) ByConfigID(ctx context.Context, configID uint, limit, offset int) ([]*models.WebhookDelivery, error) {
	if m.ByConfigIDFunc != nil {
		return m.ByConfigIDFunc(ctx, configID, limit, offset)
	}
	return nil, nil
}

func (m *MockWebhookDeliveryRepository) Update(ctx context.Context, delivery *models.WebhookDelivery) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, delivery)
	}
	m.Updated = append(m.Updated, delivery)
	return nil
}
