package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kage-Bunshin/models"
	"gorm.io/gorm"
)

// WebhookDeliveryRepositoryImpl implements the WebhookDeliveryRepository interface
type WebhookDeliveryRepositoryImpl struct {
	*BaseRepository[models.WebhookDelivery, models.WebhookDeliveryFilter]
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository
func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &WebhookDeliveryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WebhookDelivery, models.WebhookDeliveryFilter](db),
	}
}

// ByConfigID retrieves delivery history for a webhook config with pagination
func (r *WebhookDeliveryRepositoryImpl) ByConfigID(ctx context.Context, configID uint, limit, offset int) ([]*models.WebhookDelivery, error) {
	filter := models.WebhookDeliveryFilter{WebhookConfigID: &configID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// Update updates a webhook delivery row
func (r *WebhookDeliveryRepositoryImpl) Update(ctx context.Context, delivery *models.WebhookDelivery) error {
	db := r.getDB(ctx)
	return db.Save(delivery).Error
}

// ByFilter retrieves webhook deliveries based on filter criteria
func (r *WebhookDeliveryRepositoryImpl) ByFilter(ctx context.Context, filter models.WebhookDeliveryFilter, orderBy string, limit, offset int) ([]*models.WebhookDelivery, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookDelivery{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var deliveries []*models.WebhookDelivery
	if err := query.Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to find webhook deliveries by filter: %w", err)
	}
	return deliveries, nil
}

// Count returns the number of webhook deliveries matching the filter
func (r *WebhookDeliveryRepositoryImpl) Count(ctx context.Context, filter models.WebhookDeliveryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookDelivery{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count webhook deliveries: %w", err)
	}
	return count, nil
}

func (r *WebhookDeliveryRepositoryImpl) applyFilter(db *gorm.DB, filter models.WebhookDeliveryFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.WebhookConfigID != nil {
		db = db.Where("webhook_config_id = ?", *filter.WebhookConfigID)
	}
	if filter.Event != nil {
		db = db.Where("event = ?", *filter.Event)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
