package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/utils"
	"gorm.io/gorm"
)

// WebhookConfigRepositoryImpl implements the WebhookConfigRepository interface
type WebhookConfigRepositoryImpl struct {
	*BaseRepository[models.WebhookConfig, models.WebhookConfigFilter]
}

// NewWebhookConfigRepository creates a new webhook config repository
func NewWebhookConfigRepository(db *gorm.DB) WebhookConfigRepository {
	return &WebhookConfigRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WebhookConfig, models.WebhookConfigFilter](db),
	}
}

// ByUUID retrieves a webhook config by UUID
func (r *WebhookConfigRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.WebhookConfig, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.WebhookConfigFilter{UUID: &parsedUUID}
	configs, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(configs) == 0 {
		return nil, nil
	}

	return configs[0], nil
}

// ListActiveByTeamAndEvent returns every active config for a team subscribed to the event
func (r *WebhookConfigRepositoryImpl) ListActiveByTeamAndEvent(ctx context.Context, teamID uint, event models.WebhookEvent) ([]*models.WebhookConfig, error) {
	db := r.getDB(ctx)
	var configs []*models.WebhookConfig
	if err := db.Where("team_id = ? AND is_active = ? AND ? = ANY(events)", teamID, true, event.String()).
		Order("id ASC").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active webhook configs: %w", err)
	}
	return configs, nil
}

// Update updates a webhook config
func (r *WebhookConfigRepositoryImpl) Update(ctx context.Context, config *models.WebhookConfig) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	config.UpdatedAt = &now

	err = db.Save(config).Error
	if err != nil {
		return fmt.Errorf("failed to update webhook config: %w", err)
	}

	return nil
}

// Delete removes a webhook config
func (r *WebhookConfigRepositoryImpl) Delete(ctx context.Context, configID uint) error {
	db := r.getDB(ctx)
	return db.Delete(&models.WebhookConfig{}, configID).Error
}

// ByFilter retrieves webhook configs based on filter criteria
func (r *WebhookConfigRepositoryImpl) ByFilter(ctx context.Context, filter models.WebhookConfigFilter, orderBy string, limit, offset int) ([]*models.WebhookConfig, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookConfig{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var configs []*models.WebhookConfig
	if err := query.Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to find webhook configs by filter: %w", err)
	}
	return configs, nil
}

// Count returns the number of webhook configs matching the filter
func (r *WebhookConfigRepositoryImpl) Count(ctx context.Context, filter models.WebhookConfigFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookConfig{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count webhook configs: %w", err)
	}
	return count, nil
}

func (r *WebhookConfigRepositoryImpl) applyFilter(db *gorm.DB, filter models.WebhookConfigFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TeamID != nil {
		db = db.Where("team_id = ?", *filter.TeamID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Event != nil {
		db = db.Where("? = ANY(events)", *filter.Event)
	}
	return db
}
