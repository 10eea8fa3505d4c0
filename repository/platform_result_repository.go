package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kage-Bunshin/models"
	"gorm.io/gorm"
)

// PlatformResultRepositoryImpl implements the PlatformResultRepository interface
type PlatformResultRepositoryImpl struct {
	*BaseRepository[models.PlatformResult, models.PlatformResultFilter]
}

// NewPlatformResultRepository creates a new platform result repository
func NewPlatformResultRepository(db *gorm.DB) PlatformResultRepository {
	return &PlatformResultRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PlatformResult, models.PlatformResultFilter](db),
	}
}

// ByPostID retrieves all platform results recorded for a post
func (r *PlatformResultRepositoryImpl) ByPostID(ctx context.Context, postID uint) ([]*models.PlatformResult, error) {
	filter := models.PlatformResultFilter{PostID: &postID}
	return r.ByFilter(ctx, filter, "created_at ASC", 0, 0)
}

// ByFilter retrieves platform results based on filter criteria
func (r *PlatformResultRepositoryImpl) ByFilter(ctx context.Context, filter models.PlatformResultFilter, orderBy string, limit, offset int) ([]*models.PlatformResult, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformResult{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var results []*models.PlatformResult
	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to find platform results by filter: %w", err)
	}
	return results, nil
}

// Count returns the number of platform results matching the filter
func (r *PlatformResultRepositoryImpl) Count(ctx context.Context, filter models.PlatformResultFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformResult{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count platform results: %w", err)
	}
	return count, nil
}

func (r *PlatformResultRepositoryImpl) applyFilter(db *gorm.DB, filter models.PlatformResultFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.PostID != nil {
		db = db.Where("post_id = ?", *filter.PostID)
	}
	if filter.Platform != nil {
		db = db.Where("platform = ?", *filter.Platform)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	return db
}
