package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/utils"
	"gorm.io/gorm"
)

// PostRepositoryImpl implements the PostRepository interface
type PostRepositoryImpl struct {
	*BaseRepository[models.Post, models.PostFilter]
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Post, models.PostFilter](db),
	}
}

// ByUUID retrieves a post by UUID
func (r *PostRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Post, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.PostFilter{UUID: &parsedUUID}
	posts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(posts) == 0 {
		return nil, nil
	}

	return posts[0], nil
}

// ByTeamID retrieves posts by team ID with pagination
func (r *PostRepositoryImpl) ByTeamID(ctx context.Context, teamID uint, limit, offset int) ([]*models.Post, error) {
	filter := models.PostFilter{TeamID: &teamID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// ByStatus retrieves posts by status with pagination
func (r *PostRepositoryImpl) ByStatus(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error) {
	filter := models.PostFilter{Status: &status}
	return r.ByFilter(ctx, filter, "scheduled_at ASC", limit, offset)
}

// ListStuckScheduled returns posts still marked scheduled whose scheduled time has
// long passed. Operators reconcile these via the retry endpoint after a worker crash.
func (r *PostRepositoryImpl) ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.getDB(ctx)
	var rows []*models.Post
	if err := db.Where("status = ? AND scheduled_at <= ?", models.PostStatusScheduled, olderThan).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update updates a post
func (r *PostRepositoryImpl) Update(ctx context.Context, post *models.Post) error {
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
	post.UpdatedAt = &now

	err = db.Save(post).Error
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}

	return nil
}

// UpdateStatus persists only a status change for the post
func (r *PostRepositoryImpl) UpdateStatus(ctx context.Context, postID uint, status models.PostStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

// ByFilter retrieves posts based on filter criteria
func (r *PostRepositoryImpl) ByFilter(ctx context.Context, filter models.PostFilter, orderBy string, limit, offset int) ([]*models.Post, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Post{})

	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var posts []*models.Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to find posts by filter: %w", err)
	}
	return posts, nil
}

// Count returns the number of posts matching the filter
func (r *PostRepositoryImpl) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Post{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (r *PostRepositoryImpl) applyFilter(db *gorm.DB, filter models.PostFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TeamID != nil {
		db = db.Where("team_id = ?", *filter.TeamID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Platform != nil {
		db = db.Where("? = ANY(platforms)", *filter.Platform)
	}
	if filter.ScheduledAfter != nil {
		db = db.Where("scheduled_at >= ?", *filter.ScheduledAfter)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
