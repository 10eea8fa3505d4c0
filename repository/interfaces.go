// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kage-Bunshin/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// PostRepository defines operations for posts
type PostRepository interface {
	Repository[models.Post, models.PostFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Post, error)
	ByTeamID(ctx context.Context, teamID uint, limit, offset int) ([]*models.Post, error)
	ByStatus(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error)
	ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, postID uint, status models.PostStatus) error
}

// PlatformResultRepository defines operations for per-platform publish results
type PlatformResultRepository interface {
	Repository[models.PlatformResult, models.PlatformResultFilter]
	ByPostID(ctx context.Context, postID uint) ([]*models.PlatformResult, error)
}

// WebhookConfigRepository defines operations for webhook configurations
type WebhookConfigRepository interface {
	Repository[models.WebhookConfig, models.WebhookConfigFilter]
	ByUUID(ctx context.Context, uuid string) (*models.WebhookConfig, error)
	ListActiveByTeamAndEvent(ctx context.Context, teamID uint, event models.WebhookEvent) ([]*models.WebhookConfig, error)
	Update(ctx context.Context, config *models.WebhookConfig) error
	Delete(ctx context.Context, configID uint) error
}

// WebhookDeliveryRepository defines operations for webhook delivery audit rows
type WebhookDeliveryRepository interface {
	Repository[models.WebhookDelivery, models.WebhookDeliveryFilter]
	ByConfigID(ctx context.Context, configID uint, limit, offset int) ([]*models.WebhookDelivery, error)
	Update(ctx context.Context, delivery *models.WebhookDelivery) error
}
