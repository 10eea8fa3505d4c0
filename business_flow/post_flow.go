// Package businessflow contains the core business logic and use cases for post scheduling workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/platform"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"gorm.io/gorm"
)

// PostFlow handles the post scheduling business logic
type PostFlow interface {
	SchedulePost(ctx context.Context, req *dto.SchedulePostRequest, metadata *ClientMetadata) (*dto.SchedulePostResponse, error)
	CancelScheduledPost(ctx context.Context, req *dto.CancelPostRequest, metadata *ClientMetadata) (*dto.CancelPostResponse, error)
	ReschedulePost(ctx context.Context, req *dto.ReschedulePostRequest, metadata *ClientMetadata) (*dto.ReschedulePostResponse, error)
	GetPostStatus(ctx context.Context, postUUID string, teamID uint) (*dto.PostStatusResponse, error)
	RetryFailedPost(ctx context.Context, req *dto.RetryPostRequest, metadata *ClientMetadata) (*dto.RetryPostResponse, error)
}

// PostFlowImpl implements the post scheduling business flow
type PostFlowImpl struct {
	postRepo   repository.PostRepository
	resultRepo repository.PlatformResultRepository
	q          queue.Queue
	registry   *platform.Registry
	webhooks   services.WebhookDeliveryService
	db         *gorm.DB
}

// NewPostFlow creates a new post flow instance
func NewPostFlow(
	postRepo repository.PostRepository,
	resultRepo repository.PlatformResultRepository,
	q queue.Queue,
	registry *platform.Registry,
	webhooks services.WebhookDeliveryService,
	db *gorm.DB,
) PostFlow {
	return &PostFlowImpl{
		postRepo:   postRepo,
		resultRepo: resultRepo,
		q:          q,
		registry:   registry,
		webhooks:   webhooks,
		db:         db,
	}
}

// SchedulePost validates and persists a post, computes the dispatch delay,
// and enqueues the publish job. Nothing is enqueued on validation failure.
func (s *PostFlowImpl) SchedulePost(ctx context.Context, req *dto.SchedulePostRequest, metadata *ClientMetadata) (*dto.SchedulePostResponse, error) {
	now := utils.UTCNow()

	platforms, err := s.validateSchedulePostRequest(req, now)
	if err != nil {
		return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post validation failed", err)
	}

	delay := req.ScheduledAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	var meta json.RawMessage
	if len(req.Metadata) > 0 {
		meta, err = json.Marshal(req.Metadata)
		if err != nil {
			return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post metadata is not serializable", err)
		}
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	post := &models.Post{
		TeamID:      req.TeamID,
		UserID:      req.UserID,
		Content:     req.Content,
		MediaURLs:   req.MediaURLs,
		Platforms:   platforms,
		ScheduledAt: utils.TimeToUTC(req.ScheduledAt),
		Timezone:    timezone,
		Status:      models.PostStatusScheduled,
		Metadata:    meta,
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.postRepo.Save(txCtx, post)
	})
	if err != nil {
		return nil, NewBusinessError("POST_CREATION_FAILED", "Failed to persist scheduled post", err)
	}

	job, err := s.enqueuePublishJob(ctx, post, platforms, delay)
	if err != nil {
		// The post stays visible for operator reconciliation rather than silently vanishing
		if uerr := s.postRepo.UpdateStatus(ctx, post.ID, models.PostStatusFailed); uerr != nil {
			log.Printf("failed to mark post %s as failed after enqueue error: %v", post.UUID, uerr)
		}
		return nil, NewBusinessError("POST_ENQUEUE_FAILED", "Failed to enqueue publish job", err)
	}

	post.QueueJobID = &job.ID
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, NewBusinessError("POST_UPDATE_FAILED", "Failed to store queue job id", err)
	}

	s.notify(ctx, models.WebhookEventPostScheduled, post, map[string]any{
		"post_uuid":    post.UUID.String(),
		"scheduled_at": post.ScheduledAt.Format(time.RFC3339),
		"platforms":    []string(post.Platforms),
	})

	return &dto.SchedulePostResponse{
		UUID:        post.UUID.String(),
		Status:      post.Status.String(),
		ScheduledAt: post.ScheduledAt,
		DelayMs:     delay.Milliseconds(),
		QueueJobID:  job.ID,
		CreatedAt:   post.CreatedAt.Format(time.RFC3339),
	}, nil
}

// CancelScheduledPost cancels a scheduled post. Removing the queued job is
// best-effort; the persisted cancelled status is what the worker trusts.
func (s *PostFlowImpl) CancelScheduledPost(ctx context.Context, req *dto.CancelPostRequest, metadata *ClientMetadata) (*dto.CancelPostResponse, error) {
	post, err := getPost(ctx, s.postRepo, req.PostUUID, req.TeamID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}

	if !post.IsCancellable() {
		return nil, NewBusinessErrorf("POST_STATE_CONFLICT", "Post in status %s cannot be cancelled", ErrPostNotCancellable, post.Status)
	}

	jobRemoved := false
	if post.QueueJobID != nil {
		removed, err := s.q.Remove(ctx, *post.QueueJobID)
		if err != nil {
			log.Printf("failed to remove queue job %s for post %s: %v", *post.QueueJobID, post.UUID, err)
		}
		jobRemoved = removed
	}

	post.Status = models.PostStatusCancelled
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, NewBusinessError("POST_CANCEL_FAILED", "Failed to persist cancellation", err)
	}

	return &dto.CancelPostResponse{
		UUID:       post.UUID.String(),
		Status:     post.Status.String(),
		JobRemoved: jobRemoved,
	}, nil
}

// ReschedulePost moves a scheduled post to a new future time, replacing its queued job
func (s *PostFlowImpl) ReschedulePost(ctx context.Context, req *dto.ReschedulePostRequest, metadata *ClientMetadata) (*dto.ReschedulePostResponse, error) {
	now := utils.UTCNow()
	if req.ScheduledAt.IsZero() {
		return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post validation failed", ErrScheduleTimeRequired)
	}
	if req.ScheduledAt.Before(now) {
		return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post validation failed", ErrScheduleTimeInPast)
	}

	post, err := getPost(ctx, s.postRepo, req.PostUUID, req.TeamID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}

	if post.Status != models.PostStatusScheduled {
		return nil, NewBusinessErrorf("POST_STATE_CONFLICT", "Post in status %s cannot be rescheduled", ErrPostNotReschedulable, post.Status)
	}

	if post.QueueJobID != nil {
		if _, err := s.q.Remove(ctx, *post.QueueJobID); err != nil {
			log.Printf("failed to remove queue job %s for post %s: %v", *post.QueueJobID, post.UUID, err)
		}
	}

	delay := req.ScheduledAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	job, err := s.enqueuePublishJob(ctx, post, post.Platforms, delay)
	if err != nil {
		return nil, NewBusinessError("POST_ENQUEUE_FAILED", "Failed to enqueue publish job", err)
	}

	post.ScheduledAt = utils.TimeToUTC(req.ScheduledAt)
	post.QueueJobID = &job.ID
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, NewBusinessError("POST_UPDATE_FAILED", "Failed to persist reschedule", err)
	}

	return &dto.ReschedulePostResponse{
		UUID:        post.UUID.String(),
		Status:      post.Status.String(),
		ScheduledAt: post.ScheduledAt,
		DelayMs:     delay.Milliseconds(),
		QueueJobID:  job.ID,
	}, nil
}

// GetPostStatus joins persisted post state with live queue introspection
func (s *PostFlowImpl) GetPostStatus(ctx context.Context, postUUID string, teamID uint) (*dto.PostStatusResponse, error) {
	post, err := getPost(ctx, s.postRepo, postUUID, teamID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}

	resp := &dto.PostStatusResponse{
		UUID:        post.UUID.String(),
		Status:      post.Status.String(),
		Content:     post.Content,
		Platforms:   post.Platforms,
		ScheduledAt: post.ScheduledAt,
		Timezone:    post.Timezone,
		QueueJobID:  post.QueueJobID,
		CreatedAt:   post.CreatedAt.Format(time.RFC3339),
	}
	if post.UpdatedAt != nil {
		resp.UpdatedAt = utils.ToPtr(post.UpdatedAt.Format(time.RFC3339))
	}

	results, err := s.resultRepo.ByPostID(ctx, post.ID)
	if err != nil {
		log.Printf("failed to load platform results for post %s: %v", post.UUID, err)
	}
	for _, r := range results {
		resp.PlatformResults = append(resp.PlatformResults, ToPlatformResultDTO(*r))
	}

	if post.Status == models.PostStatusScheduled && post.QueueJobID != nil {
		status, err := s.q.GetJob(ctx, *post.QueueJobID)
		if err != nil {
			log.Printf("failed to introspect queue job %s: %v", *post.QueueJobID, err)
		} else if status != nil {
			state := string(status.State)
			resp.JobState = &state
			resp.JobProgress = utils.ToPtr(status.Progress)
			resp.DelayRemainingMs = utils.ToPtr(status.DelayRemaining(utils.UTCNow()).Milliseconds())
		}
	}

	return resp, nil
}

// RetryFailedPost re-schedules only the platforms that have no successful
// result yet. Retries are operator-triggered, never automatic, so flaky
// platform APIs cannot cause duplicate posts.
func (s *PostFlowImpl) RetryFailedPost(ctx context.Context, req *dto.RetryPostRequest, metadata *ClientMetadata) (*dto.RetryPostResponse, error) {
	post, err := getPost(ctx, s.postRepo, req.PostUUID, req.TeamID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}

	if post.Status != models.PostStatusFailed && post.Status != models.PostStatusPartiallyFailed {
		return nil, NewBusinessErrorf("POST_STATE_CONFLICT", "Post in status %s cannot be retried", ErrPostNotRetryable, post.Status)
	}

	results, err := s.resultRepo.ByPostID(ctx, post.ID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to load platform results", err)
	}

	succeeded := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Success {
			succeeded[r.Platform] = true
		}
	}

	var failed []string
	for _, p := range post.Platforms {
		if !succeeded[p] {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		return nil, NewBusinessError("POST_STATE_CONFLICT", "Post has no failed platforms to retry", ErrPostNotRetryable)
	}

	job, err := s.enqueuePublishJob(ctx, post, failed, 0)
	if err != nil {
		return nil, NewBusinessError("POST_ENQUEUE_FAILED", "Failed to enqueue retry job", err)
	}

	post.Status = models.PostStatusScheduled
	post.ScheduledAt = utils.UTCNow()
	post.QueueJobID = &job.ID
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, NewBusinessError("POST_UPDATE_FAILED", "Failed to persist retry", err)
	}

	return &dto.RetryPostResponse{
		UUID:       post.UUID.String(),
		Status:     post.Status.String(),
		Platforms:  failed,
		QueueJobID: job.ID,
	}, nil
}

func (s *PostFlowImpl) validateSchedulePostRequest(req *dto.SchedulePostRequest, now time.Time) ([]string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrPostContentRequired
	}
	if len(req.MediaURLs) > utils.MaxMediaURLs {
		return nil, fmt.Errorf("%w: at most %d allowed", ErrTooManyMediaURLs, utils.MaxMediaURLs)
	}
	if len(req.Platforms) == 0 {
		return nil, ErrPlatformsRequired
	}

	seen := make(map[string]bool, len(req.Platforms))
	platforms := make([]string, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" || seen[name] {
			continue
		}
		if !s.registry.Supports(name) {
			return nil, fmt.Errorf("%w: %s", ErrPlatformNotSupported, name)
		}
		seen[name] = true
		platforms = append(platforms, name)
	}
	if len(platforms) == 0 {
		return nil, ErrPlatformsRequired
	}

	if req.ScheduledAt.IsZero() {
		return nil, ErrScheduleTimeRequired
	}
	// scheduledAt == now is a zero-delay publish, strictly past times are rejected
	if req.ScheduledAt.Before(now) {
		return nil, ErrScheduleTimeInPast
	}

	return platforms, nil
}

func (s *PostFlowImpl) enqueuePublishJob(ctx context.Context, post *models.Post, platforms []string, delay time.Duration) (*queue.Job, error) {
	payload := dto.PublishJobPayload{
		PostUUID:  post.UUID.String(),
		TeamID:    post.TeamID,
		UserID:    post.UserID,
		Content:   post.Content,
		Platforms: platforms,
		MediaURLs: post.MediaURLs,
	}

	return s.q.Enqueue(ctx, utils.JobTypePublishPost, payload, queue.EnqueueOptions{Delay: delay})
}

func (s *PostFlowImpl) notify(ctx context.Context, event models.WebhookEvent, post *models.Post, data map[string]any) {
	if s.webhooks == nil {
		return
	}
	if _, err := s.webhooks.QueueWebhook(ctx, event, post.TeamID, post.UserID, data, nil); err != nil {
		log.Printf("failed to queue %s webhook for post %s: %v", event, post.UUID, err)
	}
}
