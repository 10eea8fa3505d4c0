package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/platform"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
)

// Publish fan-out progress checkpoints reported for UIs polling long jobs
const (
	progressDispatched = 50
	progressCollected  = 100
)

// PostProcessor turns a publish job into concurrent adapter calls, aggregates
// the per-platform outcomes, persists them, and emits the completion event.
type PostProcessor struct {
	q          queue.Queue
	postRepo   repository.PostRepository
	resultRepo repository.PlatformResultRepository
	registry   *platform.Registry
	webhooks   services.WebhookDeliveryService
}

// NewPostProcessor creates a post processor
func NewPostProcessor(
	q queue.Queue,
	postRepo repository.PostRepository,
	resultRepo repository.PlatformResultRepository,
	registry *platform.Registry,
	webhooks services.WebhookDeliveryService,
) *PostProcessor {
	return &PostProcessor{
		q:          q,
		postRepo:   postRepo,
		resultRepo: resultRepo,
		registry:   registry,
		webhooks:   webhooks,
	}
}

// Process handles one publish job. The post is loaded fresh from storage;
// the job payload's snapshot is never trusted for state decisions, which
// closes the race with a cancellation that lost the queue-removal race.
func (p *PostProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload dto.PublishJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("malformed publish payload: %w", err)
	}

	post, err := p.postRepo.ByUUID(ctx, payload.PostUUID)
	if err != nil {
		return fmt.Errorf("failed to load post %s: %w", payload.PostUUID, err)
	}
	if post == nil {
		return fmt.Errorf("post %s not found", payload.PostUUID)
	}
	if post.Status != models.PostStatusScheduled {
		return fmt.Errorf("post %s is %s, not scheduled", payload.PostUUID, post.Status)
	}

	platforms := payload.Platforms
	if len(platforms) == 0 {
		platforms = post.Platforms
	}

	results := p.fanOut(ctx, job.ID, post, platforms, payload.MediaURLs)

	if err := p.q.SetProgress(ctx, job.ID, progressCollected); err != nil {
		log.Printf("failed to set progress for job %s: %v", job.ID, err)
	}

	p.persistResults(ctx, post, results)

	status := determineOverallStatus(results)
	if err := p.postRepo.UpdateStatus(ctx, post.ID, status); err != nil {
		return fmt.Errorf("failed to persist status for post %s: %w", post.UUID, err)
	}

	p.notifyCompletion(ctx, post, status, results)

	return nil
}

// fanOut dispatches one adapter call per platform concurrently. Each call is
// isolated; a panic or failure on one platform never aborts the others.
func (p *PostProcessor) fanOut(ctx context.Context, jobID string, post *models.Post, platforms, mediaURLs []string) []platform.PublishResult {
	results := make([]platform.PublishResult, len(platforms))

	var wg sync.WaitGroup
	for i, name := range platforms {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = platform.PublishResult{
						Platform: name,
						Success:  false,
						Error: &platform.PublishError{
							Kind:    platform.ErrorKindPlatform,
							Message: fmt.Sprintf("adapter panicked: %v", r),
						},
					}
				}
			}()

			adapter := p.registry.Lookup(name)
			results[i] = adapter.PublishPost(ctx, platform.PublishRequest{
				Content:   post.Content,
				MediaURLs: mediaURLs,
				UserID:    post.UserID,
				TeamID:    post.TeamID,
			})
		}(i, name)
	}

	if err := p.q.SetProgress(ctx, jobID, progressDispatched); err != nil {
		log.Printf("failed to set progress for job %s: %v", jobID, err)
	}

	wg.Wait()
	return results
}

// persistResults stores each platform outcome individually. A failed insert
// is logged and skipped, never fatal to the other results.
func (p *PostProcessor) persistResults(ctx context.Context, post *models.Post, results []platform.PublishResult) {
	for _, r := range results {
		row := &models.PlatformResult{
			PostID:   post.ID,
			Platform: r.Platform,
			Success:  r.Success,
		}
		if r.PlatformPostID != "" {
			row.PlatformPostID = utils.ToPtr(r.PlatformPostID)
		}
		if r.URL != "" {
			row.URL = utils.ToPtr(r.URL)
		}
		if r.Error != nil {
			row.Error = utils.ToPtr(r.Error.Error())
		}
		if err := p.resultRepo.Save(ctx, row); err != nil {
			log.Printf("failed to persist %s result for post %s: %v", r.Platform, post.UUID, err)
		}
	}
}

// determineOverallStatus aggregates per-platform outcomes into the post's
// terminal status. An empty result set counts as failure.
func determineOverallStatus(results []platform.PublishResult) models.PostStatus {
	if len(results) == 0 {
		return models.PostStatusFailed
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	switch succeeded {
	case len(results):
		return models.PostStatusPublished
	case 0:
		return models.PostStatusFailed
	default:
		return models.PostStatusPartiallyFailed
	}
}

func (p *PostProcessor) notifyCompletion(ctx context.Context, post *models.Post, status models.PostStatus, results []platform.PublishResult) {
	if p.webhooks == nil {
		return
	}

	event := models.WebhookEventPostPublished
	if status == models.PostStatusFailed {
		event = models.WebhookEventPostFailed
	}

	resultData := make([]map[string]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{
			"platform": r.Platform,
			"success":  r.Success,
		}
		if r.PlatformPostID != "" {
			entry["platform_post_id"] = r.PlatformPostID
		}
		if r.URL != "" {
			entry["url"] = r.URL
		}
		if r.Error != nil {
			entry["error"] = r.Error.Error()
		}
		resultData = append(resultData, entry)
	}

	data := map[string]any{
		"post_uuid":    post.UUID.String(),
		"status":       status.String(),
		"published_at": utils.UTCNow().Format(time.RFC3339),
		"results":      resultData,
	}
	var metadata map[string]any
	if status == models.PostStatusPartiallyFailed {
		metadata = map[string]any{"partial": true}
	}

	if _, err := p.webhooks.QueueWebhook(ctx, event, post.TeamID, post.UserID, data, metadata); err != nil {
		log.Printf("failed to queue %s webhook for post %s: %v", event, post.UUID, err)
	}
}
