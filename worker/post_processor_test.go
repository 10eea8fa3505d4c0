package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	"github.com/amirphl/Kage-Bunshin/app/services"
	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/platform"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter returns a canned result per publish call
type fakeAdapter struct {
	name   string
	result platform.PublishResult
	panics bool
}

func (a *fakeAdapter) Name() string          { return a.name }
func (a *fakeAdapter) MaxContentLength() int { return 10000 }

func (a *fakeAdapter) PublishPost(ctx context.Context, req platform.PublishRequest) platform.PublishResult {
	if a.panics {
		panic("adapter exploded")
	}
	r := a.result
	r.Platform = a.name
	return r
}

func succeedingAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name, result: platform.PublishResult{Success: true, PlatformPostID: name + "-1"}}
}

func failingAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name, result: platform.PublishResult{
		Success: false,
		Error:   &platform.PublishError{Kind: platform.ErrorKindPlatform, Message: "rejected"},
	}}
}

func publishJob(t *testing.T, post *models.Post, platforms []string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(dto.PublishJobPayload{
		PostUUID:  post.UUID.String(),
		TeamID:    post.TeamID,
		UserID:    post.UserID,
		Content:   post.Content,
		Platforms: platforms,
	})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: "post:publish", Payload: payload}
}

func scheduledPost() *models.Post {
	return &models.Post{
		ID:        1,
		UUID:      uuid.New(),
		TeamID:    7,
		UserID:    3,
		Content:   "hello world",
		Platforms: []string{"twitter", "mastodon"},
		Status:    models.PostStatusScheduled,
	}
}

func TestDetermineOverallStatus(t *testing.T) {
	ok := platform.PublishResult{Success: true}
	bad := platform.PublishResult{Success: false}

	tests := []struct {
		name    string
		results []platform.PublishResult
		want    models.PostStatus
	}{
		{"all succeed", []platform.PublishResult{ok, ok, ok}, models.PostStatusPublished},
		{"all fail", []platform.PublishResult{bad, bad}, models.PostStatusFailed},
		{"mixed", []platform.PublishResult{ok, bad}, models.PostStatusPartiallyFailed},
		{"single success", []platform.PublishResult{ok}, models.PostStatusPublished},
		{"single failure", []platform.PublishResult{bad}, models.PostStatusFailed},
		{"empty counts as failure", nil, models.PostStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineOverallStatus(tt.results))
		})
	}
}

func TestProcessPublishesToAllPlatforms(t *testing.T) {
	post := scheduledPost()
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	q := &queue.MockQueue{}
	webhooks := &services.MockWebhookDeliveryService{}
	registry := platform.NewRegistry(succeedingAdapter("twitter"), succeedingAdapter("mastodon"))

	p := NewPostProcessor(q, postRepo, resultRepo, registry, webhooks)
	err := p.Process(context.Background(), publishJob(t, post, []string{"twitter", "mastodon"}))
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusPublished, postRepo.StatusUpdates[post.ID])
	assert.Len(t, resultRepo.Saved, 2)
	for _, row := range resultRepo.Saved {
		assert.True(t, row.Success)
		assert.Equal(t, post.ID, row.PostID)
	}
	assert.Equal(t, progressCollected, q.Progress["job-1"])

	require.Len(t, webhooks.QueuedEvents, 1)
	assert.Equal(t, models.WebhookEventPostPublished, webhooks.QueuedEvents[0])
}

func TestProcessPartialFailure(t *testing.T) {
	post := scheduledPost()
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	q := &queue.MockQueue{}

	var queuedMetadata map[string]any
	webhooks := &services.MockWebhookDeliveryService{
		QueueWebhookFunc: func(ctx context.Context, event models.WebhookEvent, teamID, userID uint, data, metadata map[string]any) (string, error) {
			queuedMetadata = metadata
			return "wh-job", nil
		},
	}
	registry := platform.NewRegistry(succeedingAdapter("twitter"), failingAdapter("mastodon"))

	p := NewPostProcessor(q, postRepo, resultRepo, registry, webhooks)
	err := p.Process(context.Background(), publishJob(t, post, []string{"twitter", "mastodon"}))
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusPartiallyFailed, postRepo.StatusUpdates[post.ID])

	succeeded := 0
	for _, row := range resultRepo.Saved {
		if row.Success {
			succeeded++
		} else {
			require.NotNil(t, row.Error)
		}
	}
	assert.Equal(t, 1, succeeded)

	// Partial success still notifies post.published, flagged as partial
	require.Len(t, webhooks.QueuedEvents, 1)
	assert.Equal(t, models.WebhookEventPostPublished, webhooks.QueuedEvents[0])
	require.NotNil(t, queuedMetadata)
	assert.Equal(t, true, queuedMetadata["partial"])
}

func TestProcessAllPlatformsFail(t *testing.T) {
	post := scheduledPost()
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	webhooks := &services.MockWebhookDeliveryService{}
	registry := platform.NewRegistry(failingAdapter("twitter"), failingAdapter("mastodon"))

	p := NewPostProcessor(&queue.MockQueue{}, postRepo, resultRepo, registry, webhooks)
	err := p.Process(context.Background(), publishJob(t, post, []string{"twitter", "mastodon"}))
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusFailed, postRepo.StatusUpdates[post.ID])
	require.Len(t, webhooks.QueuedEvents, 1)
	assert.Equal(t, models.WebhookEventPostFailed, webhooks.QueuedEvents[0])
}

func TestProcessIsolatesAdapterPanic(t *testing.T) {
	post := scheduledPost()
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	registry := platform.NewRegistry(
		succeedingAdapter("twitter"),
		&fakeAdapter{name: "mastodon", panics: true},
	)

	p := NewPostProcessor(&queue.MockQueue{}, postRepo, resultRepo, registry, &services.MockWebhookDeliveryService{})
	err := p.Process(context.Background(), publishJob(t, post, []string{"twitter", "mastodon"}))
	require.NoError(t, err)

	// The panicking platform fails alone, the healthy one still publishes
	assert.Equal(t, models.PostStatusPartiallyFailed, postRepo.StatusUpdates[post.ID])
}

func TestProcessRejectsMissingPost(t *testing.T) {
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return nil, nil },
	}

	p := NewPostProcessor(&queue.MockQueue{}, postRepo, &repository.MockPlatformResultRepository{},
		platform.NewRegistry(), &services.MockWebhookDeliveryService{})

	post := scheduledPost()
	err := p.Process(context.Background(), publishJob(t, post, post.Platforms))
	assert.Error(t, err)
}

func TestProcessRejectsCancelledPost(t *testing.T) {
	post := scheduledPost()
	post.Status = models.PostStatusCancelled

	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	webhooks := &services.MockWebhookDeliveryService{}

	p := NewPostProcessor(&queue.MockQueue{}, postRepo, resultRepo,
		platform.NewRegistry(succeedingAdapter("twitter")), webhooks)

	err := p.Process(context.Background(), publishJob(t, post, post.Platforms))

	// A cancelled post that lost the queue-removal race must never publish
	assert.Error(t, err)
	assert.Empty(t, resultRepo.Saved)
	assert.Empty(t, webhooks.QueuedEvents)
	assert.Empty(t, postRepo.StatusUpdates)
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	p := NewPostProcessor(&queue.MockQueue{}, &repository.MockPostRepository{},
		&repository.MockPlatformResultRepository{}, platform.NewRegistry(), &services.MockWebhookDeliveryService{})

	err := p.Process(context.Background(), &queue.Job{ID: "job-1", Payload: []byte("{broken")})
	assert.Error(t, err)
}

func TestProcessFallsBackToPostPlatforms(t *testing.T) {
	post := scheduledPost()
	postRepo := &repository.MockPostRepository{
		ByUUIDFunc: func(ctx context.Context, u string) (*models.Post, error) { return post, nil },
	}
	resultRepo := &repository.MockPlatformResultRepository{}
	registry := platform.NewRegistry(succeedingAdapter("twitter"), succeedingAdapter("mastodon"))

	p := NewPostProcessor(&queue.MockQueue{}, postRepo, resultRepo, registry, &services.MockWebhookDeliveryService{})
	err := p.Process(context.Background(), publishJob(t, post, nil))
	require.NoError(t, err)

	// With no platforms in the payload the post's own list drives the fan-out
	assert.Len(t, resultRepo.Saved, 2)
}
