package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/Kage-Bunshin/models"
	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overduePost(jobID string) *models.Post {
	post := scheduledPost()
	post.ScheduledAt = utils.UTCNow().Add(-time.Hour)
	if jobID != "" {
		post.QueueJobID = &jobID
	}
	return post
}

func TestSweepCountsPostsWithNoLiveJob(t *testing.T) {
	tracked := overduePost("job-live")
	lost := overduePost("job-lost")
	orphan := overduePost("")

	repo := &repository.MockPostRepository{
		ListStuckScheduledFunc: func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
			return []*models.Post{tracked, lost, orphan}, nil
		},
	}
	q := &queue.MockQueue{
		GetJobFunc: func(ctx context.Context, jobID string) (*queue.JobStatus, error) {
			if jobID == "job-live" {
				return &queue.JobStatus{State: queue.JobStateDelayed}, nil
			}
			return nil, nil
		},
	}

	sweeper := NewStuckSweeper(repo, q, nil)
	stuck, err := sweeper.sweep(context.Background())
	require.NoError(t, err)

	// tracked still has a queue job; lost and orphan do not
	assert.Equal(t, 2, stuck)
}

func TestSweepEmptyBacklog(t *testing.T) {
	repo := &repository.MockPostRepository{
		ListStuckScheduledFunc: func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
			return nil, nil
		},
	}

	sweeper := NewStuckSweeper(repo, &queue.MockQueue{}, nil)
	stuck, err := sweeper.sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stuck)
}

func TestSweepSkipsPostOnJobLookupError(t *testing.T) {
	repo := &repository.MockPostRepository{
		ListStuckScheduledFunc: func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
			return []*models.Post{overduePost("job-x")}, nil
		},
	}
	q := &queue.MockQueue{
		GetJobFunc: func(ctx context.Context, jobID string) (*queue.JobStatus, error) {
			return nil, errors.New("redis down")
		},
	}

	sweeper := NewStuckSweeper(repo, q, nil)
	stuck, err := sweeper.sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stuck)
}

func TestSweepPropagatesRepositoryError(t *testing.T) {
	repo := &repository.MockPostRepository{
		ListStuckScheduledFunc: func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
			return nil, errors.New("db down")
		},
	}

	sweeper := NewStuckSweeper(repo, &queue.MockQueue{}, nil)
	_, err := sweeper.sweep(context.Background())
	assert.Error(t, err)
}

func TestSweepUsesConfiguredAgeCutoff(t *testing.T) {
	var gotCutoff time.Time
	repo := &repository.MockPostRepository{
		ListStuckScheduledFunc: func(ctx context.Context, olderThan time.Time, limit int) ([]*models.Post, error) {
			gotCutoff = olderThan
			return nil, nil
		},
	}

	sweeper := NewStuckSweeper(repo, &queue.MockQueue{}, nil)
	before := utils.UTCNow()
	_, err := sweeper.sweep(context.Background())
	require.NoError(t, err)

	assert.WithinDuration(t, before.Add(-defaultStuckAge), gotCutoff, time.Second)
}
