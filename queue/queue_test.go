package queue

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusDelayRemaining(t *testing.T) {
	now := time.Now().UTC()

	t.Run("DelayedJobReportsRemainingTime", func(t *testing.T) {
		readyAt := now.Add(90 * time.Second)
		s := &JobStatus{State: JobStateDelayed, ReadyAt: &readyAt}
		assert.Equal(t, 90*time.Second, s.DelayRemaining(now))
	})

	t.Run("OverdueDelayedJobReportsZero", func(t *testing.T) {
		readyAt := now.Add(-5 * time.Second)
		s := &JobStatus{State: JobStateDelayed, ReadyAt: &readyAt}
		assert.Equal(t, time.Duration(0), s.DelayRemaining(now))
	})

	t.Run("NonDelayedStatesReportZero", func(t *testing.T) {
		readyAt := now.Add(time.Minute)
		for _, state := range []JobState{JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed} {
			s := &JobStatus{State: state, ReadyAt: &readyAt}
			assert.Equal(t, time.Duration(0), s.DelayRemaining(now), "state %s", state)
		}
	})

	t.Run("MissingReadyAtReportsZero", func(t *testing.T) {
		s := &JobStatus{State: JobStateDelayed}
		assert.Equal(t, time.Duration(0), s.DelayRemaining(now))
	})
}

func TestNewRedisQueueDefaults(t *testing.T) {
	q := NewRedisQueue(nil, "", nil, Options{})

	assert.Equal(t, "kage:queue:", q.prefix)
	assert.Equal(t, defaultPromoteInterval, q.promoteEvery)
	assert.Equal(t, defaultStatusTTL, q.statusTTL)
	assert.NotNil(t, q.logger)
}

func TestNewRedisQueueOptions(t *testing.T) {
	q := NewRedisQueue(nil, "custom:", nil, Options{
		PromoteInterval: 250 * time.Millisecond,
		StatusTTL:       time.Hour,
	})

	assert.Equal(t, "custom:", q.prefix)
	assert.Equal(t, 250*time.Millisecond, q.promoteEvery)
	assert.Equal(t, time.Hour, q.statusTTL)
}

func TestRedisQueueKeyBuilding(t *testing.T) {
	q := NewRedisQueue(nil, "kage:queue:posts:", nil, Options{})

	assert.Equal(t, "kage:queue:posts:ready", q.key(readyListKey))
	assert.Equal(t, "kage:queue:posts:delayed", q.key(delayedSetKey))
	assert.Equal(t, "kage:queue:posts:job:abc", q.key(jobKeyPrefix, "abc"))
}

// storeBackedQueue spins up an in-process Redis for tests that drive the
// real list and sorted-set paths
func storeBackedQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	return NewRedisQueue(rc, "test:queue:", log.New(io.Discard, "", 0), Options{})
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "post:publish", map[string]string{"post_uuid": "abc"}, EnqueueOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "post:publish", got.Type)
	assert.Equal(t, 1, got.Attempts)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "abc", payload["post_uuid"])

	status, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, JobStateActive, status.State)
}

func TestDequeueReturnsNilWhenEmpty(t *testing.T) {
	q := storeBackedQueue(t)

	got, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelayedJobInvisibleUntilPromoted(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "post:publish", map[string]string{"post_uuid": "abc"}, EnqueueOptions{
		Delay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	status, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, JobStateDelayed, status.State)
	require.NotNil(t, status.ReadyAt)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Delayed)
	assert.Equal(t, int64(0), counts.Waiting)

	// Nothing is visible before the promoter runs
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, q.promoteDue(ctx))

	counts, err = q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Delayed)
	assert.Equal(t, int64(1), counts.Waiting)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestPromoteLeavesFutureJobsDelayed(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{Delay: time.Hour})
	require.NoError(t, err)

	require.NoError(t, q.promoteDue(ctx))

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Delayed)
	assert.Equal(t, int64(0), counts.Waiting)
}

func TestRemoveDelayedJob(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{Delay: time.Hour})
	require.NoError(t, err)

	removed, err := q.Remove(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	status, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, status)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Delayed)
}

func TestRemoveReadyJob(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{})
	require.NoError(t, err)

	removed, err := q.Remove(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveDequeuedJobReportsFalse(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{})
	require.NoError(t, err)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)

	removed, err := q.Remove(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, removed, "a job already handed to a worker cannot be removed")
}

func TestCompleteAndFailSettleJobState(t *testing.T) {
	q := storeBackedQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, "post:publish", nil, EnqueueOptions{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
	}

	require.NoError(t, q.Complete(ctx, first.ID))
	status, err := q.GetJob(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, JobStateCompleted, status.State)
	assert.Equal(t, 100, status.Progress)

	require.NoError(t, q.Fail(ctx, second.ID, "adapter exploded"))
	status, err = q.GetJob(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, JobStateFailed, status.State)
	require.NotNil(t, status.Error)
	assert.Equal(t, "adapter exploded", *status.Error)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Active)
	assert.Equal(t, int64(1), counts.Completed)
	assert.Equal(t, int64(1), counts.Failed)
}
