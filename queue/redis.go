package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	readyListKey     = "ready"
	delayedSetKey    = "delayed"
	jobKeyPrefix     = "job:"
	completedCounter = "counts:completed"
	failedCounter    = "counts:failed"
	activeCounter    = "counts:active"

	// defaultStatusTTL bounds how long finished job state is kept for polling
	defaultStatusTTL = 24 * time.Hour

	// defaultPromoteInterval is how often delayed jobs are checked for readiness
	defaultPromoteInterval = 1 * time.Second

	// promoteBatch caps how many due jobs are promoted per tick
	promoteBatch = 200
)

// Options tunes queue behavior. Zero values fall back to defaults.
type Options struct {
	// PromoteInterval is how often the promoter scans for due delayed jobs
	PromoteInterval time.Duration

	// StatusTTL is how long job status entries survive after the job settles
	StatusTTL time.Duration
}

// RedisQueue implements Queue on top of a Redis list (ready jobs, BRPOP) and a
// sorted set (delayed jobs scored by their ready time). A promoter loop moves
// due members from the set onto the list; ZREM decides the winner when several
// instances promote concurrently.
type RedisQueue struct {
	rc           *redis.Client
	prefix       string
	logger       *log.Logger
	promoteEvery time.Duration
	statusTTL    time.Duration
}

// NewRedisQueue creates a queue using the given client and key prefix
func NewRedisQueue(rc *redis.Client, prefix string, logger *log.Logger, opts Options) *RedisQueue {
	if prefix == "" {
		prefix = "kage:queue:"
	}
	if logger == nil {
		logger = log.Default()
	}
	if opts.PromoteInterval <= 0 {
		opts.PromoteInterval = defaultPromoteInterval
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = defaultStatusTTL
	}
	return &RedisQueue{
		rc:           rc,
		prefix:       prefix,
		logger:       logger,
		promoteEvery: opts.PromoteInterval,
		statusTTL:    opts.StatusTTL,
	}
}

func (q *RedisQueue) key(parts ...string) string {
	k := q.prefix
	for _, p := range parts {
		k += p
	}
	return k
}

// Enqueue stores a job, immediately visible or held for opts.Delay
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload any, opts EnqueueOptions) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   body,
		Attempts:  opts.Attempts,
		CreatedAt: utils.UTCNow(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	if opts.Delay > 0 {
		readyAt := utils.UTCNow().Add(opts.Delay)
		if err := q.rc.ZAdd(ctx, q.key(delayedSetKey), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: string(data),
		}).Err(); err != nil {
			return nil, fmt.Errorf("failed to enqueue delayed job: %w", err)
		}
		if err := q.writeStatus(ctx, job, JobStateDelayed, &readyAt, nil); err != nil {
			q.logger.Printf("queue: failed to track delayed job %s: %v", job.ID, err)
		}
		return job, nil
	}

	if err := q.rc.LPush(ctx, q.key(readyListKey), data).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	if err := q.writeStatus(ctx, job, JobStateWaiting, nil, nil); err != nil {
		q.logger.Printf("queue: failed to track job %s: %v", job.ID, err)
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next ready job. BRPOP is atomic, so a
// job is handed to exactly one of the competing consumers.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.rc.BRPop(ctx, timeout, q.key(readyListKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result: %v", result)
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	job.Attempts++

	q.rc.Incr(ctx, q.key(activeCounter))
	if err := q.writeStatus(ctx, &job, JobStateActive, nil, nil); err != nil {
		q.logger.Printf("queue: failed to track active job %s: %v", job.ID, err)
	}
	return &job, nil
}

// Remove deletes a job still waiting or delayed. Jobs already dequeued cannot
// be removed; false is returned and the caller resolves the race elsewhere.
func (q *RedisQueue) Remove(ctx context.Context, jobID string) (bool, error) {
	// Delayed set first: cancellation almost always targets a delayed job
	members, err := q.rc.ZRange(ctx, q.key(delayedSetKey), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan delayed jobs: %w", err)
	}
	for _, m := range members {
		var j Job
		if err := json.Unmarshal([]byte(m), &j); err != nil {
			continue
		}
		if j.ID == jobID {
			removed, err := q.rc.ZRem(ctx, q.key(delayedSetKey), m).Result()
			if err != nil {
				return false, err
			}
			if removed > 0 {
				q.dropStatus(ctx, jobID)
				return true, nil
			}
			return false, nil
		}
	}

	entries, err := q.rc.LRange(ctx, q.key(readyListKey), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan ready jobs: %w", err)
	}
	for _, entry := range entries {
		var j Job
		if err := json.Unmarshal([]byte(entry), &j); err != nil {
			continue
		}
		if j.ID == jobID {
			removed, err := q.rc.LRem(ctx, q.key(readyListKey), 1, entry).Result()
			if err != nil {
				return false, err
			}
			if removed > 0 {
				q.dropStatus(ctx, jobID)
				return true, nil
			}
			return false, nil
		}
	}

	return false, nil
}

// GetJob returns the tracked state of a job, or nil when unknown
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	data, err := q.rc.Get(ctx, q.key(jobKeyPrefix, jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var status JobStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &status, nil
}

// SetProgress records coarse progress (0-100) for UIs polling long jobs
func (q *RedisQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	status, err := q.GetJob(ctx, jobID)
	if err != nil || status == nil {
		return err
	}
	status.Progress = progress
	return q.putStatus(ctx, jobID, status)
}

// Complete marks a dequeued job as finished
func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	q.rc.Decr(ctx, q.key(activeCounter))
	q.rc.Incr(ctx, q.key(completedCounter))

	status, err := q.GetJob(ctx, jobID)
	if err != nil || status == nil {
		return err
	}
	status.State = JobStateCompleted
	status.Progress = 100
	return q.putStatus(ctx, jobID, status)
}

// Fail marks a dequeued job as terminally failed
func (q *RedisQueue) Fail(ctx context.Context, jobID string, reason string) error {
	q.rc.Decr(ctx, q.key(activeCounter))
	q.rc.Incr(ctx, q.key(failedCounter))

	status, err := q.GetJob(ctx, jobID)
	if err != nil || status == nil {
		return err
	}
	status.State = JobStateFailed
	status.Error = &reason
	return q.putStatus(ctx, jobID, status)
}

// Counts returns queue depth per state
func (q *RedisQueue) Counts(ctx context.Context) (*Counts, error) {
	waiting, err := q.rc.LLen(ctx, q.key(readyListKey)).Result()
	if err != nil {
		return nil, err
	}
	delayed, err := q.rc.ZCard(ctx, q.key(delayedSetKey)).Result()
	if err != nil {
		return nil, err
	}
	active, _ := q.rc.Get(ctx, q.key(activeCounter)).Int64()
	completed, _ := q.rc.Get(ctx, q.key(completedCounter)).Int64()
	failed, _ := q.rc.Get(ctx, q.key(failedCounter)).Int64()

	return &Counts{
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
		Delayed:   delayed,
	}, nil
}

// StartPromoter launches the loop that moves due delayed jobs onto the ready
// list. The returned stop function cancels the loop.
func (q *RedisQueue) StartPromoter(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(q.promoteEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.promoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
					q.logger.Printf("queue: promote delayed jobs failed: %v", err)
				}
			}
		}
	}()

	return cancel
}

// promoteDue moves jobs whose ready time has passed onto the ready list.
// ZREM decides ownership: only the instance that removed the member pushes it.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := utils.UTCNow().UnixMilli()
	members, err := q.rc.ZRangeByScore(ctx, q.key(delayedSetKey), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, m := range members {
		removed, err := q.rc.ZRem(ctx, q.key(delayedSetKey), m).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another instance won this member
		}
		if err := q.rc.LPush(ctx, q.key(readyListKey), m).Err(); err != nil {
			return err
		}

		var job Job
		if err := json.Unmarshal([]byte(m), &job); err == nil {
			if err := q.writeStatus(ctx, &job, JobStateWaiting, nil, nil); err != nil {
				q.logger.Printf("queue: failed to track promoted job %s: %v", job.ID, err)
			}
		}
	}
	return nil
}

func (q *RedisQueue) writeStatus(ctx context.Context, job *Job, state JobState, readyAt *time.Time, errMsg *string) error {
	status := &JobStatus{
		Job:      *job,
		State:    state,
		ReadyAt:  readyAt,
		Error:    errMsg,
		Progress: job.Progress,
	}
	return q.putStatus(ctx, job.ID, status)
}

func (q *RedisQueue) putStatus(ctx context.Context, jobID string, status *JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return q.rc.Set(ctx, q.key(jobKeyPrefix, jobID), data, q.statusTTL).Err()
}

func (q *RedisQueue) dropStatus(ctx context.Context, jobID string) {
	if err := q.rc.Del(ctx, q.key(jobKeyPrefix, jobID)).Err(); err != nil {
		q.logger.Printf("queue: failed to drop job status %s: %v", jobID, err)
	}
}
