// Package queue provides a durable, delay-capable FIFO job store backed by Redis.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// JobState tracks where a job currently sits in its lifecycle
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateDelayed   JobState = "delayed"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Job is a unit of work carried through the queue
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Progress  int             `json:"progress"`
	CreatedAt time.Time       `json:"created_at"`
}

// EnqueueOptions configures delivery of an enqueued job
type EnqueueOptions struct {
	// Delay holds the job invisible until its scheduled time
	Delay time.Duration
	// Attempts records how many times the job has been handed to a worker before
	Attempts int
}

// Counts is a snapshot of queue depth per state
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Queue is a durable FIFO job store with delayed visibility and atomic
// single-consumer dequeue. Multiple worker loops may dequeue concurrently;
// a job is handed to at most one of them.
type Queue interface {
	// Enqueue stores a job, immediately visible or held for opts.Delay
	Enqueue(ctx context.Context, jobType string, payload any, opts EnqueueOptions) (*Job, error)

	// Dequeue blocks up to timeout for the next ready job. Returns (nil, nil)
	// when the timeout elapses with an empty queue.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)

	// Remove deletes a job that has not been dequeued yet. Returns false for
	// jobs already handed to a worker; the caller must treat the owning
	// entity's persisted status as authoritative in that case.
	Remove(ctx context.Context, jobID string) (bool, error)

	// GetJob returns the tracked state of a job, or nil when unknown
	GetJob(ctx context.Context, jobID string) (*JobStatus, error)

	// SetProgress records coarse progress (0-100) for UIs polling long jobs
	SetProgress(ctx context.Context, jobID string, progress int) error

	// Complete marks a dequeued job as finished
	Complete(ctx context.Context, jobID string) error

	// Fail marks a dequeued job as terminally failed
	Fail(ctx context.Context, jobID string, reason string) error

	// Counts returns queue depth per state
	Counts(ctx context.Context) (*Counts, error)
}

// JobStatus is the introspectable state of a job
type JobStatus struct {
	Job      Job        `json:"job"`
	State    JobState   `json:"state"`
	ReadyAt  *time.Time `json:"ready_at,omitempty"`
	Error    *string    `json:"error,omitempty"`
	Progress int        `json:"progress"`
}

// DelayRemaining returns how long until a delayed job becomes visible, zero otherwise
func (s *JobStatus) DelayRemaining(now time.Time) time.Duration {
	if s.State != JobStateDelayed || s.ReadyAt == nil {
		return 0
	}
	d := s.ReadyAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
