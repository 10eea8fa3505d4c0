package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MockQueue implements Queue for testing
type MockQueue struct {
	EnqueueFunc     func(ctx context.Context, jobType string, payload any, opts EnqueueOptions) (*Job, error)
	DequeueFunc     func(ctx context.Context, timeout time.Duration) (*Job, error)
	RemoveFunc      func(ctx context.Context, jobID string) (bool, error)
	GetJobFunc      func(ctx context.Context, jobID string) (*JobStatus, error)
	SetProgressFunc func(ctx context.Context, jobID string, progress int) error
	CompleteFunc    func(ctx context.Context, jobID string) error
	FailFunc        func(ctx context.Context, jobID string, reason string) error
	CountsFunc      func(ctx context.Context) (*Counts, error)

	// Enqueued collects every job handed to Enqueue when EnqueueFunc is nil
	Enqueued []*Job
	// Completed and Failed collect settled job ids when the funcs are nil
	Completed []string
	Failed    []string
	// Progress records the latest SetProgress value per job id
	Progress map[string]int
}

func (m *MockQueue) Enqueue(ctx context.Context, jobType string, payload any, opts EnqueueOptions) (*Job, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, jobType, payload, opts)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   data,
		Attempts:  opts.Attempts,
		CreatedAt: time.Now().UTC(),
	}
	m.Enqueued = append(m.Enqueued, job)
	return job, nil
}

func (m *MockQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if m.DequeueFunc != nil {
		return m.DequeueFunc(ctx, timeout)
	}
	return nil, nil
}

func (m *MockQueue) Remove(ctx context.Context, jobID string) (bool, error) {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, jobID)
	}
	return true, nil
}

func (m *MockQueue) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *MockQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	if m.SetProgressFunc != nil {
		return m.SetProgressFunc(ctx, jobID, progress)
	}
	if m.Progress == nil {
		m.Progress = make(map[string]int)
	}
	m.Progress[jobID] = progress
	return nil
}

func (m *MockQueue) Complete(ctx context.Context, jobID string) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, jobID)
	}
	m.Completed = append(m.Completed, jobID)
	return nil
}

func (m *MockQueue) Fail(ctx context.Context, jobID string, reason string) error {
	if m.FailFunc != nil {
		return m.FailFunc(ctx, jobID, reason)
	}
	m.Failed = append(m.Failed, jobID)
	return nil
}

func (m *MockQueue) Counts(ctx context.Context) (*Counts, error) {
	if m.CountsFunc != nil {
		return m.CountsFunc(ctx)
	}
	return &Counts{}, nil
}
