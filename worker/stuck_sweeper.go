package worker

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/repository"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultStuckAge      = 10 * time.Minute
	sweepBatch           = 100
)

var stuckPostsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "posts_stuck_scheduled",
		Help: "Posts still marked scheduled past their time with no live queue job",
	},
)

// StuckSweeper periodically surfaces posts that stayed scheduled after their
// publish time with no job left in the queue, which happens when a worker
// dies mid-flight. Retries stay operator-triggered, so the sweeper only
// reports: it logs each stuck post and exposes the count as a gauge for
// alerting.
type StuckSweeper struct {
	posts    repository.PostRepository
	q        queue.Queue
	logger   *log.Logger
	interval time.Duration
	minAge   time.Duration
}

// NewStuckSweeper creates a sweeper with the default cadence
func NewStuckSweeper(posts repository.PostRepository, q queue.Queue, logger *log.Logger) *StuckSweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &StuckSweeper{
		posts:    posts,
		q:        q,
		logger:   logger,
		interval: defaultSweepInterval,
		minAge:   defaultStuckAge,
	}
}

// Start launches the sweep loop. The returned stop function cancels it.
func (s *StuckSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.sweep(ctx); err != nil {
					s.logger.Printf("stuck sweeper: sweep failed: %v", err)
				}
			}
		}
	}()

	return cancel
}

// sweep counts scheduled posts past their time whose queue job no longer
// exists. Posts whose job is still tracked are the promoter's problem, not
// ours, and are skipped.
func (s *StuckSweeper) sweep(ctx context.Context) (int, error) {
	cutoff := utils.UTCNow().Add(-s.minAge)
	rows, err := s.posts.ListStuckScheduled(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}

	stuck := 0
	for _, post := range rows {
		if post.QueueJobID != nil && *post.QueueJobID != "" {
			status, err := s.q.GetJob(ctx, *post.QueueJobID)
			if err != nil {
				s.logger.Printf("stuck sweeper: job lookup failed for post %s: %v", post.UUID, err)
				continue
			}
			if status != nil {
				continue
			}
		}
		stuck++
		s.logger.Printf("stuck sweeper: post %s scheduled for %s has no live job, needs operator retry",
			post.UUID, post.ScheduledAt.Format(time.RFC3339))
	}

	stuckPostsGauge.Set(float64(stuck))
	return stuck, nil
}
