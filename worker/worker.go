// Package worker runs the queue-consuming loops: publishing scheduled posts
// and delivering outbound webhooks.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Kage-Bunshin/queue"
	"github.com/amirphl/Kage-Bunshin/utils"
)

// Handler processes one dequeued job. A returned error marks the job failed;
// the queue does not re-deliver it.
type Handler func(ctx context.Context, job *queue.Job) error

// Pool runs competing consumer loops over a shared queue, dispatching each
// dequeued job to the handler registered for its type.
type Pool struct {
	q           queue.Queue
	handlers    map[string]Handler
	concurrency int
	wg          sync.WaitGroup
}

// NewPool creates a worker pool with the given concurrency
func NewPool(q queue.Queue, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		q:           q,
		handlers:    make(map[string]Handler),
		concurrency: concurrency,
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (p *Pool) Register(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start launches the consumer loops. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Wait blocks until every consumer loop has exited
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.q.Dequeue(ctx, utils.DequeueBlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(utils.DequeueBlockTimeout):
			}
			continue
		}
		if job == nil {
			continue
		}

		p.handle(ctx, id, job)
	}
}

func (p *Pool) handle(ctx context.Context, id int, job *queue.Job) {
	handler, ok := p.handlers[job.Type]
	if !ok {
		log.Printf("worker %d: no handler for job type %q, failing job %s", id, job.Type, job.ID)
		if err := p.q.Fail(ctx, job.ID, fmt.Sprintf("no handler for job type %q", job.Type)); err != nil {
			log.Printf("worker %d: failed to mark job %s failed: %v", id, job.ID, err)
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		log.Printf("worker %d: job %s (%s) failed: %v", id, job.ID, job.Type, err)
		if ferr := p.q.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Printf("worker %d: failed to mark job %s failed: %v", id, job.ID, ferr)
		}
		return
	}

	if err := p.q.Complete(ctx, job.ID); err != nil {
		log.Printf("worker %d: failed to mark job %s completed: %v", id, job.ID, err)
	}
}
