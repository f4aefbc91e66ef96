package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feed-warden/app/queue"
)

const queueErrorBackoff = time.Second

// ScrapeWorkerPool consumes scrape jobs and releases each job's in-flight
// marker once it finishes, whatever the outcome.
type ScrapeWorkerPool struct {
	queue       ScrapeQueue
	store       ScrapeStore
	resolver    ScraperResolver
	workerCount int
	timeout     time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewScrapeWorkerPool(q ScrapeQueue, store ScrapeStore, resolver ScraperResolver, workerCount int, timeout time.Duration) *ScrapeWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	if workerCount <= 0 {
		workerCount = 1
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &ScrapeWorkerPool{
		queue:       q,
		store:       store,
		resolver:    resolver,
		workerCount: workerCount,
		timeout:     timeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *ScrapeWorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *ScrapeWorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *ScrapeWorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		job, err := p.queue.Next(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			slog.Error("Failed to read scrape queue", "worker_id", id, "error", err)
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(queueErrorBackoff):
			}
			continue
		}

		p.run(id, job)
	}
}

func (p *ScrapeWorkerPool) run(workerID int, job queue.Job) {
	defer func() {
		if err := p.queue.Done(context.Background(), job); err != nil {
			slog.Error("Failed to release scrape job", "item_id", job.ItemID, "error", err)
		}
	}()

	task := NewScrapeItemTask(job, p.store, p.resolver)
	task.Start()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	if err := task.Execute(ctx); err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "item_id", job.ItemID, "error", err)
	}
}
