package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/queue"
	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	DefaultTaskTimeout = 5 * time.Minute
	DefaultQueueSize   = 300
)

type SchedulerOptions struct {
	Interval    time.Duration
	WorkerCount int
	QueueSize   int
	TaskTimeout time.Duration
	Location    *time.Location // for cron schedules
}

type SchedulerStats struct {
	Ticks         int64      `json:"ticks"`
	LastTickAt    *time.Time `json:"last_tick_at"`
	Processed     int64      `json:"processed"`
	FetchFailures int64      `json:"fetch_failures"`
	Errors        int64      `json:"errors"`
	SkippedBusy   int64      `json:"skipped_busy"`
	SkippedFull   int64      `json:"skipped_full"`
	Leased        int        `json:"leased"`
	QueueDepth    int        `json:"queue_depth"`
}

type Scheduler struct {
	store        Store
	pipeline     *Pipeline
	dispatcher   *Dispatcher
	leases       *LeaseSet
	interval     time.Duration
	workerCount  int
	taskTimeout  time.Duration
	cron         *cron.Cron
	startupTasks []TaskInterface
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface

	statsMu sync.Mutex
	stats   SchedulerStats
}

func NewScheduler(store Store, pipeline *Pipeline, dispatcher *Dispatcher, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Scheduler{
		store:       store,
		pipeline:    pipeline,
		dispatcher:  dispatcher,
		leases:      pipeline.Leases(),
		interval:    opts.Interval,
		workerCount: opts.WorkerCount,
		taskTimeout: opts.TaskTimeout,
		cron:        cron.New(cron.WithLocation(opts.Location)),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, opts.QueueSize),
	}
}

// AddStartupTask registers a task run once, before the first tick.
func (s *Scheduler) AddStartupTask(task TaskInterface) {
	s.startupTasks = append(s.startupTasks, task)
}

// AddCronTask enqueues a fresh task from newTask on every cron match.
func (s *Scheduler) AddCronTask(spec string, newTask func() TaskInterface) error {
	_, err := s.cron.AddFunc(spec, func() {
		task := newTask()
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue scheduled task", "type", string(task.GetType()), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runStartupTasks()
		s.enqueueDueSources()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueSources()
			}
		}
	}()

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) runStartupTasks() {
	for _, task := range s.startupTasks {
		s.executeTask(-1, task)
	}
}

func (s *Scheduler) enqueueDueSources() {
	now := time.Now().UTC()
	s.updateStats(func(st *SchedulerStats) {
		st.Ticks++
		st.LastTickAt = &now
	})

	sources, err := s.store.ListDueSources(s.ctx, now)
	if err != nil {
		slog.Error("Failed to list due sources", "error", err)
		return
	}
	if len(sources) == 0 {
		slog.Debug("No sources due for fetching")
		return
	}

	slog.Debug("Scheduling due sources", "count", len(sources))

	for _, source := range sources {
		if !s.leases.TryAcquire(source.ID) {
			slog.Debug("Source fetch already in progress, skipping", "source", source.Name)
			s.updateStats(func(st *SchedulerStats) { st.SkippedBusy++ })
			continue
		}

		task := NewFetchSourceTask(source, s.pipeline, s.recordOutcome)
		if err := s.EnqueueTask(task); err != nil {
			task.Release()
			slog.Warn("Failed to enqueue FetchSourceTask", "source", source.Name, "error", err)
			s.updateStats(func(st *SchedulerStats) { st.SkippedFull++ })
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "error", err)
		s.updateStats(func(st *SchedulerStats) { st.Errors++ })
	}
}

func (s *Scheduler) recordOutcome(outcome *FetchOutcome, err error) {
	s.updateStats(func(st *SchedulerStats) {
		if err != nil || outcome == nil {
			return
		}
		st.Processed++
		if !outcome.Result.Status.Succeeded() {
			st.FetchFailures++
		}
	})
}

func (s *Scheduler) updateStats(fn func(*SchedulerStats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

func (s *Scheduler) Stats() SchedulerStats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	stats.Leased = s.leases.Len()
	stats.QueueDepth = len(s.taskQueue)
	return stats
}

func (s *Scheduler) loadSource(ctx context.Context, sourceID string) (*feed.Source, error) {
	source, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if source == nil {
		return nil, ErrSourceNotFound
	}
	return source, nil
}

// RetryNow runs the fetch pipeline for one source immediately, outside the
// tick, under the same lease as scheduled fetches. The source is read only
// after the lease is taken.
func (s *Scheduler) RetryNow(ctx context.Context, sourceID string) (*FetchOutcome, error) {
	if !s.leases.TryAcquire(sourceID) {
		return nil, ErrSourceBusy
	}

	source, err := s.pipeline.Reload(ctx, sourceID)
	if err != nil {
		s.leases.Release(sourceID)
		return nil, err
	}

	outcome, err := s.pipeline.Process(ctx, *source)
	s.recordOutcome(outcome, err)
	return outcome, err
}

// ResetHealth returns a source to healthy with zero failures and makes it
// due immediately. This is the only way out of paused.
func (s *Scheduler) ResetHealth(ctx context.Context, sourceID string) (*feed.Source, error) {
	if _, err := s.loadSource(ctx, sourceID); err != nil {
		return nil, err
	}

	if !s.leases.TryAcquire(sourceID) {
		return nil, ErrSourceBusy
	}
	defer s.leases.Release(sourceID)

	if err := s.store.ResetSourceHealth(ctx, sourceID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to reset source health: %w", err)
	}

	source, err := s.loadSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	slog.Info("Source health reset", "source", source.Name)
	return source, nil
}

// BulkScrape enqueues every unscraped item of a source with a manual reason.
// It is refused with ErrSourceBusy while a fetch holds the lease.
func (s *Scheduler) BulkScrape(ctx context.Context, sourceID string) (DispatchReport, error) {
	if !s.leases.TryAcquire(sourceID) {
		return DispatchReport{}, ErrSourceBusy
	}
	defer s.leases.Release(sourceID)

	source, err := s.loadSource(ctx, sourceID)
	if err != nil {
		return DispatchReport{}, err
	}
	if !source.ScrapingEnabled {
		return DispatchReport{}, &InvalidStateError{SourceID: source.ID, Reason: "scraping is disabled"}
	}

	limit := source.MaxItems
	if limit <= 0 {
		limit = feed.DefaultMaxItems
	}

	items, err := s.store.ListUnscrapedItems(ctx, source.ID, limit)
	if err != nil {
		return DispatchReport{}, fmt.Errorf("failed to list unscraped items: %w", err)
	}

	report := s.dispatcher.DispatchItems(ctx, *source, items, queue.ReasonManual)

	slog.Info("Bulk scrape dispatched",
		"source", source.Name,
		"items", len(items),
		"enqueued", report.Enqueued,
		"already_queued", report.AlreadyQueued,
		"failures", len(report.Failures))

	return report, nil
}
