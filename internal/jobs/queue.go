package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Add after Close
var ErrQueueClosed = errors.New("job queue closed")

const (
	DefaultRetryDelay = 30 * time.Second
	DefaultMaxRetries = 3
)

// QueuedJob is one logical job instance. ID and Kind survive retries and
// restarts; RetryCount is the number of failed attempts so far.
type QueuedJob struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"fn"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retryCount"`
}

// QueueConfig configures a Queue. Zero values select the defaults.
type QueueConfig struct {
	RetryDelay time.Duration
	MaxRetries int
	Logger     *slog.Logger
	Clock      Clock
	AfterFunc  AfterFunc
}

// Queue is an in-memory priority queue that executes one job at a time.
//
// Add never waits for execution: it inserts the job and, when the queue is
// idle, starts a drain goroutine that pops the highest priority job until
// the queue is empty. A failing job is re-added after RetryDelay with its
// retry count incremented; once the count reaches MaxRetries the job is
// written to the FailureStore instead.
type Queue struct {
	registry   *Registry
	failures   FailureStore
	retryDelay time.Duration
	maxRetries int
	logger     *slog.Logger
	clock      Clock
	afterFunc  AfterFunc

	// execution context for actions, cancelled when Close gives up waiting
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu        sync.Mutex
	jobs      []QueuedJob
	draining  bool
	closed    bool
	started   bool
	timers    map[uint64]Timer
	timerSeq  uint64
	persisted map[string]struct{} // job IDs currently present in the failure store
	wg        sync.WaitGroup
}

// NewQueue creates a queue that resolves kinds through registry and spills
// permanently failed jobs to failures.
func NewQueue(registry *Registry, failures FailureStore, cfg QueueConfig) *Queue {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Queue{
		registry:   registry,
		failures:   failures,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger.With("component", "job_queue"),
		clock:      cfg.Clock,
		afterFunc:  cfg.AfterFunc,
		runCtx:     runCtx,
		cancelRun:  cancel,
		timers:     make(map[uint64]Timer),
		persisted:  make(map[string]struct{}),
	}
}

// Start re-adds every job found in the failure store with its recorded
// priority and retry count. It runs at most once; later calls are no-ops.
// Entries whose kind is no longer registered are left in the store.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	if q.failures == nil {
		return nil
	}

	entries, err := q.failures.Load()
	if err != nil {
		return fmt.Errorf("load failure log: %w", err)
	}

	reloaded := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := q.registry.Lookup(e.Kind); !ok {
			q.logger.Warn("skipping failed job with unknown kind", "job_id", e.ID, "kind", e.Kind)
			continue
		}

		q.mu.Lock()
		q.persisted[e.ID] = struct{}{}
		q.mu.Unlock()

		job := QueuedJob{ID: e.ID, Kind: e.Kind, Priority: e.Priority, RetryCount: e.RetryCount}
		if err := q.enqueue(job); err != nil {
			return err
		}
		reloaded++
	}

	if reloaded > 0 {
		q.logger.Info("reloaded failed jobs", "count", reloaded)
	}
	return nil
}

// Add schedules a fresh job of kind
func (q *Queue) Add(kind Kind, priority int) (QueuedJob, error) {
	return q.AddWithRetry(kind, priority, 0)
}

// AddWithRetry schedules a job that has already failed retryCount times
func (q *Queue) AddWithRetry(kind Kind, priority, retryCount int) (QueuedJob, error) {
	if _, ok := q.registry.Lookup(kind); !ok {
		return QueuedJob{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if retryCount < 0 {
		retryCount = 0
	}

	job := QueuedJob{
		ID:         uuid.New().String(),
		Kind:       kind,
		Priority:   priority,
		RetryCount: retryCount,
	}
	if err := q.enqueue(job); err != nil {
		return QueuedJob{}, err
	}
	return job, nil
}

// Len returns the number of jobs waiting to run
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Draining reports whether a drain goroutine is active
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// PendingRetries returns the number of retries waiting on their delay
func (q *Queue) PendingRetries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Snapshot returns the waiting jobs in execution order
func (q *Queue) Snapshot() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Close stops pending retries, rejects further adds and waits for the
// running job to finish. Jobs still waiting are dropped. If ctx expires
// first, the running job's context is cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for seq, t := range q.timers {
		t.Stop()
		delete(q.timers, seq)
	}
	dropped := len(q.jobs)
	q.jobs = nil
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("dropping queued jobs on close", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancelRun()
		return nil
	case <-ctx.Done():
		q.cancelRun()
		return ctx.Err()
	}
}

func (q *Queue) enqueue(job QueuedJob) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	sort.SliceStable(q.jobs, func(i, j int) bool {
		return q.jobs[i].Priority > q.jobs[j].Priority
	})
	q.mu.Unlock()

	q.run()
	return nil
}

// run starts a drain unless one is active or there is nothing to do
func (q *Queue) run() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.draining || q.closed || len(q.jobs) == 0 {
		return
	}
	q.draining = true
	q.wg.Add(1)
	go q.drain()
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if q.closed || len(q.jobs) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.execute(job)
	}
}

func (q *Queue) execute(job QueuedJob) {
	action, ok := q.registry.Lookup(job.Kind)
	if !ok {
		q.logger.Error("no action for job kind", "job_id", job.ID, "kind", job.Kind)
		return
	}

	err := invoke(q.runCtx, action)
	if err == nil {
		q.resolve(job)
		return
	}

	if job.RetryCount < q.maxRetries {
		next := job
		next.RetryCount++
		q.logger.Warn("job failed, retrying",
			"job_id", job.ID,
			"kind", job.Kind,
			"attempt", job.RetryCount+1,
			"retry_in", q.retryDelay,
			"error", err,
		)
		q.scheduleRetry(next)
		return
	}

	q.logger.Error("job permanently failed",
		"job_id", job.ID,
		"kind", job.Kind,
		"retry_count", job.RetryCount,
		"error", err,
	)
	q.persist(job, err)
}

// invoke runs action, converting a panic into an error
func invoke(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return action(ctx)
}

func (q *Queue) scheduleRetry(job QueuedJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	q.timerSeq++
	seq := q.timerSeq
	q.timers[seq] = q.afterFunc(q.retryDelay, func() {
		q.mu.Lock()
		if _, ok := q.timers[seq]; !ok {
			// stopped by Close
			q.mu.Unlock()
			return
		}
		delete(q.timers, seq)
		q.mu.Unlock()

		if err := q.enqueue(job); err != nil {
			q.logger.Warn("retry dropped", "job_id", job.ID, "kind", job.Kind, "error", err)
		}
	})
}

func (q *Queue) persist(job QueuedJob, cause error) {
	if q.failures == nil {
		return
	}

	entry := FailureEntry{
		ID:         job.ID,
		Kind:       job.Kind,
		Priority:   job.Priority,
		RetryCount: job.RetryCount,
		Error:      cause.Error(),
		FailedAt:   q.clock.Now().UTC(),
	}
	if err := q.failures.Record(entry); err != nil {
		q.logger.Error("failed to record failed job, job is lost",
			"job_id", job.ID,
			"kind", job.Kind,
			"error", err,
		)
		return
	}

	q.mu.Lock()
	q.persisted[job.ID] = struct{}{}
	q.mu.Unlock()
}

// resolve removes a previously failed job from the failure store once it
// has succeeded
func (q *Queue) resolve(job QueuedJob) {
	q.mu.Lock()
	_, ok := q.persisted[job.ID]
	delete(q.persisted, job.ID)
	q.mu.Unlock()

	if !ok || q.failures == nil {
		return
	}
	if _, err := q.failures.Remove(job.ID); err != nil {
		q.logger.Warn("failed to clear recovered job from failure log", "job_id", job.ID, "error", err)
	}
}
