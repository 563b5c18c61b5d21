package jobs

import (
	"log/slog"
	"sync"
	"time"
)

// Enqueuer accepts jobs for execution
type Enqueuer interface {
	Add(kind Kind, priority int) (QueuedJob, error)
}

// ScheduleEntry enqueues Kind with Priority every Interval
type ScheduleEntry struct {
	Kind     Kind
	Priority int
	Interval time.Duration
}

// DefaultSchedule starts due occasions every 5 minutes and ends elapsed
// ones every 10. Start sweeps outrank end sweeps in the same drain.
func DefaultSchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Kind: KindStartOccasions, Priority: 1, Interval: 5 * time.Minute},
		{Kind: KindEndOccasions, Priority: 0, Interval: 10 * time.Minute},
	}
}

// Scheduler hands lifecycle jobs to the queue on fixed intervals. It never
// runs a job itself; a tick only enqueues.
type Scheduler struct {
	queue   Enqueuer
	entries []ScheduleEntry
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler for entries. A nil or empty entries
// slice selects DefaultSchedule.
func NewScheduler(queue Enqueuer, entries []ScheduleEntry, logger *slog.Logger) *Scheduler {
	if len(entries) == 0 {
		entries = DefaultSchedule()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:   queue,
		entries: entries,
		logger:  logger.With("component", "job_scheduler"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for _, e := range s.entries {
		if e.Interval <= 0 {
			s.logger.Warn("skipping schedule entry without interval", "kind", e.Kind)
			continue
		}
		s.wg.Add(1)
		go s.run(e)
		s.logger.Info("job scheduled", "kind", e.Kind, "priority", e.Priority, "interval", e.Interval)
	}
}

// Stop halts ticking and waits for the tick goroutines to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EnqueueStartOccasions enqueues a start sweep at its scheduled priority
func (s *Scheduler) EnqueueStartOccasions() {
	s.enqueue(KindStartOccasions, s.priorityOf(KindStartOccasions))
}

// EnqueueEndOccasions enqueues an end sweep at its scheduled priority
func (s *Scheduler) EnqueueEndOccasions() {
	s.enqueue(KindEndOccasions, s.priorityOf(KindEndOccasions))
}

func (s *Scheduler) run(e ScheduleEntry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.enqueue(e.Kind, e.Priority)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) enqueue(kind Kind, priority int) {
	if _, err := s.queue.Add(kind, priority); err != nil {
		s.logger.Error("failed to enqueue job", "kind", kind, "error", err)
	}
}

func (s *Scheduler) priorityOf(kind Kind) int {
	for _, e := range s.entries {
		if e.Kind == kind {
			return e.Priority
		}
	}
	return 0
}
