package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgo/occasions/api/internal/model"
)

// EventOccasionStatusChanged is published after a lifecycle sweep moved at
// least one occasion
const EventOccasionStatusChanged = "occasion:status-changed"

// OccasionTransitioner applies a bulk status transition and reports how
// many occasions it changed
type OccasionTransitioner interface {
	TransitionStatus(ctx context.Context, t model.OccasionTransition) (int, error)
}

// Notifier publishes named events without waiting for delivery
type Notifier interface {
	Publish(name string, payload any)
}

// StatusChange is the payload of EventOccasionStatusChanged
type StatusChange struct {
	From  model.OccasionStatus `json:"from"`
	To    model.OccasionStatus `json:"to"`
	Count int                  `json:"count"`
	At    time.Time            `json:"at"`
}

// OccasionLifecycle holds the two occasion sweep job bodies
type OccasionLifecycle struct {
	store    OccasionTransitioner
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
}

// NewOccasionLifecycle creates the lifecycle job bodies. notifier, clock and
// logger may be nil.
func NewOccasionLifecycle(store OccasionTransitioner, notifier Notifier, clock Clock, logger *slog.Logger) *OccasionLifecycle {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OccasionLifecycle{
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With("component", "occasion_lifecycle"),
	}
}

// StartOccasions moves pending occasions whose window contains now to started
func (l *OccasionLifecycle) StartOccasions(ctx context.Context) error {
	return l.sweep(ctx, model.StartDueTransition(l.clock.Now()))
}

// EndOccasions moves pending occasions whose window has elapsed to ended.
// This also ends occasions that were never started.
func (l *OccasionLifecycle) EndOccasions(ctx context.Context) error {
	return l.sweep(ctx, model.EndDueTransition(l.clock.Now()))
}

func (l *OccasionLifecycle) sweep(ctx context.Context, t model.OccasionTransition) error {
	n, err := l.store.TransitionStatus(ctx, t)
	if err != nil {
		return fmt.Errorf("%s -> %s sweep: %w", t.From, t.To, err)
	}
	if n == 0 {
		return nil
	}

	l.logger.Info("occasions transitioned", "from", t.From, "to", t.To, "count", n)
	if l.notifier != nil {
		l.notifier.Publish(EventOccasionStatusChanged, StatusChange{
			From:  t.From,
			To:    t.To,
			Count: n,
			At:    t.At,
		})
	}
	return nil
}

// RegisterOccasionJobs binds the lifecycle job bodies to their kinds
func RegisterOccasionJobs(registry *Registry, lifecycle *OccasionLifecycle) {
	registry.Register(KindStartOccasions, lifecycle.StartOccasions)
	registry.Register(KindEndOccasions, lifecycle.EndOccasions)
}
