package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrUnknownKind is returned when a job kind has no registered action
var ErrUnknownKind = errors.New("unknown job kind")

// Kind names a job body. It is what gets persisted to the failure log,
// since an Action itself cannot be written to disk.
type Kind string

const (
	KindStartOccasions Kind = "start_occasions"
	KindEndOccasions   Kind = "end_occasions"
)

// Action is a zero-argument unit of work
type Action func(ctx context.Context) error

// Registry maps job kinds to their actions
type Registry struct {
	mu      sync.RWMutex
	actions map[Kind]Action
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{actions: make(map[Kind]Action)}
}

// Register binds kind to action, replacing any previous binding
func (r *Registry) Register(kind Kind, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[kind] = action
}

// Lookup returns the action registered for kind
func (r *Registry) Lookup(kind Kind) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[kind]
	return action, ok
}

// Kinds returns the registered kinds in name order
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.actions))
	for k := range r.actions {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Clock abstracts time for testing
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Timer is the handle of a deferred call
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d. Implementations must not
// call f synchronously.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
