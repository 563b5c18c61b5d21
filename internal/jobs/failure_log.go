package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FailureEntry describes a job that exhausted its retry budget
type FailureEntry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"fn"`
	Priority   int       `json:"priority"`
	RetryCount int       `json:"retryCount"`
	Error      string    `json:"error,omitempty"`
	FailedAt   time.Time `json:"failedAt"`
}

// FailureStore persists permanently failed jobs
type FailureStore interface {
	Load() ([]FailureEntry, error)
	Record(entry FailureEntry) error
	Remove(id string) (bool, error)
}

// FailureLog is a FailureStore backed by a single JSON array file.
// Every write rewrites the whole file through a temp file and rename, so
// a crash mid-write leaves the previous contents intact.
type FailureLog struct {
	path string
	mu   sync.Mutex
}

// NewFailureLog creates a failure log at path. The file is created lazily.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the backing file path
func (l *FailureLog) Path() string {
	return l.path
}

// Load reads every entry. A missing file is an empty log. Entries written
// without an id are assigned one and the file is rewritten once.
func (l *FailureLog) Load() ([]FailureEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return nil, err
	}

	assigned := false
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.New().String()
			assigned = true
		}
	}
	if assigned {
		if err := l.write(entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Record upserts entry by id
func (l *FailureLog) Record(entry FailureEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return l.write(entries)
}

// Remove deletes the entry with id. It reports whether one was found.
func (l *FailureLog) Remove(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return false, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	return true, l.write(kept)
}

// Clear empties the log
func (l *FailureLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write([]FailureEntry{})
}

func (l *FailureLog) read() ([]FailureEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FailureEntry{}, nil
		}
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	if len(data) == 0 {
		return []FailureEntry{}, nil
	}

	var entries []FailureEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse failure log %s: %w", l.path, err)
	}
	if entries == nil {
		entries = []FailureEntry{}
	}
	return entries, nil
}

func (l *FailureLog) write(entries []FailureEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode failure log: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create failure log dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write failure log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write failure log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync failure log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write failure log: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace failure log: %w", err)
	}
	return nil
}
