package handler

import (
	"net/http"

	"github.com/forgo/occasions/api/internal/jobs"
	"github.com/forgo/occasions/api/internal/model"
)

// JobQueue exposes the live state of the job queue
type JobQueue interface {
	Snapshot() []jobs.QueuedJob
	Draining() bool
	PendingRetries() int
}

// FailureReader lists permanently failed jobs
type FailureReader interface {
	Load() ([]jobs.FailureEntry, error)
}

// JobsStatus is the admin view of the job queue
type JobsStatus struct {
	Draining       bool                `json:"draining"`
	Queued         []jobs.QueuedJob    `json:"queued"`
	PendingRetries int                 `json:"pending_retries"`
	Failed         []jobs.FailureEntry `json:"failed"`
}

// JobsHandler serves job queue diagnostics
type JobsHandler struct {
	queue    JobQueue
	failures FailureReader
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(queue JobQueue, failures FailureReader) *JobsHandler {
	return &JobsHandler{queue: queue, failures: failures}
}

// Status handles GET /v1/admin/jobs
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	failed, err := h.failures.Load()
	if err != nil {
		WriteError(w, model.NewInternalError("failed to read failure log"))
		return
	}
	if failed == nil {
		failed = []jobs.FailureEntry{}
	}

	queued := h.queue.Snapshot()
	if queued == nil {
		queued = []jobs.QueuedJob{}
	}

	WriteData(w, http.StatusOK, JobsStatus{
		Draining:       h.queue.Draining(),
		Queued:         queued,
		PendingRetries: h.queue.PendingRetries(),
		Failed:         failed,
	}, nil)
}
