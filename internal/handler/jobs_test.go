package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgo/occasions/api/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	jobs     []jobs.QueuedJob
	draining bool
	retries  int
}

func (s stubQueue) Snapshot() []jobs.QueuedJob { return s.jobs }
func (s stubQueue) Draining() bool             { return s.draining }
func (s stubQueue) PendingRetries() int        { return s.retries }

type stubFailures struct {
	entries []jobs.FailureEntry
	err     error
}

func (s stubFailures) Load() ([]jobs.FailureEntry, error) { return s.entries, s.err }

func TestJobsStatus(t *testing.T) {
	t.Parallel()

	failedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := NewJobsHandler(
		stubQueue{
			jobs:     []jobs.QueuedJob{{ID: "j1", Kind: jobs.KindStartOccasions, Priority: 1}},
			draining: true,
			retries:  2,
		},
		stubFailures{entries: []jobs.FailureEntry{
			{ID: "f1", Kind: jobs.KindEndOccasions, RetryCount: 3, Error: "timeout", FailedAt: failedAt},
		}},
	)

	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/jobs", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data JobsStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Draining)
	assert.Equal(t, 2, resp.Data.PendingRetries)
	require.Len(t, resp.Data.Queued, 1)
	assert.Equal(t, jobs.KindStartOccasions, resp.Data.Queued[0].Kind)
	require.Len(t, resp.Data.Failed, 1)
	assert.Equal(t, "f1", resp.Data.Failed[0].ID)
	assert.Equal(t, failedAt, resp.Data.Failed[0].FailedAt)
}

func TestJobsStatus_QueuedAndFailedShareShape(t *testing.T) {
	t.Parallel()

	failedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := NewJobsHandler(
		stubQueue{jobs: []jobs.QueuedJob{{ID: "j1", Kind: jobs.KindEndOccasions, RetryCount: 2}}},
		stubFailures{entries: []jobs.FailureEntry{
			{ID: "f1", Kind: jobs.KindEndOccasions, RetryCount: 3, Error: "timeout", FailedAt: failedAt},
		}},
	)

	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/jobs", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var raw struct {
		Data struct {
			Queued []map[string]interface{} `json:"queued"`
			Failed []map[string]interface{} `json:"failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	require.Len(t, raw.Data.Queued, 1)
	require.Len(t, raw.Data.Failed, 1)

	for _, key := range []string{"id", "fn", "priority", "retryCount"} {
		assert.Contains(t, raw.Data.Queued[0], key)
		assert.Contains(t, raw.Data.Failed[0], key)
	}
	assert.Equal(t, string(jobs.KindEndOccasions), raw.Data.Queued[0]["fn"])
	assert.EqualValues(t, 2, raw.Data.Queued[0]["retryCount"])
	assert.NotContains(t, raw.Data.Queued[0], "kind")
	assert.NotContains(t, raw.Data.Queued[0], "retry_count")
}

func TestJobsStatus_EmptyListsAreArrays(t *testing.T) {
	t.Parallel()

	h := NewJobsHandler(stubQueue{}, stubFailures{})
	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/jobs", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queued":[]`)
	assert.Contains(t, rr.Body.String(), `"failed":[]`)
}

func TestJobsStatus_FailureLogError(t *testing.T) {
	t.Parallel()

	h := NewJobsHandler(stubQueue{}, stubFailures{err: errors.New("permission denied")})
	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
