// Package jobs implements background job processing for the Occasions API.
//
// # Queue
//
// Queue is an in-memory priority queue. Jobs are identified by a Kind and
// resolved to an Action through a Registry, so a job can be written to disk
// and rebuilt later:
//
//	registry := jobs.NewRegistry()
//	jobs.RegisterOccasionJobs(registry, jobs.NewOccasionLifecycle(repo, hub, nil, logger))
//
//	queue := jobs.NewQueue(registry, jobs.NewFailureLog(path), jobs.QueueConfig{Logger: logger})
//	if err := queue.Start(ctx); err != nil {
//	    logger.Error("failed to reload failed jobs", "error", err)
//	}
//
// Jobs run one at a time, highest priority first. A failed job is re-added
// after a flat 30 second delay, up to 3 times. After that it is written to
// the failure log, and the next Start re-adds it with the retry count it
// failed with. A reloaded job that later succeeds is removed from the log.
//
// # Failure Log
//
// FailureLog stores a JSON array of entries:
//
//	[{"id": "...", "fn": "end_occasions", "priority": 0, "retryCount": 3, "error": "...", "failedAt": "..."}]
//
// Queued jobs in the /v1/admin/jobs snapshot use the same keys.
//
// Load never changes a log whose entries all carry an id. A legacy log with
// entries missing an id is rewritten on startup: each such entry gets a fresh
// id so a later success can remove exactly that entry.
//
// # Scheduler
//
// Scheduler enqueues the occasion lifecycle sweeps on fixed intervals:
// start_occasions every 5 minutes at priority 1 and end_occasions every
// 10 minutes at priority 0.
package jobs
