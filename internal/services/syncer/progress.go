package syncer

import (
	"sync"
	"time"

	"github.com/ternarybob/sitesync/internal/models"
)

// progressTracker holds the in-memory, pollable progress snapshots for sync
// jobs. Snapshots of terminal jobs stay available for the retention window so
// pollers see the final state before the job is retired.
type progressTracker struct {
	mu        sync.RWMutex
	jobs      map[string]*models.SyncJob
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

func newProgressTracker(retention time.Duration) *progressTracker {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	t := &progressTracker{
		jobs:      make(map[string]*models.SyncJob),
		retention: retention,
		stop:      make(chan struct{}),
	}
	go t.janitor()
	return t
}

// Track registers a new job. The tracker owns the stored copy; callers mutate
// it only through Update.
func (t *progressTracker) Track(job *models.SyncJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *job
	t.jobs[job.JobID] = &stored
}

// Update applies fn to the stored job under the lock. URLsProcessed is pinned
// monotonic: an update can never move it backwards, so pollers never observe
// progress decreasing.
func (t *progressTracker) Update(jobID string, fn func(*models.SyncJob)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return
	}
	processed := job.URLsProcessed
	fn(job)
	if job.URLsProcessed < processed {
		job.URLsProcessed = processed
	}
}

// Get returns a snapshot copy of the job, or nil if unknown or retired.
func (t *progressTracker) Get(jobID string) *models.SyncJob {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// Active returns the IDs of jobs that have not reached a terminal state.
func (t *progressTracker) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for id, job := range t.jobs {
		if !job.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// janitor retires terminal jobs once their retention window elapses.
func (t *progressTracker) janitor() {
	interval := t.retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for id, job := range t.jobs {
				if job.Terminal() && job.FinishedAt != nil && now.Sub(*job.FinishedAt) > t.retention {
					delete(t.jobs, id)
				}
			}
			t.mu.Unlock()
		}
	}
}

// Close stops the janitor goroutine.
func (t *progressTracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}
