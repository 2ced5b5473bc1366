package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recipeshelf/import-service/internal/recipes"
)

// Registry is the process-wide catalog of in-flight and recently finished
// import jobs. The orchestrator is its sole writer; handlers read from it.
// All mutations are observable synchronously after the call returns.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Add creates a job in status checking and returns its id
func (r *Registry) Add(url, userID, collectionID, collectionName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := &Job{
		ID:             uuid.New().String(),
		URL:            url,
		UserID:         userID,
		CollectionID:   collectionID,
		CollectionName: collectionName,
		Status:         StatusChecking,
		Progress:       0,
		CreatedAt:      time.Now(),
	}
	r.jobs[job.ID] = job

	return job.ID
}

// UpdateStatus sets the job's status. Unknown ids and jobs already in a
// terminal state are ignored; an in-flight callback may reference a job that
// was dismissed or finished in the meantime.
func (r *Registry) UpdateStatus(jobID string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = status
}

// UpdateProgress records a progress report. Progress never regresses for a
// non-terminal job: a report lower than the last recorded value keeps the
// old value and only updates message and tier.
func (r *Registry) UpdateProgress(jobID string, progress float64, message, tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}

	if progress > job.Progress {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	if tier != "" {
		job.Tier = tier
	}
}

// SetResult retains the extracted payload on the record so a failed save
// leaves the data inspectable until the job is dismissed
func (r *Registry) SetResult(jobID string, recipe *recipes.Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Result = recipe
}

// SetComplete transitions the job to complete with progress 1
func (r *Registry) SetComplete(jobID, resultID, resultTitle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}

	job.Status = StatusComplete
	job.Progress = 1
	job.ResultID = resultID
	job.ResultTitle = resultTitle
}

// SetError transitions the job to error
func (r *Registry) SetError(jobID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}

	job.Status = StatusError
	job.ErrorMessage = message
}

// Remove deletes the record regardless of status
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, jobID)
}

// Get returns a snapshot of the job, or nil if unknown
func (r *Registry) Get(jobID string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil
	}

	snapshot := *job
	return &snapshot
}

// List returns snapshots of all jobs, newest first
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// ActiveJob returns the most recently created non-terminal job, if any
func (r *Registry) ActiveJob() *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active *Job
	for _, job := range r.jobs {
		if job.Status.Terminal() {
			continue
		}
		if active == nil || job.CreatedAt.After(active.CreatedAt) {
			active = job
		}
	}

	if active == nil {
		return nil
	}
	snapshot := *active
	return &snapshot
}

// RecentlyCompleted returns the most recent terminal job still in the
// registry (i.e. not yet dismissed), if any
func (r *Registry) RecentlyCompleted() *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recent *Job
	for _, job := range r.jobs {
		if !job.Status.Terminal() {
			continue
		}
		if recent == nil || job.CreatedAt.After(recent.CreatedAt) {
			recent = job
		}
	}

	if recent == nil {
		return nil
	}
	snapshot := *recent
	return &snapshot
}
