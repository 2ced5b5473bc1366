package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Add(t *testing.T) {
	r := New()

	jobID := r.Add("https://x/recipe1", "user-1", "col-1", "Weeknight")

	_, err := uuid.Parse(jobID)
	require.NoError(t, err)

	job := r.Get(jobID)
	require.NotNil(t, job)
	assert.Equal(t, "https://x/recipe1", job.URL)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "col-1", job.CollectionID)
	assert.Equal(t, "Weeknight", job.CollectionName)
	assert.Equal(t, StatusChecking, job.Status)
	assert.Equal(t, float64(0), job.Progress)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestRegistry_UnknownJobIsNoOp(t *testing.T) {
	r := New()

	// Mutations referencing a dismissed job must be silently ignored
	r.UpdateStatus("missing", StatusExtracting)
	r.UpdateProgress("missing", 0.5, "msg", "")
	r.SetComplete("missing", "rid", "title")
	r.SetError("missing", "boom")
	r.Remove("missing")

	assert.Nil(t, r.Get("missing"))
	assert.Empty(t, r.List())
}

func TestRegistry_ProgressNeverRegresses(t *testing.T) {
	r := New()
	jobID := r.Add("https://x/r", "u", "", "")

	r.UpdateProgress(jobID, 0.10, "ten", "")
	r.UpdateProgress(jobID, 0.55, "fifty-five", "metadata")
	r.UpdateProgress(jobID, 0.20, "late replay", "audio")

	job := r.Get(jobID)
	require.NotNil(t, job)
	assert.Equal(t, 0.55, job.Progress)
	// Message and tier still track the latest report
	assert.Equal(t, "late replay", job.Message)
	assert.Equal(t, "audio", job.Tier)
}

func TestRegistry_TerminalStatesAreImmutable(t *testing.T) {
	t.Run("complete stays complete", func(t *testing.T) {
		r := New()
		jobID := r.Add("https://x/r", "u", "", "")

		r.SetComplete(jobID, "rid-1", "Tacos")
		r.SetError(jobID, "too late")
		r.UpdateStatus(jobID, StatusExtracting)
		r.UpdateProgress(jobID, 0.5, "late", "")

		job := r.Get(jobID)
		require.NotNil(t, job)
		assert.Equal(t, StatusComplete, job.Status)
		assert.Equal(t, float64(1), job.Progress)
		assert.Equal(t, "rid-1", job.ResultID)
		assert.Equal(t, "Tacos", job.ResultTitle)
		assert.Empty(t, job.ErrorMessage)
	})

	t.Run("error stays error", func(t *testing.T) {
		r := New()
		jobID := r.Add("https://x/r", "u", "", "")

		r.SetError(jobID, "no video found")
		r.SetComplete(jobID, "rid-1", "Tacos")

		job := r.Get(jobID)
		require.NotNil(t, job)
		assert.Equal(t, StatusError, job.Status)
		assert.Equal(t, "no video found", job.ErrorMessage)
		assert.Empty(t, job.ResultID)
	})
}

func TestRegistry_CompleteAndErrorInvariants(t *testing.T) {
	r := New()

	done := r.Add("https://x/done", "u", "", "")
	r.SetComplete(done, "rid", "Tacos")

	failed := r.Add("https://x/failed", "u", "", "")
	r.SetError(failed, "no video found")

	doneJob := r.Get(done)
	require.NotNil(t, doneJob)
	assert.NotEmpty(t, doneJob.ResultID)
	assert.NotEmpty(t, doneJob.ResultTitle)
	assert.Empty(t, doneJob.ErrorMessage)

	failedJob := r.Get(failed)
	require.NotNil(t, failedJob)
	assert.NotEmpty(t, failedJob.ErrorMessage)
	assert.Empty(t, failedJob.ResultID)
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	jobID := r.Add("https://x/r", "u", "", "")

	r.Remove(jobID)

	assert.Nil(t, r.Get(jobID))

	// Removing twice is fine
	r.Remove(jobID)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := New()

	first := r.Add("https://x/1", "u", "", "")
	time.Sleep(2 * time.Millisecond)
	second := r.Add("https://x/2", "u", "", "")
	time.Sleep(2 * time.Millisecond)
	third := r.Add("https://x/3", "u", "", "")

	jobs := r.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, third, jobs[0].ID)
	assert.Equal(t, second, jobs[1].ID)
	assert.Equal(t, first, jobs[2].ID)
}

func TestRegistry_ActiveJob(t *testing.T) {
	r := New()

	assert.Nil(t, r.ActiveJob())

	old := r.Add("https://x/old", "u", "", "")
	time.Sleep(2 * time.Millisecond)
	newer := r.Add("https://x/new", "u", "", "")

	active := r.ActiveJob()
	require.NotNil(t, active)
	assert.Equal(t, newer, active.ID)

	// Terminal jobs are never active
	r.SetComplete(newer, "rid", "Tacos")
	active = r.ActiveJob()
	require.NotNil(t, active)
	assert.Equal(t, old, active.ID)

	r.SetError(old, "boom")
	assert.Nil(t, r.ActiveJob())
}

func TestRegistry_RecentlyCompleted(t *testing.T) {
	r := New()

	assert.Nil(t, r.RecentlyCompleted())

	first := r.Add("https://x/1", "u", "", "")
	time.Sleep(2 * time.Millisecond)
	second := r.Add("https://x/2", "u", "", "")

	r.SetComplete(first, "rid-1", "Tacos")
	r.SetError(second, "boom")

	recent := r.RecentlyCompleted()
	require.NotNil(t, recent)
	assert.Equal(t, second, recent.ID)

	// Dismissal clears it
	r.Remove(second)
	recent = r.RecentlyCompleted()
	require.NotNil(t, recent)
	assert.Equal(t, first, recent.ID)

	r.Remove(first)
	assert.Nil(t, r.RecentlyCompleted())
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := New()
	jobID := r.Add("https://x/r", "u", "", "")

	snapshot := r.Get(jobID)
	require.NotNil(t, snapshot)
	snapshot.Status = StatusError
	snapshot.Progress = 0.9

	// Mutating the snapshot must not touch the registry
	job := r.Get(jobID)
	assert.Equal(t, StatusChecking, job.Status)
	assert.Equal(t, float64(0), job.Progress)
}
