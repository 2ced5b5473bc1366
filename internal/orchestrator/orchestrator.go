package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/recipeshelf/import-service/internal/extractor"
	"github.com/recipeshelf/import-service/internal/recipes"
	"github.com/recipeshelf/import-service/internal/registry"
)

var (
	// ErrNotSignedIn is surfaced when a job has no user attached
	ErrNotSignedIn = errors.New("not signed in")

	// ErrSaveFailed is the fallback when the persistence sequence fails
	// without a more specific message
	ErrSaveFailed = errors.New("failed to save recipe")
)

// RecipeStore is the persistence backend consumed by the orchestrator
type RecipeStore interface {
	FindByURL(ctx context.Context, userID, url string) (*recipes.Record, error)
	SaveExtracted(ctx context.Context, userID, url string, recipe *recipes.Recipe) (string, error)
	SaveToCollection(ctx context.Context, userID, recipeID string) error
	AddToCollection(ctx context.Context, collectionID, recipeID string) error
}

// Stream is one cancellable extraction stream
type Stream interface {
	Close()
}

// StreamOpener opens extraction streams
type StreamOpener interface {
	Open(ctx context.Context, url string, sink extractor.Sink) Stream
}

// WrapClient adapts the concrete extractor client to StreamOpener
func WrapClient(c *extractor.Client) StreamOpener {
	return clientOpener{c}
}

type clientOpener struct {
	c *extractor.Client
}

func (o clientOpener) Open(ctx context.Context, url string, sink extractor.Sink) Stream {
	return o.c.Open(ctx, url, sink)
}

// Config holds orchestrator dependencies and policy
type Config struct {
	Registry *registry.Registry
	Store    RecipeStore
	Streams  StreamOpener
	// Publisher is optional; nil disables terminal event publishing
	Publisher Publisher
	Logger    *slog.Logger
	// AutoDismiss removes completed jobs from the registry after this
	// delay. Zero keeps them until explicitly dismissed. Error records
	// always wait for an explicit dismiss.
	AutoDismiss time.Duration
}

// session is one job's live-stream slot. Start installs the slot before the
// stream exists, so cancels and restarts always have a handle to race
// against; stream stays nil until the open completes. A slot that is no
// longer the job's current one must never store a stream: whoever finishes
// opening against a superseded slot closes that stream instead.
type session struct {
	stream Stream
}

// Orchestrator drives each import job from submission to terminal state:
// dedup check, streaming session, persistence sequence. It is the sole
// writer of the job registry.
type Orchestrator struct {
	registry    *registry.Registry
	store       RecipeStore
	streams     StreamOpener
	publisher   Publisher
	logger      *slog.Logger
	autoDismiss time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an orchestrator
func New(cfg *Config) *Orchestrator {
	return &Orchestrator{
		registry:    cfg.Registry,
		store:       cfg.Store,
		streams:     cfg.Streams,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
		autoDismiss: cfg.AutoDismiss,
		sessions:    make(map[string]*session),
	}
}

// Start begins processing the job. The record must already exist in the
// registry; a job dismissed before starting is logged and skipped. The
// job's session slot is claimed synchronously before this returns, so at
// most one live session per job survives any interleaving of restarts. The
// heavy lifting runs on a background goroutine detached from ctx's
// cancellation, so a submitting HTTP request going away does not kill the
// job.
func (o *Orchestrator) Start(ctx context.Context, jobID string) {
	job := o.registry.Get(jobID)
	if job == nil {
		o.logger.Warn("Start called for unknown job, skipping",
			slog.String("job_id", jobID),
		)
		return
	}

	slot := &session{}

	o.mu.Lock()
	if old, ok := o.sessions[jobID]; ok && old.stream != nil {
		old.stream.Close()
	}
	o.sessions[jobID] = slot
	o.mu.Unlock()

	go o.run(context.WithoutCancel(ctx), jobID, slot)
}

func (o *Orchestrator) run(ctx context.Context, jobID string, slot *session) {
	job := o.registry.Get(jobID)
	if job == nil {
		o.release(jobID, slot)
		return
	}

	o.logger.Info("Import started",
		slog.String("job_id", jobID),
		slog.String("url", job.URL),
	)

	o.registry.UpdateStatus(jobID, registry.StatusChecking)
	o.registry.UpdateProgress(jobID, 0.05, "Checking your saved recipes...", "")

	if job.UserID == "" {
		o.release(jobID, slot)
		o.fail(ctx, jobID, ErrNotSignedIn.Error())
		return
	}

	// Dedup check. A failed lookup is a miss, not an error: extraction
	// proceeds rather than failing the whole job.
	existing, err := o.store.FindByURL(ctx, job.UserID, job.URL)
	if err != nil {
		o.logger.Warn("Dedup check failed, proceeding with extraction",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		existing = nil
	}

	if existing != nil {
		o.release(jobID, slot)
		o.fastPath(ctx, jobID, job, existing)
		return
	}

	o.registry.UpdateStatus(jobID, registry.StatusExtracting)
	o.registry.UpdateProgress(jobID, 0.1, "Connecting...", "")

	sink := &jobSink{orch: o, ctx: ctx, jobID: jobID, slot: slot}
	stream := o.streams.Open(ctx, job.URL, sink)

	o.mu.Lock()
	if o.sessions[jobID] != slot {
		o.mu.Unlock()
		// Superseded or canceled while the stream was opening
		stream.Close()
		return
	}
	slot.stream = stream
	o.mu.Unlock()
}

// fastPath saves an already-known record to the user's collections without
// ever opening a stream
func (o *Orchestrator) fastPath(ctx context.Context, jobID string, job *registry.Job, existing *recipes.Record) {
	o.logger.Info("Recipe already saved, taking fast path",
		slog.String("job_id", jobID),
		slog.String("recipe_id", existing.ID),
	)

	o.registry.UpdateStatus(jobID, registry.StatusSaving)
	o.registry.UpdateProgress(jobID, 0.8, "Recipe already saved, adding to your collection...", "")

	if err := o.store.SaveToCollection(ctx, job.UserID, existing.ID); err != nil {
		o.fail(ctx, jobID, err.Error())
		return
	}

	if job.CollectionID != "" {
		if err := o.store.AddToCollection(ctx, job.CollectionID, existing.ID); err != nil {
			o.fail(ctx, jobID, err.Error())
			return
		}
	}

	o.complete(ctx, jobID, existing.ID, existing.Title)
}

// persist runs the persistence sequence after a successful extraction
func (o *Orchestrator) persist(ctx context.Context, jobID string, slot *session, recipe *recipes.Recipe) {
	o.closeSlot(jobID, slot)

	o.registry.UpdateStatus(jobID, registry.StatusSaving)
	o.registry.UpdateProgress(jobID, 0.9, "Saving recipe...", "")
	o.registry.SetResult(jobID, recipe)

	job := o.registry.Get(jobID)
	if job == nil {
		// Dismissed while the stream was finishing
		return
	}

	resultID, err := o.store.SaveExtracted(ctx, job.UserID, job.URL, recipe)
	if err != nil {
		// The extracted payload stays on the record until dismissal,
		// but the job itself is terminal: the user must resubmit.
		msg := err.Error()
		if msg == "" {
			msg = ErrSaveFailed.Error()
		}
		o.fail(ctx, jobID, msg)
		return
	}

	if job.CollectionID != "" {
		if err := o.store.AddToCollection(ctx, job.CollectionID, resultID); err != nil {
			o.fail(ctx, jobID, err.Error())
			return
		}
	}

	o.complete(ctx, jobID, resultID, recipe.Title)
}

// Cancel closes the live session for jobID, if any. Connection-level only:
// the job record keeps whatever status it last had. Callers who want the
// record gone must also remove it from the registry.
func (o *Orchestrator) Cancel(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if slot, ok := o.sessions[jobID]; ok {
		if slot.stream != nil {
			slot.stream.Close()
		}
		delete(o.sessions, jobID)
	}
}

// CancelAll closes every live session; used on shutdown. Opens still in
// flight find their slot gone and close their stream on arrival.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for jobID, slot := range o.sessions {
		if slot.stream != nil {
			slot.stream.Close()
		}
		delete(o.sessions, jobID)
	}
}

// Dismiss cancels any live session and removes the record entirely
func (o *Orchestrator) Dismiss(jobID string) {
	o.Cancel(jobID)
	o.registry.Remove(jobID)
}

// release drops the slot if it is still the job's current one. Used on the
// paths that never open a stream.
func (o *Orchestrator) release(jobID string, slot *session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessions[jobID] == slot {
		delete(o.sessions, jobID)
	}
}

// closeSlot closes and drops the slot if it is still the job's current one
func (o *Orchestrator) closeSlot(jobID string, slot *session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessions[jobID] != slot {
		return
	}
	if slot.stream != nil {
		slot.stream.Close()
	}
	delete(o.sessions, jobID)
}

// current reports whether slot is still the job's live session
func (o *Orchestrator) current(jobID string, slot *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.sessions[jobID] == slot
}

func (o *Orchestrator) complete(ctx context.Context, jobID, resultID, resultTitle string) {
	o.registry.SetComplete(jobID, resultID, resultTitle)

	o.logger.Info("Import completed",
		slog.String("job_id", jobID),
		slog.String("recipe_id", resultID),
		slog.String("title", resultTitle),
	)

	o.publishTerminal(ctx, jobID)

	if o.autoDismiss > 0 {
		time.AfterFunc(o.autoDismiss, func() {
			o.registry.Remove(jobID)
		})
	}
}

func (o *Orchestrator) fail(ctx context.Context, jobID, message string) {
	o.registry.SetError(jobID, message)

	o.logger.Error("Import failed",
		slog.String("job_id", jobID),
		slog.String("error", message),
	)

	o.publishTerminal(ctx, jobID)
}

// jobSink forwards one session's stream events into registry mutations.
// Events from a stream whose slot has been superseded or canceled are
// dropped; a stale session must never mutate a restarted job.
type jobSink struct {
	orch  *Orchestrator
	ctx   context.Context
	jobID string
	slot  *session
}

func (s *jobSink) OnProgress(message string, percent float64, tier string) {
	if !s.orch.current(s.jobID, s.slot) {
		return
	}
	s.orch.registry.UpdateProgress(s.jobID, percent, message, tier)
}

func (s *jobSink) OnComplete(recipe *recipes.Recipe) {
	if !s.orch.current(s.jobID, s.slot) {
		return
	}
	s.orch.persist(s.ctx, s.jobID, s.slot, recipe)
}

func (s *jobSink) OnError(message string) {
	if !s.orch.current(s.jobID, s.slot) {
		return
	}
	s.orch.closeSlot(s.jobID, s.slot)
	s.orch.fail(s.ctx, s.jobID, message)
}
