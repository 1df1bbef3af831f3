// Package reconciler drives reconciliation passes between the external
// health feed and the workout record store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"example.com/tri/internal/domain"
	"example.com/tri/internal/healthfeed"
	"example.com/tri/internal/observability"
)

// Phase describes where an owner's sync currently stands. Every failure path
// returns to Disabled or Idle; there is no terminal error phase.
type Phase string

const (
	PhaseDisabled    Phase = "disabled"
	PhaseAuthorizing Phase = "authorizing"
	PhaseSyncing     Phase = "syncing"
	PhaseIdle        Phase = "idle"
)

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	OwnerID    string
	Added      int
	Skipped    int
	Deleted    int
	FinishedAt time.Time
}

// EventRecorder receives a notification after each successful pass. Optional.
type EventRecorder interface {
	RecordSyncCompleted(ctx context.Context, result PassResult) error
}

type ownerState struct {
	mu      sync.Mutex
	phase   Phase
	running bool
	pending bool
}

// Reconciler consumes feed deltas and reconciles them against the store.
// Passes for the same owner never overlap: a pass triggered while one is in
// flight is deferred and run once the current one finishes, so the cursor can
// never be advanced twice for one notification burst.
type Reconciler struct {
	feed     healthfeed.Feed
	workouts domain.WorkoutRepository
	syncRepo domain.SyncStateRepository
	profiles domain.ProfileRepository
	events   EventRecorder
	logger   *log.Logger
	now      func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerState
}

// Option configures optional behaviour for the Reconciler.
type Option func(*Reconciler)

// WithLogger overrides the logger used to report pass outcomes.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithEventRecorder attaches a recorder notified after successful passes.
func WithEventRecorder(events EventRecorder) Option {
	return func(r *Reconciler) { r.events = events }
}

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New constructs a Reconciler.
func New(feed healthfeed.Feed, workouts domain.WorkoutRepository, syncRepo domain.SyncStateRepository, profiles domain.ProfileRepository, opts ...Option) *Reconciler {
	r := &Reconciler{
		feed:     feed,
		workouts: workouts,
		syncRepo: syncRepo,
		profiles: profiles,
		logger:   log.New(log.Writer(), "[reconciler] ", log.LstdFlags),
		now:      func() time.Time { return time.Now().UTC() },
		owners:   make(map[string]*ownerState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) state(ownerID string) *ownerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.owners[ownerID]
	if !ok {
		st = &ownerState{phase: PhaseDisabled}
		r.owners[ownerID] = st
	}
	return st
}

// Phase reports the owner's current sync phase.
func (r *Reconciler) Phase(ownerID string) Phase {
	st := r.state(ownerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.phase
}

func (r *Reconciler) setPhase(st *ownerState, phase Phase) {
	st.mu.Lock()
	st.phase = phase
	st.mu.Unlock()
}

// EnableSync requests feed authorization for the owner and, on success, runs
// the first reconciliation pass. Authorization denial disables sync and is
// returned for the caller to surface; it is never retried automatically.
func (r *Reconciler) EnableSync(ctx context.Context, ownerID string) error {
	st := r.state(ownerID)
	r.setPhase(st, PhaseAuthorizing)

	if err := r.feed.RequestAuthorization(ctx, ownerID); err != nil {
		r.setPhase(st, PhaseDisabled)
		if profileErr := r.setSyncEnabled(ctx, ownerID, false); profileErr != nil {
			r.logger.Printf("failed to persist sync disable (owner=%s): %v", ownerID, profileErr)
		}
		if errors.Is(err, domain.ErrAuthorizationDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrAuthorizationDenied, err)
	}

	if err := r.setSyncEnabled(ctx, ownerID, true); err != nil {
		r.setPhase(st, PhaseDisabled)
		return err
	}

	return r.Trigger(ctx, ownerID)
}

// DisableSync turns sync off for the owner. The cursor is kept so a later
// re-enable resumes from where it left off.
func (r *Reconciler) DisableSync(ctx context.Context, ownerID string) error {
	st := r.state(ownerID)
	r.setPhase(st, PhaseDisabled)
	return r.setSyncEnabled(ctx, ownerID, false)
}

func (r *Reconciler) setSyncEnabled(ctx context.Context, ownerID string, enabled bool) error {
	profile, err := r.profiles.Load(ctx, ownerID)
	if err != nil {
		return err
	}
	if profile.HealthSyncEnabled == enabled {
		return nil
	}
	profile.HealthSyncEnabled = enabled
	return r.profiles.Save(ctx, profile)
}

// Trigger runs a reconciliation pass for the owner. If a pass is already in
// flight the request is deferred until the current one completes and Trigger
// returns nil immediately.
func (r *Reconciler) Trigger(ctx context.Context, ownerID string) error {
	st := r.state(ownerID)

	st.mu.Lock()
	if st.running {
		st.pending = true
		st.mu.Unlock()
		passesDeferred.Inc()
		return nil
	}
	st.running = true
	st.phase = PhaseSyncing
	st.mu.Unlock()

	var err error
	for {
		err = r.reconcile(ctx, ownerID)

		st.mu.Lock()
		if st.pending && err == nil {
			st.pending = false
			st.mu.Unlock()
			continue
		}
		st.running = false
		st.pending = false
		st.phase = PhaseIdle
		st.mu.Unlock()
		return err
	}
}

// reconcile is one pass: load cursor, fetch delta, map, upsert, hide
// deletions, advance cursor, refresh the visible set. The cursor advances
// even when individual items failed to apply; it does not advance when the
// store as a whole is unreachable, so the next pass safely retries the same
// window.
func (r *Reconciler) reconcile(ctx context.Context, ownerID string) error {
	start := time.Now()
	now := r.now()

	state, err := r.syncRepo.Load(ctx, ownerID)
	if err != nil {
		passesFailed.Inc()
		return err
	}

	// Sync is never retroactive beyond the moment the owner opted in.
	if state.StartDate.IsZero() {
		state.StartDate = now
	}

	delta, err := r.feed.FetchDelta(ctx, ownerID, state.Anchor, state.StartDate)
	if err != nil {
		passesFailed.Inc()
		return fmt.Errorf("fetch delta: %w", err)
	}

	candidates := make([]domain.WorkoutRecord, 0, len(delta.Added))
	droppedKinds := 0
	for _, item := range delta.Added {
		record, ok := healthfeed.MapItem(item, ownerID)
		if !ok {
			droppedKinds++
			continue
		}
		candidates = append(candidates, record)
	}
	if droppedKinds > 0 {
		itemsDropped.Add(float64(droppedKinds))
	}

	inserted, err := r.workouts.UpsertExternal(ctx, candidates, ownerID)
	if err != nil {
		passesFailed.Inc()
		return fmt.Errorf("upsert external workouts: %w", err)
	}
	itemsUpserted.Add(float64(inserted))
	itemsSkipped.Add(float64(len(candidates) - inserted))

	deleted := 0
	for _, sourceID := range delta.DeletedSourceIDs {
		if err := r.workouts.HideBySourceIdentifier(ctx, sourceID, ownerID); err != nil {
			// Per-item failure: log and keep going so the pass still makes
			// forward progress. The tombstone will be applied on a later
			// replay of the same window.
			r.logger.Printf("hide failed (owner=%s, source=%s): %v", ownerID, sourceID, err)
			continue
		}
		deleted++
	}
	itemsDeleted.Add(float64(deleted))

	state.Anchor = delta.NewAnchor
	state.LastFetchAt = now
	if err := r.syncRepo.Save(ctx, state); err != nil {
		passesFailed.Inc()
		return fmt.Errorf("advance cursor: %w", err)
	}

	if _, err := r.workouts.ListVisible(ctx, ownerID); err != nil {
		r.logger.Printf("post-pass refresh failed (owner=%s): %v", ownerID, err)
	}

	passesCompleted.Inc()
	passDuration.Observe(time.Since(start).Seconds())
	observability.RecordSyncCompleted(now)

	result := PassResult{OwnerID: ownerID, Added: inserted, Skipped: len(candidates) - inserted, Deleted: deleted, FinishedAt: now}
	if r.events != nil {
		if err := r.events.RecordSyncCompleted(ctx, result); err != nil {
			r.logger.Printf("sync event record failed (owner=%s): %v", ownerID, err)
		}
	}

	r.logger.Printf("pass complete (owner=%s, added=%d, skipped=%d, deleted=%d)", ownerID, result.Added, result.Skipped, result.Deleted)
	return nil
}
