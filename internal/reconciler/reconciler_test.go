package reconciler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tri/internal/domain"
	"example.com/tri/internal/healthfeed"
	"example.com/tri/internal/persistence/memory"
)

type feedStub struct {
	mu         sync.Mutex
	deltas     []healthfeed.Delta
	fetches    int
	startDates []time.Time
	anchors    [][]byte
	authErr    error
	fetchErr   error
	block      chan struct{}
}

func (f *feedStub) RequestAuthorization(ctx context.Context, ownerID string) error {
	return f.authErr
}

func (f *feedStub) FetchDelta(ctx context.Context, ownerID string, anchor []byte, startDate time.Time) (healthfeed.Delta, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startDates = append(f.startDates, startDate)
	f.anchors = append(f.anchors, anchor)
	f.fetches++
	if f.fetchErr != nil {
		return healthfeed.Delta{}, f.fetchErr
	}
	if len(f.deltas) == 0 {
		return healthfeed.Delta{NewAnchor: []byte("anchor-final")}, nil
	}
	delta := f.deltas[0]
	if len(f.deltas) > 1 {
		f.deltas = f.deltas[1:]
	}
	return delta, nil
}

func (f *feedStub) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newReconciler(feed healthfeed.Feed, repo *memory.Repository, opts ...Option) *Reconciler {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(feed, repo, repo, repo.Profiles(), opts...)
}

func TestColdSyncStartsAtOptIn(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	optIn := time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)

	feed := &feedStub{deltas: []healthfeed.Delta{{
		Added: []healthfeed.Item{
			{SourceIdentifier: "feed-1", ActivityType: "running", DistanceMeters: 8046.72, DurationSeconds: 2700, Calories: 500, EndedAt: optIn},
			{SourceIdentifier: "feed-2", ActivityType: "yoga", EndedAt: optIn},
		},
		NewAnchor: []byte("anchor-1"),
	}}}

	r := newReconciler(feed, repo, WithClock(func() time.Time { return optIn }))
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	require.Nil(t, feed.anchors[0], "cold fetch must carry no anchor")
	require.Equal(t, optIn, feed.startDates[0], "cold fetch starts at opt-in, never retroactive")

	visible, err := repo.ListVisible(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, visible, 1, "untracked activity types are dropped")
	require.Equal(t, domain.KindRun, visible[0].Kind)

	state, err := repo.Load(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, []byte("anchor-1"), state.Anchor)
	require.Equal(t, optIn, state.LastFetchAt)
	require.Equal(t, PhaseIdle, r.Phase("owner-1"))
}

func TestReplayedWindowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	item := healthfeed.Item{SourceIdentifier: "feed-1", ActivityType: "cycling", DistanceMeters: 16093.44, Calories: 400, EndedAt: time.Now().UTC()}

	feed := &feedStub{deltas: []healthfeed.Delta{{Added: []healthfeed.Item{item}, NewAnchor: []byte("a1")}}}
	r := newReconciler(feed, repo)

	require.NoError(t, r.Trigger(ctx, "owner-1"))
	require.NoError(t, repo.HideBySourceIdentifier(ctx, "feed-1", "owner-1"))

	// Same window again: the tombstone must survive.
	feed.mu.Lock()
	feed.deltas = []healthfeed.Delta{{Added: []healthfeed.Item{item}, NewAnchor: []byte("a2")}}
	feed.mu.Unlock()
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	visible, err := repo.ListVisible(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, visible)

	all, err := repo.ListAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].IsHidden)
}

func TestDeletionsTombstoneRecords(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	item := healthfeed.Item{SourceIdentifier: "feed-1", ActivityType: "swimming", DistanceMeters: 914.4, EndedAt: time.Now().UTC()}

	feed := &feedStub{deltas: []healthfeed.Delta{
		{Added: []healthfeed.Item{item}, NewAnchor: []byte("a1")},
		{DeletedSourceIDs: []string{"feed-1", "feed-never-seen"}, NewAnchor: []byte("a2")},
	}}
	r := newReconciler(feed, repo)

	require.NoError(t, r.Trigger(ctx, "owner-1"))
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	visible, err := repo.ListVisible(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, visible)

	state, err := repo.Load(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, []byte("a2"), state.Anchor)
}

type capturingWorkouts struct {
	domain.WorkoutRepository
	mu       sync.Mutex
	upserted []domain.WorkoutRecord
}

func (c *capturingWorkouts) UpsertExternal(ctx context.Context, records []domain.WorkoutRecord, ownerID string) (int, error) {
	c.mu.Lock()
	c.upserted = append(c.upserted, records...)
	c.mu.Unlock()
	return c.WorkoutRepository.UpsertExternal(ctx, records, ownerID)
}

func TestPassHandsStoreFullyIdentifiedRecords(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	workouts := &capturingWorkouts{WorkoutRepository: repo}

	now := time.Now().UTC()
	feed := &feedStub{deltas: []healthfeed.Delta{{
		Added: []healthfeed.Item{
			{SourceIdentifier: "feed-1", ActivityType: "running", DistanceMeters: 1609.344, EndedAt: now},
			{SourceIdentifier: "feed-2", ActivityType: "swimming", DistanceMeters: 914.4, EndedAt: now},
		},
		NewAnchor: []byte("a1"),
	}}}

	r := New(feed, workouts, repo, repo.Profiles(), WithLogger(quietLogger()))
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	// The store must never have to invent the primary key: an empty or
	// repeated ID would fail a UUID column on the first batch.
	require.Len(t, workouts.upserted, 2)
	seen := make(map[string]struct{})
	for _, record := range workouts.upserted {
		require.NotEmpty(t, record.ID, "record for %s reached the store without an ID", record.SourceIdentifier)
		_, dup := seen[record.ID]
		require.False(t, dup, "duplicate record ID %s", record.ID)
		seen[record.ID] = struct{}{}
	}
}

type failingWorkouts struct {
	domain.WorkoutRepository
	upsertErr error
}

func (f *failingWorkouts) UpsertExternal(ctx context.Context, records []domain.WorkoutRecord, ownerID string) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	return f.WorkoutRepository.UpsertExternal(ctx, records, ownerID)
}

func TestCursorDoesNotAdvanceOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	workouts := &failingWorkouts{WorkoutRepository: repo, upsertErr: errors.New("store down")}

	item := healthfeed.Item{SourceIdentifier: "feed-1", ActivityType: "running", DistanceMeters: 1609.344, EndedAt: time.Now().UTC()}
	feed := &feedStub{deltas: []healthfeed.Delta{{Added: []healthfeed.Item{item}, NewAnchor: []byte("a1")}}}

	r := New(feed, workouts, repo, repo.Profiles(), WithLogger(quietLogger()))
	require.Error(t, r.Trigger(ctx, "owner-1"))

	state, err := repo.Load(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, state.Anchor, "cursor must not advance past an unapplied window")

	// Recovery replays the same window and applies it.
	workouts.upsertErr = nil
	feed.mu.Lock()
	feed.deltas = []healthfeed.Delta{{Added: []healthfeed.Item{item}, NewAnchor: []byte("a1")}}
	feed.mu.Unlock()
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	visible, err := repo.ListVisible(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, visible, 1)
}

func TestConcurrentTriggerDefersOnePass(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	feed := &feedStub{block: make(chan struct{})}
	r := newReconciler(feed, repo)

	done := make(chan error, 1)
	go func() { done <- r.Trigger(ctx, "owner-1") }()

	// Wait until the first pass is blocked inside the feed fetch.
	require.Eventually(t, func() bool {
		return r.Phase("owner-1") == PhaseSyncing
	}, time.Second, 5*time.Millisecond)

	// Both extra triggers collapse into a single deferred pass.
	require.NoError(t, r.Trigger(ctx, "owner-1"))
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	close(feed.block)
	require.NoError(t, <-done)
	require.Equal(t, 2, feed.fetchCount())
	require.Equal(t, PhaseIdle, r.Phase("owner-1"))
}

func TestEnableSyncDenialPersistsDisable(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	feed := &feedStub{authErr: domain.ErrAuthorizationDenied}
	r := newReconciler(feed, repo)

	// Start from an enabled profile to prove denial flips it off.
	profile, err := repo.Profiles().Load(ctx, "owner-1")
	require.NoError(t, err)
	profile.HealthSyncEnabled = true
	require.NoError(t, repo.Profiles().Save(ctx, profile))

	err = r.EnableSync(ctx, "owner-1")
	require.ErrorIs(t, err, domain.ErrAuthorizationDenied)
	require.Equal(t, PhaseDisabled, r.Phase("owner-1"))
	require.Zero(t, feed.fetchCount(), "no pass runs after denial")

	profile, err = repo.Profiles().Load(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, profile.HealthSyncEnabled)
}

func TestEnableSyncRunsFirstPass(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	feed := &feedStub{}
	r := newReconciler(feed, repo)

	require.NoError(t, r.EnableSync(ctx, "owner-1"))
	require.Equal(t, 1, feed.fetchCount())

	profile, err := repo.Profiles().Load(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, profile.HealthSyncEnabled)

	require.NoError(t, r.DisableSync(ctx, "owner-1"))
	require.Equal(t, PhaseDisabled, r.Phase("owner-1"))

	// The cursor survives a disable so re-enable resumes, not restarts.
	state, err := repo.Load(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, []byte("anchor-final"), state.Anchor)
}

type recorderStub struct {
	mu      sync.Mutex
	results []PassResult
	err     error
}

func (s *recorderStub) RecordSyncCompleted(ctx context.Context, result PassResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return s.err
}

func TestPassResultReportedToRecorder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	now := time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)

	feed := &feedStub{deltas: []healthfeed.Delta{{
		Added: []healthfeed.Item{
			{SourceIdentifier: "feed-1", ActivityType: "running", DistanceMeters: 1609.344, EndedAt: now},
			{SourceIdentifier: "feed-2", ActivityType: "yoga", EndedAt: now},
		},
		DeletedSourceIDs: []string{"feed-0"},
		NewAnchor:        []byte("a1"),
	}}}

	recorder := &recorderStub{}
	r := newReconciler(feed, repo, WithEventRecorder(recorder), WithClock(func() time.Time { return now }))
	require.NoError(t, r.Trigger(ctx, "owner-1"))

	require.Len(t, recorder.results, 1)
	result := recorder.results[0]
	require.Equal(t, "owner-1", result.OwnerID)
	require.Equal(t, 1, result.Added)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, now, result.FinishedAt)

	// Recorder failures never fail the pass.
	recorder.err = errors.New("outbox down")
	feed.mu.Lock()
	feed.deltas = []healthfeed.Delta{{NewAnchor: []byte("a2")}}
	feed.mu.Unlock()
	require.NoError(t, r.Trigger(ctx, "owner-1"))
}
