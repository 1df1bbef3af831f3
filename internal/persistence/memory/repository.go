// Package memory provides in-memory repository implementations used by local
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/tri/internal/domain"
)

// Repository stores workouts, sync cursors, and profiles in process memory.
// It implements domain.WorkoutRepository, domain.SyncStateRepository, and
// domain.ProfileRepository.
type Repository struct {
	mu       sync.RWMutex
	workouts map[string][]domain.WorkoutRecord
	cursors  map[string]domain.SyncCursorState
	profiles map[string]domain.UserProfile
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		workouts: make(map[string][]domain.WorkoutRecord),
		cursors:  make(map[string]domain.SyncCursorState),
		profiles: make(map[string]domain.UserProfile),
	}
}

// ListVisible implements domain.WorkoutRepository.
func (r *Repository) ListVisible(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WorkoutRecord, 0)
	for _, record := range r.workouts[ownerID] {
		if !record.IsHidden {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

// ListAll implements domain.WorkoutRepository.
func (r *Repository) ListAll(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WorkoutRecord, len(r.workouts[ownerID]))
	copy(out, r.workouts[ownerID])
	return out, nil
}

// InsertManual implements domain.WorkoutRepository.
func (r *Repository) InsertManual(ctx context.Context, record domain.WorkoutRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Source = domain.SourceManual
	record.SourceIdentifier = ""
	r.workouts[record.OwnerID] = append(r.workouts[record.OwnerID], record)
	return nil
}

// UpsertExternal implements domain.WorkoutRepository. Records whose source
// identifier already exists for the owner are skipped, hidden or not.
func (r *Repository) UpsertExternal(ctx context.Context, records []domain.WorkoutRecord, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := make(map[string]struct{})
	for _, record := range r.workouts[ownerID] {
		if record.SourceIdentifier != "" {
			existing[record.SourceIdentifier] = struct{}{}
		}
	}

	inserted := 0
	for _, record := range records {
		if record.SourceIdentifier == "" {
			continue
		}
		if _, ok := existing[record.SourceIdentifier]; ok {
			continue
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		record.OwnerID = ownerID
		record.Source = domain.SourceHealthFeed
		r.workouts[ownerID] = append(r.workouts[ownerID], record)
		existing[record.SourceIdentifier] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// Hide implements domain.WorkoutRepository.
func (r *Repository) Hide(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.workouts[ownerID]
	for i, record := range records {
		if record.ID != id {
			continue
		}
		if record.Source == domain.SourceHealthFeed {
			records[i].IsHidden = true
		} else {
			r.workouts[ownerID] = append(records[:i], records[i+1:]...)
		}
		return nil
	}
	return domain.ErrWorkoutNotFound
}

// HideBySourceIdentifier implements domain.WorkoutRepository. Unknown
// identifiers are ignored: the feed may report deletions for items that were
// never mapped.
func (r *Repository) HideBySourceIdentifier(ctx context.Context, sourceIdentifier, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.workouts[ownerID]
	for i, record := range records {
		if record.SourceIdentifier == sourceIdentifier {
			records[i].IsHidden = true
			return nil
		}
	}
	return nil
}

// ClearAll implements domain.WorkoutRepository.
func (r *Repository) ClearAll(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.workouts, ownerID)
	return nil
}

// Load implements domain.SyncStateRepository.
func (r *Repository) Load(ctx context.Context, ownerID string) (domain.SyncCursorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.cursors[ownerID]; ok {
		return state, nil
	}
	state := domain.SyncCursorState{OwnerID: ownerID}
	r.cursors[ownerID] = state
	return state, nil
}

// Save implements domain.SyncStateRepository.
func (r *Repository) Save(ctx context.Context, state domain.SyncCursorState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursors[state.OwnerID] = state
	return nil
}

// Clear implements domain.SyncStateRepository.
func (r *Repository) Clear(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cursors, ownerID)
	return nil
}

// LoadProfile is exposed through the domain.ProfileRepository view; see Profiles.
func (r *Repository) loadProfile(ownerID string) domain.UserProfile {
	if profile, ok := r.profiles[ownerID]; ok {
		return profile
	}
	profile := domain.DefaultProfile(ownerID)
	r.profiles[ownerID] = profile
	return profile
}

// Profiles returns the repository's domain.ProfileRepository view. Kept as a
// separate view because Load collides with the sync-state method name.
func (r *Repository) Profiles() domain.ProfileRepository {
	return profileView{r}
}

type profileView struct {
	repo *Repository
}

func (v profileView) Load(ctx context.Context, ownerID string) (domain.UserProfile, error) {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	return v.repo.loadProfile(ownerID), nil
}

func (v profileView) Save(ctx context.Context, profile domain.UserProfile) error {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	v.repo.profiles[profile.OwnerID] = profile
	return nil
}

func (v profileView) Delete(ctx context.Context, ownerID string) error {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	delete(v.repo.profiles, ownerID)
	return nil
}
