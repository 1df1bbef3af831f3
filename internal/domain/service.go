// Package domain defines the business logic for the Tri sync service.
package domain

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/tri/internal/observability"
)

// ManualWorkoutInput captures a manually entered workout from the API layer.
type ManualWorkoutInput struct {
	OwnerID         string
	Kind            ActivityKind
	Distance        float64
	DurationSeconds float64
	Calories        float64
	OccurredAt      time.Time
}

// WorkoutService orchestrates workout reads and mutations.
//
// Manual entries that fail to persist are kept in an in-memory pending queue
// so the caller's input is not lost; the queue is drained on the next
// successful write. This is a best-effort durability gap: entries still
// pending when the process exits are gone.
type WorkoutService struct {
	repo   WorkoutRepository
	logger *log.Logger

	mu      sync.Mutex
	pending []WorkoutRecord
}

// NewWorkoutService constructs a WorkoutService.
func NewWorkoutService(repo WorkoutRepository) *WorkoutService {
	return &WorkoutService{
		repo:   repo,
		logger: log.New(log.Writer(), "[workouts] ", log.LstdFlags),
	}
}

// AddManual records a manually entered workout. The second return value is
// true when the write failed and the record was buffered in memory instead.
func (s *WorkoutService) AddManual(ctx context.Context, input ManualWorkoutInput) (*WorkoutRecord, bool, error) {
	record := WorkoutRecord{
		ID:              uuid.NewString(),
		OwnerID:         input.OwnerID,
		Source:          SourceManual,
		Kind:            input.Kind,
		Distance:        input.Distance,
		DurationSeconds: input.DurationSeconds,
		Calories:        input.Calories,
		OccurredAt:      input.OccurredAt.UTC(),
		CreatedAt:       time.Now().UTC(),
	}

	s.drainPending(ctx)

	if err := s.repo.InsertManual(ctx, record); err != nil {
		if !errors.Is(err, ErrPersistence) {
			return nil, false, err
		}
		s.logger.Printf("manual entry buffered after write failure (owner=%s): %v", input.OwnerID, err)
		s.mu.Lock()
		s.pending = append(s.pending, record)
		observability.SetPendingManualEntries(len(s.pending))
		s.mu.Unlock()
		return &record, true, nil
	}

	return &record, false, nil
}

// drainPending retries buffered manual entries, stopping at the first failure.
func (s *WorkoutService) drainPending(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > 0 {
		if err := s.repo.InsertManual(ctx, s.pending[0]); err != nil {
			return
		}
		s.logger.Printf("buffered manual entry persisted (id=%s)", s.pending[0].ID)
		s.pending = s.pending[1:]
		observability.SetPendingManualEntries(len(s.pending))
	}
}

// ListVisible returns the owner's visible workouts, newest first, including
// any buffered manual entries awaiting persistence.
func (s *WorkoutService) ListVisible(ctx context.Context, ownerID string) ([]WorkoutRecord, error) {
	records, err := s.repo.ListVisible(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, p := range s.pending {
		if p.OwnerID == ownerID {
			records = append(records, p)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt.After(records[j].OccurredAt)
	})
	return records, nil
}

// Hide removes a workout from every view. Manual records are deleted,
// healthfeed records are tombstoned so a re-sync cannot resurrect them.
func (s *WorkoutService) Hide(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	for i, p := range s.pending {
		if p.ID == id && p.OwnerID == ownerID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			observability.SetPendingManualEntries(len(s.pending))
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	return s.repo.Hide(ctx, id, ownerID)
}

// ClearAll irreversibly deletes every record for the owner.
func (s *WorkoutService) ClearAll(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.OwnerID != ownerID {
			kept = append(kept, p)
		}
	}
	s.pending = kept
	observability.SetPendingManualEntries(len(s.pending))
	s.mu.Unlock()

	return s.repo.ClearAll(ctx, ownerID)
}
