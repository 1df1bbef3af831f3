package domain

import (
	"context"
	"log"
)

// AccountService handles account deletion: identity first, then every local
// trace of the owner. Provider errors (including reauthentication prompts)
// are returned verbatim so the caller can surface a retry affordance.
type AccountService struct {
	provider AccountProvider
	workouts *WorkoutService
	syncRepo SyncStateRepository
	profiles ProfileRepository
	logger   *log.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(provider AccountProvider, workouts *WorkoutService, syncRepo SyncStateRepository, profiles ProfileRepository) *AccountService {
	return &AccountService{
		provider: provider,
		workouts: workouts,
		syncRepo: syncRepo,
		profiles: profiles,
		logger:   log.New(log.Writer(), "[account] ", log.LstdFlags),
	}
}

// Delete removes the owner's identity and all locally persisted state.
func (s *AccountService) Delete(ctx context.Context, ownerID string) error {
	if s.provider != nil {
		if err := s.provider.DeleteAccount(ctx, ownerID); err != nil {
			return err
		}
	}

	if err := s.workouts.ClearAll(ctx, ownerID); err != nil {
		return err
	}
	if err := s.syncRepo.Clear(ctx, ownerID); err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, ownerID); err != nil {
		return err
	}

	s.logger.Printf("account deleted (owner=%s)", ownerID)
	return nil
}
