package domain

import "context"

// GoalsInput groups every goal field so onboarding and the goals screen
// persist them in a single write rather than one write per field.
type GoalsInput struct {
	DailyCaloriesGoal float64
	WeeklySwimGoal    float64
	WeeklyBikeGoal    float64
	WeeklyRunGoal     float64
	FavoriteKind      ActivityKind
}

// StreakSettingsInput groups the streak discipline toggles.
type StreakSettingsInput struct {
	IncludeSwim bool
	IncludeBike bool
	IncludeRun  bool
}

// ProfileService owns per-owner profile state.
type ProfileService struct {
	repo         ProfileRepository
	entitlements EntitlementProvider
}

// NewProfileService constructs a ProfileService. entitlements may be nil when
// no subscription provider is configured.
func NewProfileService(repo ProfileRepository, entitlements EntitlementProvider) *ProfileService {
	return &ProfileService{repo: repo, entitlements: entitlements}
}

// Load returns the owner's profile, seeding defaults on first access.
func (s *ProfileService) Load(ctx context.Context, ownerID string) (UserProfile, error) {
	return s.repo.Load(ctx, ownerID)
}

// UpdateGoals replaces every goal field in one write.
func (s *ProfileService) UpdateGoals(ctx context.Context, ownerID string, input GoalsInput) (UserProfile, error) {
	profile, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return UserProfile{}, err
	}
	profile.DailyCaloriesGoal = input.DailyCaloriesGoal
	profile.WeeklySwimGoal = input.WeeklySwimGoal
	profile.WeeklyBikeGoal = input.WeeklyBikeGoal
	profile.WeeklyRunGoal = input.WeeklyRunGoal
	if input.FavoriteKind.Valid() {
		profile.FavoriteKind = input.FavoriteKind
	}
	if err := s.repo.Save(ctx, profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// UpdateStreakSettings replaces the streak discipline toggles in one write.
func (s *ProfileService) UpdateStreakSettings(ctx context.Context, ownerID string, input StreakSettingsInput) (UserProfile, error) {
	profile, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return UserProfile{}, err
	}
	profile.StreakIncludeSwim = input.IncludeSwim
	profile.StreakIncludeBike = input.IncludeBike
	profile.StreakIncludeRun = input.IncludeRun
	if err := s.repo.Save(ctx, profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// SetOnboarded marks onboarding complete.
func (s *ProfileService) SetOnboarded(ctx context.Context, ownerID string) error {
	profile, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return err
	}
	if profile.HasOnboarded {
		return nil
	}
	profile.HasOnboarded = true
	return s.repo.Save(ctx, profile)
}

// SetSyncEnabled persists the owner's health sync toggle.
func (s *ProfileService) SetSyncEnabled(ctx context.Context, ownerID string, enabled bool) error {
	profile, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return err
	}
	if profile.HealthSyncEnabled == enabled {
		return nil
	}
	profile.HealthSyncEnabled = enabled
	return s.repo.Save(ctx, profile)
}

// RefreshEntitlement re-verifies the owner's subscription against the
// entitlement provider and persists the result.
func (s *ProfileService) RefreshEntitlement(ctx context.Context, ownerID string) (UserProfile, error) {
	profile, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return UserProfile{}, err
	}
	if s.entitlements == nil {
		return profile, nil
	}

	products, err := s.entitlements.ActiveProducts(ctx, ownerID)
	if err != nil {
		return UserProfile{}, err
	}

	active := len(products) > 0
	productID := ""
	if active {
		productID = products[0]
	}
	if profile.HasActiveSubscription == active && profile.SubscriptionProductID == productID {
		return profile, nil
	}

	profile.HasActiveSubscription = active
	profile.SubscriptionProductID = productID
	if err := s.repo.Save(ctx, profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}
