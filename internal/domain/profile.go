package domain

// UserProfile holds per-owner goals, streak settings, and account flags.
type UserProfile struct {
	OwnerID               string
	HasOnboarded          bool
	FavoriteKind          ActivityKind
	DailyCaloriesGoal     float64
	WeeklySwimGoal        float64
	WeeklyBikeGoal        float64
	WeeklyRunGoal         float64
	StreakIncludeSwim     bool
	StreakIncludeBike     bool
	StreakIncludeRun      bool
	HealthSyncEnabled     bool
	HasActiveSubscription bool
	SubscriptionProductID string
	UserEmail             string
}

// DefaultProfile seeds a new owner's profile on first access.
func DefaultProfile(ownerID string) UserProfile {
	return UserProfile{
		OwnerID:           ownerID,
		FavoriteKind:      KindSwim,
		DailyCaloriesGoal: 1000,
		WeeklySwimGoal:    5000,
		WeeklyBikeGoal:    60,
		WeeklyRunGoal:     12,
		StreakIncludeSwim: true,
		StreakIncludeBike: true,
		StreakIncludeRun:  true,
	}
}

// WeeklyGoal returns the configured weekly distance goal for the kind.
func (p UserProfile) WeeklyGoal(kind ActivityKind) float64 {
	switch kind {
	case KindSwim:
		return p.WeeklySwimGoal
	case KindBike:
		return p.WeeklyBikeGoal
	case KindRun:
		return p.WeeklyRunGoal
	}
	return 0
}

// StreakIncludes reports whether the kind's weekly goal counts toward the streak.
func (p UserProfile) StreakIncludes(kind ActivityKind) bool {
	switch kind {
	case KindSwim:
		return p.StreakIncludeSwim
	case KindBike:
		return p.StreakIncludeBike
	case KindRun:
		return p.StreakIncludeRun
	}
	return false
}
