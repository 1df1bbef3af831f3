package domain

import "context"

// WorkoutRepository captures persistence operations for workout records.
//
// UpsertExternal is insert-if-absent by (owner, source identifier) and never
// updates an existing row, hidden or not: the feed communicates corrections
// via new identifiers or deletions, not in-place edits.
type WorkoutRepository interface {
	ListVisible(ctx context.Context, ownerID string) ([]WorkoutRecord, error)
	// ListAll includes hidden tombstones. Audit and test use only.
	ListAll(ctx context.Context, ownerID string) ([]WorkoutRecord, error)
	InsertManual(ctx context.Context, record WorkoutRecord) error
	UpsertExternal(ctx context.Context, records []WorkoutRecord, ownerID string) (inserted int, err error)
	// Hide deletes manual records outright and tombstones healthfeed records.
	Hide(ctx context.Context, id, ownerID string) error
	HideBySourceIdentifier(ctx context.Context, sourceIdentifier, ownerID string) error
	ClearAll(ctx context.Context, ownerID string) error
}

// SyncStateRepository stores the per-owner feed cursor.
type SyncStateRepository interface {
	// Load returns the owner's cursor state, creating an empty one if absent.
	Load(ctx context.Context, ownerID string) (SyncCursorState, error)
	Save(ctx context.Context, state SyncCursorState) error
	Clear(ctx context.Context, ownerID string) error
}

// ProfileRepository stores per-owner profiles.
type ProfileRepository interface {
	// Load returns the owner's profile, seeding defaults on first access.
	Load(ctx context.Context, ownerID string) (UserProfile, error)
	Save(ctx context.Context, profile UserProfile) error
	Delete(ctx context.Context, ownerID string) error
}

// EntitlementProvider yields the verified active subscription products for an owner.
type EntitlementProvider interface {
	ActiveProducts(ctx context.Context, ownerID string) ([]string, error)
}

// AccountProvider is the slice of the auth provider the account service needs.
type AccountProvider interface {
	// DeleteAccount removes the owner's identity. Returns
	// ErrReauthenticationRequired when a fresh credential is needed.
	DeleteAccount(ctx context.Context, ownerID string) error
}
