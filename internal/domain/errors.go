package domain

import "errors"

var (
	// ErrPersistence wraps any store read/write failure. Callers decide the
	// retry policy; the repositories never retry on their own.
	ErrPersistence = errors.New("persistence failure")
	// ErrAuthorizationDenied indicates the health feed rejected or the user
	// declined the authorization request. Sync is disabled, never fatal.
	ErrAuthorizationDenied = errors.New("health feed authorization denied")
	// ErrReauthenticationRequired is surfaced when account deletion needs a
	// fresh credential from the auth provider.
	ErrReauthenticationRequired = errors.New("reauthentication required")
	// ErrWorkoutNotFound is returned when a workout cannot be located.
	ErrWorkoutNotFound = errors.New("workout not found")
)
