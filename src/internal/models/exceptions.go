package models

import (
	"errors"
	"fmt"
)

// Error kinds returned by core operations. Callers classify with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrRevokedCredential = errors.New("credential revoked")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnavailable       = errors.New("unavailable")
	ErrTooManyRequests   = errors.New("too many requests")
)

var (
	ErrLoadNotFound       = fmt.Errorf("load %w", ErrNotFound)
	ErrLoadConflict       = fmt.Errorf("load state changed, try again: %w", ErrConflict)
	ErrIllegalTransition  = fmt.Errorf("illegal status transition: %w", ErrValidation)
	ErrNotAssignedDriver  = fmt.Errorf("actor is not the assigned driver: %w", ErrForbidden)
	ErrNotLoadOwner       = fmt.Errorf("actor does not own this load: %w", ErrForbidden)
	ErrDriverBusy         = fmt.Errorf("driver already has an active load: %w", ErrConflict)
	ErrDriverUnavailable  = fmt.Errorf("driver is not available: %w", ErrConflict)
	ErrInsufficientVolume = fmt.Errorf("vehicle capacity below load weight: %w", ErrConflict)
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)
	ErrVehicleNotFound    = fmt.Errorf("vehicle %w", ErrNotFound)
	ErrNotOwnerRole       = fmt.Errorf("caller is not a fleet owner: %w", ErrForbidden)
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrDuplicateUser    = fmt.Errorf("email or phone already exists: %w", ErrConflict)
	ErrInvalidLogin     = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrInvalidToken     = fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)
	ErrUserSuspended    = fmt.Errorf("user suspended: %w", ErrForbidden)
	ErrInvalidParams    = fmt.Errorf("invalid parameters: %w", ErrValidation)
	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrRefreshReuse     = fmt.Errorf("refresh token reuse detected, reauthenticate: %w", ErrRevokedCredential)
	ErrZeroMatched      = errors.New("no record matched condition")
	ErrInvalidUserState = fmt.Errorf("invalid user status: %w", ErrValidation)
)

var (
	ErrRedisGet = fmt.Errorf("redis get error: %w", ErrUnavailable)
	ErrRedisSet = fmt.Errorf("redis set error: %w", ErrUnavailable)
)

var (
	ErrDatabaseQuery  = fmt.Errorf("database query error: %w", ErrUnavailable)
	ErrDatabaseInsert = fmt.Errorf("database insert error: %w", ErrUnavailable)
	ErrDatabaseUpdate = fmt.Errorf("database update error: %w", ErrUnavailable)
)

// Kind maps an error onto its taxonomy sentinel, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrForbidden,
		ErrConflict,
		ErrRevokedCredential,
		ErrUnauthorized,
		ErrTooManyRequests,
		ErrUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
