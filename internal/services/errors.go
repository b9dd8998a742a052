package services

import (
	"errors"
	"fmt"
)

// Every operation returns exactly one of these kinds on failure. Only
// ErrStorageUnavailable is retryable; the rest need a corrected request.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCode         = errors.New("license code not recognized")
	ErrAlreadyActivated    = errors.New("license already activated")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrWeakPassword        = errors.New("password too short")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrNotActivated        = errors.New("account not activated")
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrDeviceMismatch      = errors.New("session bound to a different device")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// storageErr wraps an unexpected persistence failure as the one transient,
// caller-retryable kind while keeping the cause in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
