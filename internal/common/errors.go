// Package common defines shared constants and sentinel errors used across
// the bot server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Session lifecycle errors.
	ErrStatusConflict    = errors.New("session status changed concurrently")
	ErrInvalidTransition = errors.New("invalid session transition")

	// Input errors.
	ErrInvalidPayload = errors.New("invalid measurement payload")
	ErrInvalidKey     = errors.New("invalid encryption key")
)
