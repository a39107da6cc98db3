// Package common defines shared constants and sentinel errors used across
// CryptoQuest components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("not found")

	// Request-level errors (reported to the caller, nothing mutated).
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrAlreadyIssued marks a repeated one-time issuance. Callers treat it
	// as idempotent success, not a failure.
	ErrAlreadyIssued = errors.New("already issued")
)
