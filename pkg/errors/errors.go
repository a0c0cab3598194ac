// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrFactorNotFound    = errors.New("risk factor not found")
	ErrUnitValueNotFound = errors.New("unit value not found for fiscal year")
	ErrActorRequired     = errors.New("actor id required")
	ErrInvalidRFC        = errors.New("invalid client rfc")
	ErrCatalogNotLoaded  = errors.New("compliance catalog not loaded")
)

// UnknownActivityError signals a catalog lookup for an activity type with no
// configuration. Callers must fail the operation rather than default.
type UnknownActivityError struct {
	Activity string
}

func (e *UnknownActivityError) Error() string {
	return fmt.Sprintf("unknown activity type: %s", e.Activity)
}

// TierConfigError signals a risk matrix whose tier table violates the
// catalog invariants (gaps, overlaps, or a score outside every range).
// Fatal to the calling operation; surfaced to catalog administrators.
type TierConfigError struct {
	Activity string
	Score    int
	Reason   string
}

func (e *TierConfigError) Error() string {
	return fmt.Sprintf("tier table for %s invalid at score %d: %s", e.Activity, e.Score, e.Reason)
}

// InvalidTransitionError rejects a status change that is not legal from the
// operation's current status.
type InvalidTransitionError struct {
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %s is not allowed from status %s", e.Action, e.From)
}

// ConflictError reports an optimistic concurrency failure: the persisted
// version no longer matches the version the caller read. Recoverable; the
// caller should re-fetch and retry.
type ConflictError struct {
	ID              string
	ExpectedVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation %s was modified concurrently (expected version %d)", e.ID, e.ExpectedVersion)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
