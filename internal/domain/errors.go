package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidState rejects a payment confirmation for an invoice that is
	// no longer pending; a duplicate webhook becomes a no-op error instead
	// of double-processing.
	ErrInvalidState = errors.New("invoice is not pending")
)

// ConflictError reports a bookable that is unavailable for the requested
// range. The conflicting entity is always named, never silently dropped.
type ConflictError struct {
	Ref  BookableRef
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is not available for the requested dates", e.Ref, e.Name)
}

// GatewayError wraps a payment-gateway or persistence failure. The cause is
// for server-side logs only; callers see the generic message.
type GatewayError struct {
	Cause error
}

func (e *GatewayError) Error() string { return "payment failed, try again" }
func (e *GatewayError) Unwrap() error { return e.Cause }
