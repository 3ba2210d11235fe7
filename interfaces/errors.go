package interfaces

import (
	"errors"
	"fmt"
)

// Sentinel errors for the synchronous validation gates. All of them abort a
// request before anything observable is committed to the platform.
var (
	// ErrUnauthorized is returned when a caller other than the factory's own
	// identity attempts to replace the stored payload.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrEmptyPayload is returned when a payload replacement carries no bytes.
	ErrEmptyPayload = errors.New("payload replacement with no bytes")

	// ErrInvalidName is returned when a derived child context name fails the
	// platform naming grammar.
	ErrInvalidName = errors.New("invalid context name")

	// ErrBatchFault marks a platform-level failure of a dispatched batch. It
	// is never raised synchronously; it is only observable through a batch
	// receipt during reconciliation.
	ErrBatchFault = errors.New("batch execution fault")

	// ErrPayloadNotFound is returned by payload backends when no payload has
	// been persisted at the configured location yet.
	ErrPayloadNotFound = errors.New("no payload stored at location")
)

// InsufficientFundsError is returned when the funds attached to a provision
// request do not cover the storage deposit for the current payload. It
// carries the computed requirement for diagnostics.
type InsufficientFundsError struct {
	Required Funds
	Attached Funds
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds attached: required %s, attached %s", e.Required, e.Attached)
}
