package chat

import (
	"errors"
	"fmt"
)

// Error taxonomy for relay operations. Callers classify failures with
// errors.Is; the concrete cause stays wrapped underneath.
var (
	// ErrValidation marks malformed or missing input. Rejected before any
	// side effect and reported to the sender only.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks an unavailable store or a failed write. The operation
	// aborts and nothing is delivered.
	ErrStorage = errors.New("storage failure")

	// ErrUnknownTarget marks a referenced chat or user that does not exist.
	// Delivery becomes a no-op rather than a fatal error.
	ErrUnknownTarget = errors.New("unknown target")
)

// ValidationError wraps cause as a validation failure.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// StorageError wraps cause as a storage failure.
func StorageError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, cause)
}

// UnknownTargetError wraps a missing chat or user reference.
func UnknownTargetError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownTarget, kind, id)
}
