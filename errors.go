package relidx

import (
	"errors"
	"fmt"

	"github.com/tidalstore/relidx/bwtree"
)

var (
	// ErrDuplicateKey is returned when an insert would violate a unique or
	// primary-key constraint. The index is left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrClosed is returned for operations on a closed index.
	ErrClosed = errors.New("index closed")

	// ErrResourceExhausted is returned when the resource controller denies
	// memory for the operation. The index is left in its last consistent
	// state.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrNilTuple is returned when a nil tuple is passed to an operation that
	// needs one.
	ErrNilTuple = errors.New("nil tuple")
)

// ErrInvalidMetadata indicates index metadata that cannot produce a working
// index.
type ErrInvalidMetadata struct {
	Reason string
	cause  error
}

func (e *ErrInvalidMetadata) Error() string {
	return fmt.Sprintf("invalid index metadata: %s", e.Reason)
}

func (e *ErrInvalidMetadata) Unwrap() error { return e.cause }

// translateError normalizes errors from the tree layer into the facade's
// vocabulary while keeping the original cause unwrappable.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bwtree.ErrDuplicateKey) {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	if errors.Is(err, bwtree.ErrResourceExhausted) {
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	if errors.Is(err, bwtree.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
