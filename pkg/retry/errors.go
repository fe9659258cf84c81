package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"

	"gorm.io/gorm"
)

// Class classifies a store error for retry purposes.
type Class int

const (
	// Transient errors (network faults, timeouts, temporary unavailability)
	// are worth retrying.
	Transient Class = iota
	// Permanent errors (missing rows, constraint violations, rejected
	// transitions) fail the same way every time; retrying wastes the budget.
	Permanent
)

// ExhaustedError is returned when every attempt of an operation failed with a
// transient error. It carries the operation label and the last underlying error.
type ExhaustedError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// MarkPermanent tags an error so Do returns it immediately instead of retrying.
// Used by repositories for contract violations the store reports as zero
// affected rows (rejected CAS transitions, duplicate natural keys).
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Classify decides whether an error is worth retrying. Unknown errors default
// to Transient, preserving the retry-everything behavior for faults the
// classifier has never seen.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}

	var pe *permanentError
	if errors.As(err, &pe) {
		return Permanent
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, context.Canceled):
		return Permanent
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, context.DeadlineExceeded):
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	return Transient
}
