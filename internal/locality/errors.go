package locality

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrBoundaryUnavailable means no reference polygon is stored. It is a data
	// integrity problem, never an "outside the territory" answer.
	ErrBoundaryUnavailable = errors.New("reference boundary polygon unavailable")

	// ErrNormalizationInProgress is returned when another normalization pass holds the lock.
	ErrNormalizationInProgress = errors.New("locality normalization already running")

	// ErrRecordChanged is recorded when an owning record was modified between
	// the normalizer's read and its write.
	ErrRecordChanged = errors.New("record changed since it was read")
)

// ValidationError reports malformed input. Nothing is applied when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a failure of the persistent store. Callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure looks like a connectivity or
// contention problem rather than a bad statement.
func (e *StoreError) Transient() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return true
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "53": // insufficient resources
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(e.Err) || pgconn.Timeout(e.Err)
}

// wrapStore turns a raw driver error into a StoreError. Errors that already
// belong to the taxonomy pass through untouched.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	var ve *ValidationError
	if errors.As(err, &se) || errors.As(err, &ve) ||
		errors.Is(err, ErrBoundaryUnavailable) || errors.Is(err, ErrNormalizationInProgress) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RecordFailure is one owning record the normalizer could not rewrite.
type RecordFailure struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Err    error  `json:"-"`
	Reason string `json:"error"`
}

// PartialBatchFailure lists the records a normalization pass could not rewrite.
// It is informational: the pass itself completed.
type PartialBatchFailure struct {
	Failures []RecordFailure
}

func (e *PartialBatchFailure) Error() string {
	return strconv.Itoa(len(e.Failures)) + " locality record(s) failed to normalize"
}

// IDs returns the identifiers of the failed records in scan order.
func (e *PartialBatchFailure) IDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}

func quote(s string) string {
	return strconv.Quote(s)
}
