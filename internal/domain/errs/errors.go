// Package errs holds the pipeline's error taxonomy.
package errs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyTerminal = errors.New("signal already decided")
)

// TransientFetchError is a network, timeout, 5xx or rate-limit failure. Retry is safe.
type TransientFetchError struct {
	Op         string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient fetch %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("transient fetch %s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// DataInsufficientError means fewer rows than a computation needs.
type DataInsufficientError struct {
	Symbol   string
	Interval string
	Have     int
	Need     int
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("insufficient data for %s %s: have %d, need %d", e.Symbol, e.Interval, e.Have, e.Need)
}

// ValidationError is invalid input to a public operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// DuplicateConfirmationError is returned when the daily guard already holds the key.
type DuplicateConfirmationError struct {
	Symbol    string
	Direction string
}

func (e *DuplicateConfirmationError) Error() string {
	return fmt.Sprintf("%s %s already confirmed today", e.Symbol, e.Direction)
}

// InternalInvariantError reports a broken invariant. The owning loop restarts.
type InternalInvariantError struct {
	Component string
	Detail    string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Component, e.Detail)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Invariant(component, format string, args ...interface{}) error {
	return &InternalInvariantError{Component: component, Detail: fmt.Sprintf(format, args...)}
}

func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

func IsDataInsufficient(err error) bool {
	var d *DataInsufficientError
	return errors.As(err, &d)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsDuplicate(err error) bool {
	var d *DuplicateConfirmationError
	return errors.As(err, &d)
}

func IsInvariant(err error) bool {
	var i *InternalInvariantError
	return errors.As(err, &i)
}

// RetryAfter extracts the server-provided wait from a transient error, 0 when absent.
func RetryAfter(err error) time.Duration {
	var t *TransientFetchError
	if errors.As(err, &t) {
		return t.RetryAfter
	}
	return 0
}
