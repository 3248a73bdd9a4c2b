package store

import (
	"errors"
)

// ErrorClass partitions adapter failures by whether a retry can ever succeed.
type ErrorClass int

const (
	// ClassTransient covers network failures, timeouts and other conditions
	// that may clear on their own. Transient secondary failures are recorded
	// for compensation replay.
	ClassTransient ErrorClass = iota

	// ClassPermanent covers validation and constraint violations. Replaying
	// the same write will fail the same way; these surface as capped-out
	// compensation records needing manual reconciliation.
	ClassPermanent
)

func (c ErrorClass) String() string {
	if c == ClassPermanent {
		return "permanent"
	}
	return "transient"
}

type classifiedError struct {
	class ErrorClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient wraps err as retryable. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassTransient, err: err}
}

// Permanent wraps err as non-retryable. Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassPermanent, err: err}
}

// ClassOf reports the classification of err. Unclassified errors default to
// transient so that an adapter which forgot to classify still gets its
// failures retried; permanence must be stated explicitly.
func ClassOf(err error) ErrorClass {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	return ClassTransient
}
