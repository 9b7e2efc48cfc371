// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes failures worth retrying from failures that are not.
type ErrorKind string

const (
	// KindTransient covers timeouts, 5xx responses, and backend rate-limit
	// rejections. Retried with backoff.
	KindTransient ErrorKind = "transient"

	// KindPermanent covers malformed input, auth failures, and schema
	// violations in the backend response. Never retried.
	KindPermanent ErrorKind = "permanent"
)

// ExtractionError wraps a backend failure with its retry classification.
type ExtractionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction error: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable extraction error.
func Transient(err error) *ExtractionError {
	return &ExtractionError{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable extraction error.
func Permanent(err error) *ExtractionError {
	return &ExtractionError{Kind: KindPermanent, Err: err}
}

// IsPermanent reports whether err is classified as permanent. Unclassified
// errors are treated as transient: a failure of unknown cause gets the
// benefit of a retry.
func IsPermanent(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindPermanent
}
