// Package syncerror defines the error taxonomy of the sync pipeline.
// Components wrap failures in these types so the orchestrator can decide
// what is retryable, what fails a single account, and what aborts the run.
package syncerror

import (
	"errors"
	"fmt"
)

// ValidationError reports a raw record that is missing a structurally
// required field or carries an unparsable value. The offending record is
// skipped and counted; it never fails an account's sync.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid record: field %s=%q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid record: field %s: %s", e.Field, e.Reason)
}

// AuthenticationError reports rejected credentials or an MFA failure at the
// source boundary. Fatal for that account's sync attempt, never retried.
type AuthenticationError struct {
	Institution string
	Err         error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Institution, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transient connectivity failure at the source
// boundary. Retried with backoff up to the configured attempt budget.
type NetworkError struct {
	Institution string
	Err         error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Institution, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DataExtractionError reports that a source could not extract expected data
// even though it authenticated and connected. Treated as transient unless
// marked Permanent.
type DataExtractionError struct {
	Institution string
	Field       string
	Permanent   bool
	Err         error
}

func (e *DataExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: extraction failed for %s: %v", e.Institution, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: extraction failed: %v", e.Institution, e.Err)
}

func (e *DataExtractionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsSourceFailure reports whether err originated at the source boundary or in
// source-supplied data, as opposed to the store. Source failures fail one
// sync attempt; only store failures abort a coordinated run.
func IsSourceFailure(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var de *DataExtractionError
	return errors.As(err, &de)
}

// IsTransient reports whether err should be retried at the orchestrator
// boundary: network failures and non-permanent extraction failures qualify,
// authentication failures never do.
func IsTransient(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var de *DataExtractionError
	if errors.As(err, &de) {
		return !de.Permanent
	}
	return false
}
