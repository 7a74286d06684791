package ipdr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the analytics core.
var (
	// ErrSubjectNotFound means the subject identity itself is unknown to the
	// external record store. A subject with zero records is not an error.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrMalformedRecord marks a session record that fails structural checks.
	// Policy is skip-and-continue: the record is excluded from aggregation
	// and a skip count is reported alongside the result.
	ErrMalformedRecord = errors.New("malformed session record")

	// ErrInvalidConfig marks a misconfigured threshold or limit. Fatal at
	// construction, never silently substituted.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RecordError describes why a specific session record was rejected.
type RecordError struct {
	Subject SubjectKey
	Field   string
	Reason  string
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("malformed record for subject %s (%s): %s", e.Subject, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record (%s): %s", e.Field, e.Reason)
}

// Unwrap ties RecordError into the ErrMalformedRecord chain.
func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

func malformed(subject SubjectKey, field, reason string) error {
	return &RecordError{Subject: subject, Field: field, Reason: reason}
}
