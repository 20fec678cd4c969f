package search

import (
	"errors"
	"fmt"
	"time"
)

// Failure classes surfaced across the pipeline.
var (
	ErrAdmissionDenied    = errors.New("too many requests")
	ErrBackendUnavailable = errors.New("search backend unavailable")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrInvalidInput       = errors.New("invalid input")
)

// AdmissionError reports a throttled identity and when it may retry.
type AdmissionError struct {
	Identity   string
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("too many requests from %s, retry after %s", e.Identity, e.RetryAfter.Round(time.Second))
}

// Unwrap ties the error to ErrAdmissionDenied.
func (e *AdmissionError) Unwrap() error {
	return ErrAdmissionDenied
}

// InvalidInputError names the offending parameter.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap ties the error to ErrInvalidInput.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidInput builds an InvalidInputError.
func InvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// TranscriptErrorKind distinguishes why a transcript could not be returned.
type TranscriptErrorKind string

// Transcript failure kinds, surfaced verbatim to callers.
const (
	TranscriptDisabled    TranscriptErrorKind = "disabled"
	TranscriptNotFound    TranscriptErrorKind = "not_found"
	TranscriptUnavailable TranscriptErrorKind = "unavailable"
)

// TranscriptError is returned by Transcripts implementations.
type TranscriptError struct {
	Kind    TranscriptErrorKind
	VideoID string
	Detail  string
}

func (e *TranscriptError) Error() string {
	msg := fmt.Sprintf("transcript %s for video %s", e.Kind, e.VideoID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
