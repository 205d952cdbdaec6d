// Package errors provides standardized error handling for the notification pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Error Taxonomy
// ==========================

// ErrorKind represents standardized internal error kinds.
type ErrorKind string

const (
	// Token rejected locally, before any provider call. Not retried and
	// not deactivated: the token was never valid to begin with.
	KindInvalidToken ErrorKind = "INVALID_TOKEN"

	// Provider rejected the token or topic permanently. The device token
	// must be deactivated so future passes skip it.
	KindPermanentRejection ErrorKind = "PERMANENT_PROVIDER_REJECTION"

	// Provider was overloaded, timed out, or failed internally. Eligible
	// for retry with backoff; the token stays active and no rate budget
	// is consumed.
	KindTransientFailure ErrorKind = "TRANSIENT_PROVIDER_FAILURE"

	// Serialized payload exceeded the provider size ceiling even after
	// trimming. Never transmitted.
	KindPayloadTooLarge ErrorKind = "PAYLOAD_TOO_LARGE"

	// Local gating decisions. Counted as skips, never as failures.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	KindQuietHours  ErrorKind = "QUIET_HOURS"

	// Job store or device store unreachable at pass start. Fatal to the
	// whole pass; committed records are never rolled back.
	KindCollaboratorUnavailable ErrorKind = "COLLABORATOR_UNAVAILABLE"
)

// PushError represents a structured pipeline error.
type PushError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Retryable  bool      `json:"retryable"`
	StatusCode int       `json:"statusCode,omitempty"` // provider HTTP status, 0 for local errors
	Timestamp  time.Time `json:"timestamp"`
}

func (e *PushError) Error() string {
	return fmt.Sprintf("PushError[%s]: %s", e.Kind, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidTokenError creates a non-retryable local token rejection.
func NewInvalidTokenError(details string) *PushError {
	return &PushError{
		Kind:      KindInvalidToken,
		Message:   "Device token failed local validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPermanentRejectionError creates a non-retryable provider rejection.
func NewPermanentRejectionError(reason string, statusCode int) *PushError {
	return &PushError{
		Kind:       KindPermanentRejection,
		Message:    "Provider rejected the device token",
		Details:    fmt.Sprintf("reason: %s", reason),
		Retryable:  false,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransientFailureError creates a retryable provider failure.
func NewTransientFailureError(reason string, statusCode int) *PushError {
	return &PushError{
		Kind:       KindTransientFailure,
		Message:    "Provider delivery failed transiently",
		Details:    fmt.Sprintf("reason: %s", reason),
		Retryable:  true,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransportError wraps a network-level send failure as transient.
func NewTransportError(err error) *PushError {
	return &PushError{
		Kind:      KindTransientFailure,
		Message:   "Provider transport error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadTooLargeError creates a non-retryable oversized payload error.
func NewPayloadTooLargeError(size, ceiling int) *PushError {
	return &PushError{
		Kind:      KindPayloadTooLarge,
		Message:   "Serialized payload exceeds the provider size ceiling",
		Details:   fmt.Sprintf("size: %d, ceiling: %d", size, ceiling),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a local rate-limit skip.
func NewRateLimitedError(details string) *PushError {
	return &PushError{
		Kind:      KindRateLimited,
		Message:   "Device reached its notification rate limit",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuietHoursError creates a local quiet-hours skip.
func NewQuietHoursError(hour int) *PushError {
	return &PushError{
		Kind:      KindQuietHours,
		Message:   "Delivery suppressed during quiet hours",
		Details:   fmt.Sprintf("currentHourUTC: %d", hour),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCollaboratorUnavailableError creates a fatal pass error.
func NewCollaboratorUnavailableError(collaborator string, err error) *PushError {
	return &PushError{
		Kind:      KindCollaboratorUnavailable,
		Message:   fmt.Sprintf("Collaborator '%s' unavailable", collaborator),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Provider Response Classification
// ==========================

// Provider rejection reasons that permanently invalidate the token or
// the (token, topic) pairing. Matches the APNs reason strings.
var permanentReasons = map[string]bool{
	"BadDeviceToken":            true,
	"Unregistered":              true,
	"DeviceTokenNotForTopic":    true,
	"TopicDisallowed":           true,
	"MissingTopic":              true,
	"BadCertificate":            true,
	"BadCertificateEnvironment": true,
	"Forbidden":                 true,
	"InvalidProviderToken":      true,
	"MissingProviderToken":      true,
}

// ClassifyResponse maps a provider (statusCode, reason) pair into the
// error taxonomy. A 2xx status must be handled by the caller; passing
// one here is a programming error and yields a transient classification.
func ClassifyResponse(statusCode int, reason string) *PushError {
	switch {
	case statusCode == 410:
		return NewPermanentRejectionError(reason, statusCode)
	case statusCode == 413:
		return &PushError{
			Kind:       KindPayloadTooLarge,
			Message:    "Provider rejected the payload as too large",
			Details:    fmt.Sprintf("reason: %s", reason),
			Retryable:  false,
			StatusCode: statusCode,
			Timestamp:  time.Now().UTC(),
		}
	case statusCode == 429:
		return NewTransientFailureError(reason, statusCode)
	case statusCode >= 500:
		return NewTransientFailureError(reason, statusCode)
	case permanentReasons[reason]:
		return NewPermanentRejectionError(reason, statusCode)
	default:
		return NewTransientFailureError(reason, statusCode)
	}
}

// ==========================
// 4. Policy Helpers
// ==========================

// GetRetryCount returns the recommended retry count per error kind.
func GetRetryCount(kind ErrorKind) int {
	switch kind {
	case KindTransientFailure, KindCollaboratorUnavailable:
		return 3
	default:
		return 0 // local skips and permanent failures: no retry
	}
}

// ShouldDeactivate reports whether the device token must be flagged
// inactive after an error of this kind.
func ShouldDeactivate(kind ErrorKind) bool {
	return kind == KindPermanentRejection
}

// IsSkip reports whether the kind is a local gating decision rather
// than a delivery failure.
func IsSkip(kind ErrorKind) bool {
	return kind == KindRateLimited || kind == KindQuietHours
}

// KindOf extracts the ErrorKind from any error in the chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PushError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
