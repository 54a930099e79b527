// Package errors provides the standardized error taxonomy for generation runs,
// archive building and handoff.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingCredential       ErrorCode = "MISSING_CREDENTIAL"
	ErrCodeCredentialPersistFailed ErrorCode = "CREDENTIAL_PERSIST_FAILED"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"

	ErrCodeRequestFailed    ErrorCode = "REQUEST_FAILED"
	ErrCodeRequestCancelled ErrorCode = "REQUEST_CANCELLED"

	ErrCodeEmptyArchive        ErrorCode = "EMPTY_ARCHIVE"
	ErrCodeSerializationFailed ErrorCode = "SERIALIZATION_FAILED"

	ErrCodeSaveFailed              ErrorCode = "SAVE_FAILED"
	ErrCodeNotificationUnconfirmed ErrorCode = "NOTIFICATION_UNCONFIRMED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. A *StandardError matches the sentinel of its code.
var (
	ErrMissingCredential       = stderrors.New(string(ErrCodeMissingCredential))
	ErrCredentialPersistFailed = stderrors.New(string(ErrCodeCredentialPersistFailed))
	ErrInvalidInput            = stderrors.New(string(ErrCodeInvalidInput))
	ErrRequestFailed           = stderrors.New(string(ErrCodeRequestFailed))
	ErrRequestCancelled        = stderrors.New(string(ErrCodeRequestCancelled))
	ErrEmptyArchive            = stderrors.New(string(ErrCodeEmptyArchive))
	ErrSerializationFailed     = stderrors.New(string(ErrCodeSerializationFailed))
	ErrSaveFailed              = stderrors.New(string(ErrCodeSaveFailed))
	ErrNotificationUnconfirmed = stderrors.New(string(ErrCodeNotificationUnconfirmed))
)

var sentinels = map[ErrorCode]error{
	ErrCodeMissingCredential:       ErrMissingCredential,
	ErrCodeCredentialPersistFailed: ErrCredentialPersistFailed,
	ErrCodeInvalidInput:            ErrInvalidInput,
	ErrCodeRequestFailed:           ErrRequestFailed,
	ErrCodeRequestCancelled:        ErrRequestCancelled,
	ErrCodeEmptyArchive:            ErrEmptyArchive,
	ErrCodeSerializationFailed:     ErrSerializationFailed,
	ErrCodeSaveFailed:              ErrSaveFailed,
	ErrCodeNotificationUnconfirmed: ErrNotificationUnconfirmed,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is the sentinel for e's code.
func (e *StandardError) Is(target error) bool {
	if s, ok := sentinels[e.Code]; ok && s == target {
		return true
	}
	return false
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewMissingCredentialError is returned before any network call when no API key is configured.
func NewMissingCredentialError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingCredential,
		Message:   "No API key configured",
		Details:   "set one with `facecast key set` or FACECAST_API_KEY",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialPersistFailedError wraps a persistence backend failure.
func NewCredentialPersistFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialPersistFailed,
		Message:   "Credential storage error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidInputError creates a non-retryable validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid run input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestFailedError records a single item's remote call failure.
func NewRequestFailedError(label string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestFailed,
		Message:   "Generation request failed",
		Details:   fmt.Sprintf("label: %s, error: %s", label, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"label": label},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRequestCancelledError records an item that did not settle before cancellation.
func NewRequestCancelledError(label string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestCancelled,
		Message:   "Generation request cancelled",
		Details:   fmt.Sprintf("label: %s, error: %s", label, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"label": label},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewEmptyArchiveError is returned when no successful results are available to package.
func NewEmptyArchiveError(total int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyArchive,
		Message:   "No successful results to archive",
		Details:   fmt.Sprintf("results: %d, successes: 0", total),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSerializationFailedError wraps an archive encoding failure.
func NewSerializationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSerializationFailed,
		Message:   "Archive serialization failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSaveFailedError wraps a failure to persist the archive locally.
func NewSaveFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSaveFailed,
		Message:   "Saving the archive failed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationUnconfirmedError describes an advisory handoff failure. It is
// carried in the handoff receipt, never returned from Deliver.
func NewNotificationUnconfirmedError(uri string, err error) *StandardError {
	details := fmt.Sprintf("uri: %s", uri)
	if err != nil {
		details = fmt.Sprintf("uri: %s, error: %s", uri, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeNotificationUnconfirmed,
		Message:   "External application launch could not be confirmed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Helpers
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether a code should abort the step that produced it.
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrCodeRequestFailed, ErrCodeRequestCancelled, ErrCodeNotificationUnconfirmed:
		return false
	default:
		return true
	}
}
