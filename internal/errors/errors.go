package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for the workbench engine.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_201_ARTIFACT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Project, Storage, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work against the sentinel values below.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrNotOpen            = &Error{Code: ErrCodeNotOpen}
	ErrNotFound           = &Error{Code: ErrCodeNotFound}
	ErrStorageIO          = &Error{Code: ErrCodeStorageIO}
	ErrMirrorWrite        = &Error{Code: ErrCodeMirrorWrite}
	ErrIndexUninitialized = &Error{Code: ErrCodeIndexUninitialized}
	ErrParse              = &Error{Code: ErrCodeParse}
	ErrIndexLocked        = &Error{Code: ErrCodeIndexLocked}
	ErrInvalidInput       = &Error{Code: ErrCodeInvalidInput}
)

// NotOpenError reports that no project is currently active.
func NotOpenError() *Error {
	return New(ErrCodeNotOpen, "no project open", nil).
		WithSuggestion("Open a project directory or run 'baw init'")
}

// NotFoundError reports a missing artifact document.
func NotFoundError(id string, cause error) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("artifact %s not found", id), cause).
		WithDetail("id", id)
}

// StorageError creates a file system or index I/O error.
func StorageError(message string, cause error) *Error {
	return New(ErrCodeStorageIO, message, cause)
}

// MirrorError reports a failed mirror write after the document was written.
func MirrorError(id string, cause error) *Error {
	return New(ErrCodeMirrorWrite, fmt.Sprintf("mirror for %s not written", id), cause).
		WithDetail("id", id)
}

// UninitializedError reports an index operation before Initialize.
func UninitializedError(op string) *Error {
	return New(ErrCodeIndexUninitialized, fmt.Sprintf("index not initialized: %s", op), nil).
		WithDetail("operation", op)
}

// ParseError reports a malformed artifact document.
func ParseError(path string, cause error) *Error {
	return New(ErrCodeParse, fmt.Sprintf("cannot parse %s", path), cause).
		WithDetail("path", path)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var we *Error
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	we, ok := As(err)
	return ok && we.Retryable
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	we, ok := As(err)
	return ok && we.Severity == SeverityFatal
}

// GetCode extracts the error code from an Error anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if we, ok := As(err); ok {
		return we.Code
	}
	return ""
}

// GetCategory extracts the category from an Error anywhere in the chain.
func GetCategory(err error) Category {
	if we, ok := As(err); ok {
		return we.Category
	}
	return ""
}
