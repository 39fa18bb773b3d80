package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for treewatch.
// It carries enough context for logging, CLI output and the daemon wire format.
type Error struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category.
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

// Is matches on code so errors.Is works against the package sentinels.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
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

// Wrap creates an Error from an existing error, reusing its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// PathNotFound reports a watch root that does not exist.
func PathNotFound(path string, cause error) *Error {
	return New(ErrCodePathNotFound, "path not found: "+path, cause).
		WithDetail("path", path)
}

// NotADirectory reports a watch root that exists but is not a directory.
func NotADirectory(path string) *Error {
	return New(ErrCodeNotADirectory, "not a directory: "+path, nil).
		WithDetail("path", path).
		WithSuggestion("watch the parent directory and filter by name instead")
}

// PermissionDenied reports a watch root the process may not read.
func PermissionDenied(path string, cause error) *Error {
	return New(ErrCodePermissionDenied, "permission denied: "+path, cause).
		WithDetail("path", path)
}

// WatchLimitExceeded reports exhaustion of OS watch handles or descriptors.
func WatchLimitExceeded(path string, cause error) *Error {
	return New(ErrCodeWatchLimitExceeded, "watch limit exceeded while watching "+path, cause).
		WithDetail("path", path).
		WithSuggestion("raise fs.inotify.max_user_watches or the open file limit, or use the polling backend")
}

// SourceFailure reports that the event source for a watch broke.
func SourceFailure(path string, cause error) *Error {
	msg := "event source failed for " + path
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return New(ErrCodeSourceFailure, msg, cause).WithDetail("path", path)
}

// NotWatching reports a Stop for a path with no live watch.
func NotWatching(path string) *Error {
	return New(ErrCodeNotWatching, "not watching: "+path, nil).WithDetail("path", path)
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

// IsRetryable reports whether err (or anything it wraps) is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not an *Error.
func GetCode(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not an *Error.
func GetCategory(err error) Category {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category
	}
	return ""
}

// As is errors.As for callers that import this package under the errors name.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is for callers that import this package under the errors name.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
