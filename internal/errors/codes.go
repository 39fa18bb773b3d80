// Package errors provides structured error handling for treewatch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Filesystem and watch errors
//   - 3XX: Daemon transport errors
//   - 4XX: Validation and request errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryFS indicates filesystem and watch attachment errors.
	CategoryFS Category = "FS"
	// CategoryDaemon indicates daemon connection errors.
	CategoryDaemon Category = "DAEMON"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the watch or process cannot continue.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Filesystem and watch errors (200-299)
	ErrCodePathNotFound       = "ERR_201_PATH_NOT_FOUND"
	ErrCodeNotADirectory      = "ERR_202_NOT_A_DIRECTORY"
	ErrCodePermissionDenied   = "ERR_203_PERMISSION_DENIED"
	ErrCodeWatchLimitExceeded = "ERR_204_WATCH_LIMIT_EXCEEDED"
	ErrCodeSourceFailure      = "ERR_205_SOURCE_FAILURE"
	ErrCodeStateCorrupt       = "ERR_206_STATE_CORRUPT"
	ErrCodeJournalFailed      = "ERR_207_JOURNAL_FAILED"

	// Daemon errors (300-399)
	ErrCodeDaemonUnavailable = "ERR_301_DAEMON_UNAVAILABLE"
	ErrCodeDaemonTimeout     = "ERR_302_DAEMON_TIMEOUT"
	ErrCodeDaemonRunning     = "ERR_303_DAEMON_ALREADY_RUNNING"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeNotWatching    = "ERR_402_NOT_WATCHING"
	ErrCodeInvalidPattern = "ERR_403_INVALID_PATTERN"
	ErrCodeInvalidPath    = "ERR_404_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeRegistryClosed = "ERR_502_REGISTRY_CLOSED"
)

// Sentinels for errors.Is. Matching is by code, so any *Error built with the
// same code satisfies errors.Is against these.
var (
	ErrPathNotFound       = &Error{Code: ErrCodePathNotFound}
	ErrNotADirectory      = &Error{Code: ErrCodeNotADirectory}
	ErrPermissionDenied   = &Error{Code: ErrCodePermissionDenied}
	ErrWatchLimitExceeded = &Error{Code: ErrCodeWatchLimitExceeded}
	ErrSourceFailure      = &Error{Code: ErrCodeSourceFailure}
	ErrNotWatching        = &Error{Code: ErrCodeNotWatching}
	ErrRegistryClosed     = &Error{Code: ErrCodeRegistryClosed}
	ErrDaemonUnavailable  = &Error{Code: ErrCodeDaemonUnavailable}
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_PATH_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryFS
	case '3':
		return CategoryDaemon
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeWatchLimitExceeded, ErrCodeSourceFailure:
		return SeverityFatal
	case ErrCodeNotWatching:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Watch failures are deliberately absent: a failed watch is not restarted.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeDaemonUnavailable, ErrCodeDaemonTimeout:
		return true
	default:
		return false
	}
}
