// Package errors provides the error code taxonomy shared across WordStash.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a class of failure with defined handling rules.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"

	// Network errors are the only retryable kind.
	ErrNetwork ErrorCode = "NETWORK_ERROR"

	// Structural errors mean a snapshot/backup document failed shape
	// validation; the import is aborted before any write.
	ErrStructural ErrorCode = "STRUCTURAL_VALIDATION"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error

	// Set when Code == ErrNetwork. A StatusCode of 0 means the request
	// failed before a response arrived (transport error).
	StatusCode int
	URL        string

	// Set when Code == ErrStructural: one entry per field-level problem.
	Issues []string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if len(e.Issues) > 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, strings.Join(e.Issues, "; "))
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Network creates a NETWORK_ERROR carrying the status code and URL of
// the failed request.
func Network(statusCode int, url string, err error) *AppError {
	msg := fmt.Sprintf("request to %s failed", url)
	if statusCode > 0 {
		msg = fmt.Sprintf("request to %s returned status %d", url, statusCode)
	}
	return &AppError{
		Code:       ErrNetwork,
		Message:    msg,
		Err:        err,
		StatusCode: statusCode,
		URL:        url,
	}
}

// Structural creates a STRUCTURAL_VALIDATION error from a list of
// field-level problems.
func Structural(issues []string) *AppError {
	return &AppError{
		Code:    ErrStructural,
		Message: fmt.Sprintf("document failed validation with %d problem(s)", len(issues)),
		Issues:  issues,
	}
}

// Is checks whether err, anywhere in its chain, carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Retryable reports whether err is worth retrying. Only transient
// network failures qualify: transport errors, timeouts, rate limiting
// and server-side status codes. Validation and not-found failures are
// never retryable.
func Retryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	if appErr.Code != ErrNetwork {
		return false
	}
	switch {
	case appErr.StatusCode == 0:
		return true // transport failure, no response
	case appErr.StatusCode == 408 || appErr.StatusCode == 429:
		return true
	case appErr.StatusCode >= 500:
		return true
	}
	return false
}
