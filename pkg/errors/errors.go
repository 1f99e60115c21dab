package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Per-entry failures. The traversal engine logs them and skips the entry.
	ErrorTypeTrigger         ErrorType = "trigger"
	ErrorTypeDownloadTimeout ErrorType = "download_timeout"
	ErrorTypeRename          ErrorType = "rename"

	// Fatal: the run cannot continue without a catalog snapshot.
	ErrorTypeCatalogUnavailable ErrorType = "catalog_unavailable"

	// Transport errors raised by the HTTP catalog client
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// NoPosition marks an error that is not bound to a catalog entry
const NoPosition = -1

// Error represents a typed harvester error
type Error struct {
	Type     ErrorType
	Message  string
	Code     int
	Position int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Position != NoPosition {
		msg = fmt.Sprintf("%s at position %d", msg, e.Position)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type that is not bound to an entry
func New(errorType ErrorType, message string, code int) *Error {
	return &Error{Type: errorType, Message: message, Code: code, Position: NoPosition}
}

// NewTriggerError reports that the catalog surface could not start a download
func NewTriggerError(position int, err error) *Error {
	return &Error{
		Type:     ErrorTypeTrigger,
		Message:  "could not trigger download",
		Position: position,
		Err:      err,
	}
}

// NewDownloadTimeout reports that no file settled in dir within maxWait
func NewDownloadTimeout(dir string, maxWait time.Duration) *Error {
	return &Error{
		Type:     ErrorTypeDownloadTimeout,
		Message:  fmt.Sprintf("no file settled in %s within %s", dir, maxWait),
		Position: NoPosition,
	}
}

// NewRenameError reports that a settled file could not be moved to its composed name
func NewRenameError(from, to string, err error) *Error {
	return &Error{
		Type:     ErrorTypeRename,
		Message:  fmt.Sprintf("could not rename %q to %q", from, to),
		Position: NoPosition,
		Err:      err,
	}
}

// NewCatalogUnavailable reports that no catalog snapshot could be produced
func NewCatalogUnavailable(op string, err error) *Error {
	return &Error{
		Type:     ErrorTypeCatalogUnavailable,
		Message:  op,
		Position: NoPosition,
		Err:      err,
	}
}

// WithPosition returns a copy of e bound to a catalog position
func (e *Error) WithPosition(position int) *Error {
	cp := *e
	cp.Position = position
	return &cp
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an *Error of the given type
func IsType(err error, errorType ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return IsType(err, ErrorTypeCatalogUnavailable)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps an HTTP status to an error type
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
