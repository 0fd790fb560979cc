package aspcheck

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an error
type ErrorType string

const (
	// ErrorTypeConfig represents configuration-related errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFS represents file system-related errors
	ErrorTypeFS ErrorType = "filesystem"
	// ErrorTypeEncoding represents undecodable source bytes
	ErrorTypeEncoding ErrorType = "encoding"
	// ErrorTypeParse represents grammar mismatches
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
)

var (
	// ErrEntryNotFound is returned by a Store when no entry exists for a key.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrCorruptEntry is returned when a persisted entry cannot be decoded.
	ErrCorruptEntry = errors.New("cached entry is corrupt")
	// ErrNoInput is returned when a run has nothing to check.
	ErrNoInput = errors.New("no input files")
	// ErrDiagnosticsFound signals that at least one error diagnostic was reported.
	ErrDiagnosticsFound = errors.New("error diagnostics found")
)

// AppError is a custom error type that provides context about the error
type AppError struct {
	Type    ErrorType // The category of the error
	Message string    // A human-readable error message
	Err     error     // The underlying error, if any
	File    string    // The file related to the error, if applicable
	Details string    // Additional details about the error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithFile adds file information to the error
func (e *AppError) WithFile(file string) *AppError {
	e.File = file
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func newAppError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, err error) *AppError {
	return newAppError(ErrorTypeConfig, message, err)
}

// NewFSError creates a new file system error
func NewFSError(message string, err error) *AppError {
	return newAppError(ErrorTypeFS, message, err)
}

// NewEncodingError creates a new encoding error
func NewEncodingError(message string, err error) *AppError {
	return newAppError(ErrorTypeEncoding, message, err)
}

// NewParseError creates a new parsing error
func NewParseError(message string, err error) *AppError {
	return newAppError(ErrorTypeParse, message, err)
}

// NewCacheError creates a new cache error
func NewCacheError(message string, err error) *AppError {
	return newAppError(ErrorTypeCache, message, err)
}

// GetErrorInfo extracts the first AppError in err's chain.
func GetErrorInfo(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
