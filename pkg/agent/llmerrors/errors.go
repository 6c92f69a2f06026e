// Package llmerrors provides structured error classification and retry configuration for LLM API interactions.
package llmerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType represents different categories of LLM errors for retry logic.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse

	// Non-retryable error types.

	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// RetryConfig defines exponential backoff configuration for each error type.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfigs provides default retry configurations for each error type.
//
//nolint:gochecknoglobals // Configuration map - acceptable for package defaults
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeEmptyResponse: {MaxRetries: 3, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2.0},
	ErrorTypeRateLimit:     {MaxRetries: 5, InitialDelay: 1 * time.Second, MaxDelay: 60 * time.Second, BackoffFactor: 2.0},
	ErrorTypeTransient:     {MaxRetries: 4, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, BackoffFactor: 2.0},
	ErrorTypeAuth:          {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeBadPrompt:     {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeUnknown:       {MaxRetries: 1, InitialDelay: 1 * time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2.0},
}

// Error represents a classified LLM error with retry metadata.
type Error struct {
	Err        error
	Message    string
	Type       ErrorType
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether this error type should be retried.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt:
		return false
	default:
		return true
	}
}

// GetRetryConfig returns the retry configuration for this error type.
func (e *Error) GetRetryConfig() RetryConfig {
	if config, exists := DefaultRetryConfigs[e.Type]; exists {
		return config
	}
	return DefaultRetryConfigs[ErrorTypeUnknown]
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified LLM error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new classified LLM error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// ClassifyHTTPStatus maps an HTTP status code from a provider response to an error type.
func ClassifyHTTPStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusBadRequest || statusCode == http.StatusRequestEntityTooLarge:
		return ErrorTypeBadPrompt
	case statusCode >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}

// Classify wraps a raw provider error into a classified Error based on its
// message when no status code is available.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "429"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, err.Error())
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key") || strings.Contains(msg, "403"):
		return NewErrorWithCause(ErrorTypeAuth, err, err.Error())
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "503") || strings.Contains(msg, "overloaded"):
		return NewErrorWithCause(ErrorTypeTransient, err, err.Error())
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, err.Error())
	}
}
