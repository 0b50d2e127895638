package errs

import (
	"errors"
	"fmt"
	"time"
)

// Upstream service names carried by ExternalAPIError.
const (
	ServiceMarketData = "market_data"
	ServiceCompletion = "completion"
)

// DomainError is the catch-all for failures the service itself classifies.
type DomainError struct {
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string { return e.Message }

func NewDomainError(msg string, details map[string]any) *DomainError {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{Message: msg, Details: details}
}

// ExternalAPIError is an upstream failure after retries are exhausted.
// StatusCode is 0 when no HTTP response was received.
type ExternalAPIError struct {
	Service    string
	Message    string
	StatusCode int
	Err        error
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Service, e.Message)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

func NewExternalAPIError(service, msg string, status int, cause error) *ExternalAPIError {
	return &ExternalAPIError{Service: service, Message: msg, StatusCode: status, Err: cause}
}

// ValidationError is malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "rate limit exceeded"
}

// PredictionFailed wraps whichever step broke a single prediction.
type PredictionFailed struct {
	Ticker string
	Cause  error
}

func (e *PredictionFailed) Error() string {
	return fmt.Sprintf("prediction failed for %s: %v", e.Ticker, e.Cause)
}

func (e *PredictionFailed) Unwrap() error { return e.Cause }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExternal reports whether err is or wraps an ExternalAPIError and returns it.
func IsExternal(err error) (*ExternalAPIError, bool) {
	var e *ExternalAPIError
	ok := errors.As(err, &e)
	return e, ok
}
