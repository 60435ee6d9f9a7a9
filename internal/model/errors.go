package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrNetwork        = errors.New("network error")
	ErrProtocol       = errors.New("remote protocol error")
	ErrCartNotFound   = errors.New("cart not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a fatal error for missing/invalid configuration.
// Remote calls fail fast with this rather than attempting a malformed request.
func NewConfigurationError(reason string) *APIError {
	return &APIError{
		Code:       "CONFIGURATION_ERROR",
		Message:    reason,
		StatusCode: 500,
		Err:        ErrConfiguration,
	}
}

// NewNetworkError creates a 502 error after transport retries are exhausted.
// Wraps the last underlying cause.
func NewNetworkError(err error) *APIError {
	return &APIError{
		Code:       "NETWORK_ERROR",
		Message:    "storefront request failed",
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrNetwork, err),
	}
}

// NewProtocolError creates an error for a GraphQL-level failure. Transport
// succeeded but the response carried an errors collection; these indicate a
// malformed request, not transience, and are never retried.
func NewProtocolError(message string) *APIError {
	return &APIError{
		Code:       "REMOTE_PROTOCOL_ERROR",
		Message:    message,
		StatusCode: 502,
		Err:        ErrProtocol,
	}
}

// NewCartNotFoundError creates a 404 error for an identifier the backend no
// longer resolves, after the single self-healing retry has been spent.
func NewCartNotFoundError(cartID string) *APIError {
	return &APIError{
		Code:       "CART_NOT_FOUND",
		Message:    fmt.Sprintf("cart %s not found", cartID),
		StatusCode: 404,
		Err:        ErrCartNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
