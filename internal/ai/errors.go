package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of AI-related error
type ErrorType string

const (
	// ErrTypeModelUnavailable indicates the model/service cannot be reached
	// or refuses service (outage, rate limit exhaustion, quota)
	ErrTypeModelUnavailable ErrorType = "model_unavailable"

	// ErrTypeResponseInvalid indicates the model returned output the caller
	// could not parse or that violated the requested structure
	ErrTypeResponseInvalid ErrorType = "response_invalid"

	// ErrTypeTimeout indicates a per-call timeout expired
	ErrTypeTimeout ErrorType = "timeout"

	// ErrTypeNetwork indicates network-related errors
	ErrTypeNetwork ErrorType = "network"

	// ErrTypeRateLimit indicates rate limiting errors
	ErrTypeRateLimit ErrorType = "rate_limit"

	// ErrTypeConfiguration indicates configuration errors
	ErrTypeConfiguration ErrorType = "configuration"

	// ErrTypeValidation indicates input validation errors
	ErrTypeValidation ErrorType = "validation"

	// ErrTypeInternal indicates internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// ProviderError represents errors specific to AI providers and embedders
type ProviderError struct {
	// Type categorizes the error
	Type ErrorType `json:"type"`

	// Message provides human-readable error description
	Message string `json:"message"`

	// Provider indicates which provider caused the error
	Provider string `json:"provider,omitempty"`

	// StatusCode for HTTP-related errors
	StatusCode int `json:"status_code,omitempty"`

	// Underlying error that caused this error
	Cause error `json:"-"`

	// Retryable indicates if the operation can be retried
	Retryable bool `json:"retryable"`

	// RetryAfter suggests when to retry (for rate limiting)
	RetryAfter int `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	var parts []string

	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}

	parts = append(parts, fmt.Sprintf("type=%s", e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%s", e.Cause.Error()))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error type
func (e *ProviderError) Is(target error) bool {
	if pe, ok := target.(*ProviderError); ok {
		return e.Type == pe.Type
	}
	return false
}

// IsRetryable returns whether the error is retryable
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ConfigurationError represents configuration-related errors
type ConfigurationError struct {
	Provider string `json:"provider"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for provider '%s', field '%s': %s",
		e.Provider, e.Field, e.Message)
}

// NewProviderError creates a new provider error
func NewProviderError(errType ErrorType, message, provider string) *ProviderError {
	return &ProviderError{
		Type:      errType,
		Message:   message,
		Provider:  provider,
		Retryable: isRetryableError(errType),
	}
}

// NewProviderErrorWithCause creates a provider error with an underlying cause
func NewProviderErrorWithCause(errType ErrorType, message, provider string, cause error) *ProviderError {
	return &ProviderError{
		Type:      errType,
		Message:   message,
		Provider:  provider,
		Cause:     cause,
		Retryable: isRetryableError(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(provider, field, message string) *ConfigurationError {
	return &ConfigurationError{
		Provider: provider,
		Field:    field,
		Message:  message,
	}
}

// WrapCallError classifies an error returned by an HTTP round trip. Context
// deadline expiry maps to timeout, everything else to network.
func WrapCallError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderErrorWithCause(ErrTypeTimeout, "request deadline exceeded", provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderErrorWithCause(ErrTypeTimeout, "request canceled", provider, err)
	}
	return NewProviderErrorWithCause(ErrTypeNetwork, "request failed", provider, err)
}

// isRetryableError determines if an error type is retryable
func isRetryableError(errType ErrorType) bool {
	switch errType {
	case ErrTypeRateLimit, ErrTypeTimeout, ErrTypeNetwork, ErrTypeModelUnavailable:
		return true
	default:
		return false
	}
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}

// IsModelUnavailable checks if an error indicates a model/service outage
func IsModelUnavailable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrTypeModelUnavailable || pe.Type == ErrTypeRateLimit || pe.Type == ErrTypeNetwork
	}
	return false
}

// IsResponseInvalid checks if an error indicates malformed model output
func IsResponseInvalid(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrTypeResponseInvalid
	}
	return false
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type == ErrTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
