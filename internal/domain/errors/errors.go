package errors

import (
	"errors"
	"fmt"
)

var (
	// Auth errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrIdentityMismatch = errors.New("verified identity does not match stored profile")

	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrIdentityUnverified     = errors.New("could not verify payment identity")
	ErrPaymentExists          = errors.New("payment already recorded")

	// Payout errors
	ErrPayoutNotFound   = errors.New("payout not found")
	ErrPayoutInProgress = errors.New("payout already in progress")
	ErrNoLinkedWallet   = errors.New("recipient has no linked wallet")

	// Business errors
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOutsideDeliveryZone = errors.New("destination outside store delivery zone")
	ErrOrderNotFound       = errors.New("order not found")

	// Dispute errors
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeClosed   = errors.New("dispute already closed")

	// Provider errors
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment rejected by provider")
	ErrProviderTimeout     = errors.New("provider request timeout")

	// Webhook errors
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
