package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers
// and the daily pipeline.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"

	// ErrCodeUnavailable marks a counterparty that could not be reached or timed out.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	// ErrCodeRejected marks a counterparty that answered but refused the request.
	ErrCodeRejected ErrorCode = "REJECTED"
	// ErrCodeTerminal marks a business outcome that ends a transaction.
	ErrCodeTerminal ErrorCode = "TERMINAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors carrying the same code and message so that wrapped
// sentinels compare equal with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrOrderNotFound           = NewError(ErrCodeNotFound, "order not found")
	ErrPurchaseNotFound        = NewError(ErrCodeNotFound, "purchase not found")
	ErrProductNotFound         = NewError(ErrCodeNotFound, "product not found")
	ErrDeliveryNotFound        = NewError(ErrCodeNotFound, "delivery reference not found")
	ErrSettingNotFound         = NewError(ErrCodeNotFound, "setting not found")
	ErrSimulationNotStarted    = NewError(ErrCodeConflict, "simulation not started")
	ErrSimulationRunning       = NewError(ErrCodeConflict, "simulation already running")
	ErrStatusConflict          = NewError(ErrCodeConflict, "status changed concurrently")
	ErrIllegalTransition       = NewError(ErrCodeConflict, "illegal status transition")
	ErrInsufficientStock       = NewError(ErrCodeConflict, "insufficient stock")
	ErrInsufficientParts       = NewError(ErrCodeConflict, "insufficient parts")
	ErrUnauthorized            = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload          = NewError(ErrCodeInvalid, "invalid payload")
	ErrInvalidResponse         = NewError(ErrCodeInvalid, "invalid counterparty response")
	ErrCounterpartyUnavailable = NewError(ErrCodeUnavailable, "counterparty unavailable")
	ErrCounterpartyRejected    = NewError(ErrCodeRejected, "counterparty rejected request")
	ErrSupplierOrderGone       = NewError(ErrCodeTerminal, "supplier order no longer exists")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsTransient reports whether err should be retried on the next simulated day
// rather than ending the transaction.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsDomainError(err, ErrCodeTerminal)
}
