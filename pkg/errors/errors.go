package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal

	// Pipeline error codes
	ErrTransactionRequired
	ErrInvalidTransition
	ErrConcurrentModification
	ErrPublish
	ErrDeliveryExhausted
)

// TransactionRequired reports an outbox append attempted outside a database
// transaction. This is a programmer error, never a runtime condition.
func TransactionRequired(op string) *AppError {
	return &AppError{
		Code:    ErrTransactionRequired,
		Message: fmt.Sprintf("%s requires an active transaction", op),
	}
}

// InvalidTransition reports a gate action that is illegal from the current
// state. The message names both so the caller sees exactly what was rejected.
func InvalidTransition(gate, current, action string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("gate %q is %s: %s is not allowed", gate, current, action),
	}
}

// ConcurrentModification reports that another actor won the row lock. The
// operation is safe to retry from the top.
func ConcurrentModification(applicationID string, err error) *AppError {
	return &AppError{
		Code:    ErrConcurrentModification,
		Message: fmt.Sprintf("application %s is being modified by another request", applicationID),
		Err:     err,
	}
}

// Publish reports a transient bus failure. The relay retries it; it is never
// surfaced to the caller whose business write already committed.
func Publish(err error) *AppError {
	return &AppError{
		Code:    ErrPublish,
		Message: "failed to publish event",
		Err:     err,
	}
}

// DeliveryExhausted reports an event that exceeded its delivery attempts and
// now waits for manual replay.
func DeliveryExhausted(eventID string, attempts int) *AppError {
	return &AppError{
		Code:    ErrDeliveryExhausted,
		Message: fmt.Sprintf("event %s undelivered after %d attempts", eventID, attempts),
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Is reports whether err is an AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
