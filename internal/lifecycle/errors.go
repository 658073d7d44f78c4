package lifecycle

import (
	"errors"
	"fmt"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
)

// Error kinds. Every error returned by Engine wraps exactly one of these
// unless it is an infrastructure failure.
var (
	ErrValidation                = errors.New("validation error")
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrStateConflict             = errors.New("state conflict")
	ErrDeadlinePassed            = errors.New("seller approval deadline passed")
	ErrCancellationWindowExpired = errors.New("cancellation window expired")
	ErrOTPMismatch               = errors.New("delivery otp mismatch")
	ErrPaymentVerification       = errors.New("payment verification failed")
)

// Error is a business-rule failure with a message fit for end users.
type Error struct {
	Kind    error
	Message string
	// Fields holds per-field problems for validation errors.
	Fields map[string]string
	// PaymentStatus is the payment status left on the order after a failed
	// verification.
	PaymentStatus orders.PaymentStatus
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(fields map[string]string, format string, args ...interface{}) *Error {
	e := newError(ErrValidation, format, args...)
	e.Fields = fields
	return e
}
