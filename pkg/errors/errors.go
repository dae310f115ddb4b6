package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidPolicyParameters = errors.New("invalid policy parameters")
	ErrNegativeSellerAmount    = errors.New("commission and fee exceed the total amount")
	ErrRefundNotEligible       = errors.New("booking is not eligible for a refund")
	ErrInvalidOverdueAmount    = errors.New("overdue amount must be greater than zero")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrPaymentAmountMismatch   = errors.New("payment amount must match the amount due for the stage")
	ErrNoOutstandingBalance    = errors.New("no outstanding balance")
	ErrDuplicateReference      = errors.New("payment reference belongs to another booking")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidPolicyParameters = "INVALID_POLICY_PARAMETERS"
	ErrCodeNegativeSellerAmount    = "NEGATIVE_SELLER_AMOUNT"
	ErrCodeRefundNotEligible       = "REFUND_NOT_ELIGIBLE"
	ErrCodeInvalidOverdueAmount    = "INVALID_OVERDUE_AMOUNT"
	ErrCodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	ErrCodeBookingNotFound         = "BOOKING_NOT_FOUND"
	ErrCodePaymentAmountMismatch   = "PAYMENT_AMOUNT_MISMATCH"
	ErrCodeNoOutstandingBalance    = "NO_OUTSTANDING_BALANCE"
	ErrCodeDuplicateReference      = "DUPLICATE_PAYMENT_REFERENCE"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// WrapInvalidPolicyParameters reports a single out-of-range or malformed policy field.
func WrapInvalidPolicyParameters(field string, format string, args ...interface{}) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPolicyParameters,
		fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		ErrInvalidPolicyParameters,
	)
}

func WrapNegativeSellerAmount(commissionPct, feePct string) *BusinessError {
	return NewBusinessError(
		ErrCodeNegativeSellerAmount,
		fmt.Sprintf("commission %s%% plus transaction fee %s%% leaves no seller amount", commissionPct, feePct),
		ErrNegativeSellerAmount,
	)
}

func WrapRefundNotEligible(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeRefundNotEligible,
		reason,
		ErrRefundNotEligible,
	)
}

func WrapInvalidOverdueAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidOverdueAmount,
		fmt.Sprintf("Invalid overdue amount: %s", amount),
		ErrInvalidOverdueAmount,
	)
}

// TransitionError is returned by the booking lifecycle when an event cannot be
// applied. Replay is set when the booking already sits in the event's target
// state, which callers treat as a retried request rather than a failure.
type TransitionError struct {
	Event  string
	From   string
	Reason string
	Replay bool
}

func (e *TransitionError) Error() string {
	if e.Replay {
		return fmt.Sprintf("%s: %s already applied (%s)", ErrCodeInvalidStateTransition, e.Event, e.From)
	}
	return fmt.Sprintf("%s: cannot %s from %s: %s", ErrCodeInvalidStateTransition, e.Event, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// IsReplay reports whether err is a transition that was already applied.
func IsReplay(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Replay
}

func WrapBookingNotFound(bookingID string) *BusinessError {
	return NewBusinessError(
		ErrCodeBookingNotFound,
		fmt.Sprintf("Booking with ID %s not found", bookingID),
		ErrBookingNotFound,
	)
}

func WrapPaymentAmountMismatch(expected, actual string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentAmountMismatch,
		fmt.Sprintf("Payment amount %s does not match amount due %s", actual, expected),
		ErrPaymentAmountMismatch,
	)
}

func WrapNoOutstandingBalance(bookingID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstandingBalance,
		fmt.Sprintf("Booking with ID %s has no outstanding balance", bookingID),
		ErrNoOutstandingBalance,
	)
}

func WrapDuplicateReference(reference string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateReference,
		fmt.Sprintf("Payment reference %s was already used for another booking", reference),
		ErrDuplicateReference,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code extracts the business error code, or "" when err carries none.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	var te *TransitionError
	if errors.As(err, &te) {
		return ErrCodeInvalidStateTransition
	}
	return ""
}
