package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/segyhp/booking-settlement/internal/queue"
	"github.com/shopspring/decimal"
)

// ErrDuplicatePayment is returned when a payment reference was already recorded.
var ErrDuplicatePayment = errors.New("payment reference already recorded")

// Mutation lists the rows a transition writes besides the booking itself.
// Outbox messages commit with the booking, so an outcome is never stored
// without the event announcing it.
type Mutation struct {
	Payment   *domain.Payment
	PaidStage *domain.PaymentStage
	Outbox    []*OutboxMessage
}

// OutboxMessage is a settlement event waiting for the broker to accept it.
type OutboxMessage struct {
	Event         queue.Event
	Attempts      int
	NextAttemptAt time.Time
}

// TransitionFunc mutates a locked booking in place. Returning an error rolls
// the transaction back and leaves the stored booking untouched.
type TransitionFunc func(booking *domain.Booking, stages []*domain.PaymentStage) (*Mutation, error)

// OverdueStage is an unpaid stage past its due date with the policy that
// prices its late fee.
type OverdueStage struct {
	domain.PaymentStage
	LatePaymentPolicy domain.LatePaymentPolicy `db:"late_payment_policy"`
}

// BookingRepository defines the interface for booking data operations
type BookingRepository interface {
	// Create stores a booking and its payment stages in one transaction
	Create(ctx context.Context, booking *domain.Booking, stages []*domain.PaymentStage) error

	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)

	// GetStages retrieves the payment stages of a booking ordered by sequence
	GetStages(ctx context.Context, bookingID uuid.UUID) ([]*domain.PaymentStage, error)

	// Transition locks the booking row, runs fn and persists the result
	Transition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*domain.Booking, error)

	// ListOverdueStages pages through unpaid stages due before asOf on open bookings
	ListOverdueStages(ctx context.Context, asOf time.Time, after uuid.UUID, limit int) ([]*OverdueStage, error)

	// UpdateStageLateFee sets the accrued late fee of an unpaid stage and marks it overdue
	UpdateStageLateFee(ctx context.Context, stageID uuid.UUID, lateFee decimal.Decimal) error

	// ListPayoutCandidates returns paid, fully settled bookings whose refund window closed
	ListPayoutCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// GetByReference retrieves a payment by its gateway reference
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)

	// GetByBookingID retrieves all payments for a booking
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*domain.Payment, error)

	// GetTotalPaid sums the payments recorded for a booking
	GetTotalPaid(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
}

// OutboxRepository defines the interface for relaying stored settlement events
type OutboxRepository interface {
	// ListDue returns undelivered messages whose next attempt is at or before asOf, oldest first
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*OutboxMessage, error)

	// MarkPublished records that the broker accepted the message
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed counts a failed attempt and schedules the next one
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error
}
