package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage status values
const (
	StageStatusPending = "pending"
	StageStatusPaid    = "paid"
	StageStatusOverdue = "overdue"
)

// DueRuleKind says what a stage's due date is measured from.
type DueRuleKind string

const (
	DueOnBookingConfirmation DueRuleKind = "on_booking_confirmation"
	DueDaysBeforeEvent       DueRuleKind = "days_before_event"
	DueDaysAfterBooking      DueRuleKind = "days_after_booking"
)

// DueRule is the timing rule of one stage.
type DueRule struct {
	Kind DueRuleKind `json:"kind"`
	Days int         `json:"days,omitempty"`
}

func OnBookingConfirmation() DueRule { return DueRule{Kind: DueOnBookingConfirmation} }
func DaysBeforeEvent(n int) DueRule  { return DueRule{Kind: DueDaysBeforeEvent, Days: n} }
func DaysAfterBooking(n int) DueRule { return DueRule{Kind: DueDaysAfterBooking, Days: n} }

// DueDate resolves the rule against a booking and its event.
func (r DueRule) DueDate(bookedAt, eventDate time.Time) time.Time {
	switch r.Kind {
	case DueDaysBeforeEvent:
		return eventDate.AddDate(0, 0, -r.Days)
	case DueDaysAfterBooking:
		return bookedAt.AddDate(0, 0, r.Days)
	default:
		return bookedAt
	}
}

// Stage is one entry of a resolved payment schedule.
type Stage struct {
	Name       string          `json:"stage_name"`
	Percentage decimal.Decimal `json:"percentage_of_total"`
	Due        DueRule         `json:"due_rule"`
}

// PaymentStage is a stage materialized for a booking
type PaymentStage struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	BookingID  uuid.UUID       `json:"booking_id" db:"booking_id"`
	Sequence   int             `json:"sequence" db:"sequence"`
	Name       string          `json:"stage_name" db:"stage_name"`
	Percentage decimal.Decimal `json:"percentage_of_total" db:"percentage"`
	DueRule    DueRuleKind     `json:"due_rule" db:"due_rule"`
	DueDays    int             `json:"due_days" db:"due_days"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	AmountDue  decimal.Decimal `json:"amount_due" db:"amount_due"`
	LateFee    decimal.Decimal `json:"late_fee" db:"late_fee"`
	Status     string          `json:"status" db:"status"` // pending, paid, overdue
	PaidAt     *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Outstanding is what the payer must send to settle the stage.
func (s *PaymentStage) Outstanding() decimal.Decimal {
	if s.Status == StageStatusPaid {
		return decimal.Zero
	}
	return s.AmountDue.Add(s.LateFee)
}

type ScheduleResponse struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Schedule  []*PaymentStage `json:"schedule"`
}
