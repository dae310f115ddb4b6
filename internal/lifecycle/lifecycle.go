// Package lifecycle holds the booking settlement state machine. Every change to
// a booking's status, payment_status or payout_status goes through Apply, which
// looks the event up in a fixed transition table.
package lifecycle

import (
	"time"

	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"

	"github.com/shopspring/decimal"
)

type Event string

const (
	EventConfirm       Event = "confirm"
	EventRecordPayment Event = "record_payment"
	EventRefund        Event = "refund"
	EventProcessPayout Event = "process_payout"
	EventComplete      Event = "complete"
)

// State is the three status axes of a booking.
type State struct {
	Status        domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	PayoutStatus  domain.PayoutStatus
}

func (s State) String() string {
	return string(s.Status) + "/" + string(s.PaymentStatus) + "/" + string(s.PayoutStatus)
}

// StateOf reads the current state of a booking.
func StateOf(b *domain.Booking) State {
	return State{Status: b.Status, PaymentStatus: b.PaymentStatus, PayoutStatus: b.PayoutStatus}
}

// Facts are the inputs guards need besides the state itself.
type Facts struct {
	Now             time.Time
	RefundDeadline  time.Time
	EventDate       time.Time
	Outstanding     decimal.Decimal
	SplitConsistent bool
}

// FactsOf collects the facts for a booking and its stages at now.
func FactsOf(b *domain.Booking, stages []*domain.PaymentStage, now time.Time) Facts {
	outstanding := decimal.Zero
	for _, s := range stages {
		outstanding = outstanding.Add(s.Outstanding())
	}
	return Facts{
		Now:             now,
		RefundDeadline:  b.RefundDeadline,
		EventDate:       b.EventDate,
		Outstanding:     outstanding,
		SplitConsistent: b.SplitConsistent(),
	}
}

type edge struct {
	// applied reports that the event's target state already holds.
	applied func(State) bool
	// guard returns the reason the event may not fire, or nil.
	guard func(State, Facts) error
	apply func(State) State
}

var table = map[Event]edge{
	EventConfirm: {
		applied: func(s State) bool { return s.Status == domain.BookingStatusConfirmed },
		guard: func(s State, _ Facts) error {
			if s.Status != domain.BookingStatusPending {
				return reject(EventConfirm, s, "booking is not pending")
			}
			return nil
		},
		apply: func(s State) State {
			s.Status = domain.BookingStatusConfirmed
			return s
		},
	},
	EventRecordPayment: {
		applied: func(State) bool { return false },
		guard: func(s State, f Facts) error {
			if s.Status == domain.BookingStatusCancelled || s.Status == domain.BookingStatusCompleted {
				return reject(EventRecordPayment, s, "booking is closed")
			}
			if s.PaymentStatus == domain.PaymentStatusRefunded {
				return reject(EventRecordPayment, s, "booking was refunded")
			}
			if !f.SplitConsistent {
				return reject(EventRecordPayment, s, "split does not add up to the total")
			}
			return nil
		},
		apply: func(s State) State {
			s.PaymentStatus = domain.PaymentStatusPaid
			return s
		},
	},
	EventRefund: {
		applied: func(s State) bool {
			return s.PaymentStatus == domain.PaymentStatusRefunded && s.Status == domain.BookingStatusCancelled
		},
		guard: func(s State, _ Facts) error {
			switch {
			case s.PaymentStatus == domain.PaymentStatusPending:
				return customError.WrapRefundNotEligible("no payment has been recorded")
			case s.PaymentStatus != domain.PaymentStatusPaid:
				return reject(EventRefund, s, "booking is not paid")
			case s.Status == domain.BookingStatusCancelled || s.Status == domain.BookingStatusCompleted:
				return reject(EventRefund, s, "booking is closed")
			case s.PayoutStatus != domain.PayoutStatusPending:
				return reject(EventRefund, s, "payout already settled")
			}
			return nil
		},
		apply: func(s State) State {
			s.PaymentStatus = domain.PaymentStatusRefunded
			s.Status = domain.BookingStatusCancelled
			s.PayoutStatus = domain.PayoutStatusCancelled
			return s
		},
	},
	EventProcessPayout: {
		applied: func(s State) bool { return s.PayoutStatus == domain.PayoutStatusProcessed },
		guard: func(s State, f Facts) error {
			switch {
			case s.PayoutStatus != domain.PayoutStatusPending:
				return reject(EventProcessPayout, s, "payout was cancelled")
			case s.PaymentStatus != domain.PaymentStatusPaid:
				return reject(EventProcessPayout, s, "booking is not paid")
			case s.Status == domain.BookingStatusCancelled:
				return reject(EventProcessPayout, s, "booking is cancelled")
			case f.Now.Before(f.RefundDeadline):
				return reject(EventProcessPayout, s, "refund window is still open")
			case f.Outstanding.IsPositive():
				return reject(EventProcessPayout, s, "balance "+f.Outstanding.StringFixed(2)+" is outstanding")
			}
			return nil
		},
		apply: func(s State) State {
			s.PayoutStatus = domain.PayoutStatusProcessed
			return s
		},
	},
	EventComplete: {
		applied: func(s State) bool { return s.Status == domain.BookingStatusCompleted },
		guard: func(s State, f Facts) error {
			if s.Status != domain.BookingStatusConfirmed {
				return reject(EventComplete, s, "booking is not confirmed")
			}
			if f.Now.Before(f.EventDate) {
				return reject(EventComplete, s, "event has not started")
			}
			return nil
		},
		apply: func(s State) State {
			s.Status = domain.BookingStatusCompleted
			return s
		},
	},
}

// Apply returns the state reached by firing event from s. When the event's
// target already holds the error is a TransitionError with Replay set; callers
// treat that as a retried request.
func Apply(s State, event Event, f Facts) (State, error) {
	e, ok := table[event]
	if !ok {
		return s, reject(event, s, "unknown event")
	}
	if e.applied(s) {
		return s, &customError.TransitionError{Event: string(event), From: s.String(), Replay: true}
	}
	if err := e.guard(s, f); err != nil {
		return s, err
	}
	return e.apply(s), nil
}

// Fire applies event to the booking in place and stamps the matching timestamp.
func Fire(b *domain.Booking, event Event, f Facts) error {
	next, err := Apply(StateOf(b), event, f)
	if err != nil {
		return err
	}

	b.Status = next.Status
	b.PaymentStatus = next.PaymentStatus
	b.PayoutStatus = next.PayoutStatus
	b.UpdatedAt = f.Now

	now := f.Now
	switch event {
	case EventConfirm:
		b.ConfirmedAt = &now
	case EventRefund:
		b.CancelledAt = &now
	case EventProcessPayout:
		b.PayoutProcessedAt = &now
	case EventComplete:
		b.CompletedAt = &now
	}
	return nil
}

func reject(event Event, s State, reason string) error {
	return &customError.TransitionError{Event: string(event), From: s.String(), Reason: reason}
}
