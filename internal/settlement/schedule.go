// Package settlement holds the pure money rules of a booking: its payment
// schedule, the commission/fee split, the refund on cancellation and the late
// fee on an overdue stage. Nothing here touches storage or shared state.
package settlement

import (
	"fmt"
	"time"

	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// Stage names
const (
	StageFullPayment = "full_payment"
	StageDeposit     = "deposit"
	StageBalance     = "balance"
)

// percentagePlaces is the precision kept for stage percentages.
const percentagePlaces = 2

// ResolveSchedule turns a payment structure into its ordered stages. Stage
// percentages always sum to exactly 100; when the remainder of an installment
// plan does not divide evenly the final stage absorbs the difference.
func ResolveSchedule(structure domain.PaymentStructure) ([]domain.Stage, error) {
	if structure == nil {
		return nil, customError.WrapInvalidPolicyParameters("payment_structure", "is required")
	}
	if err := structure.Validate(); err != nil {
		return nil, err
	}

	hundred := utils.Hundred()

	switch s := structure.(type) {
	case domain.FullUpfront:
		return []domain.Stage{
			{Name: StageFullPayment, Percentage: hundred, Due: domain.OnBookingConfirmation()},
		}, nil

	case domain.DepositBalance:
		return []domain.Stage{
			{Name: StageDeposit, Percentage: s.DepositPercentage, Due: domain.OnBookingConfirmation()},
			{Name: StageBalance, Percentage: hundred.Sub(s.DepositPercentage), Due: domain.DaysBeforeEvent(s.BalanceDueDays)},
		}, nil

	case domain.InstallmentPlan:
		remaining := hundred.Sub(s.FirstPaymentPercentage)
		later := s.InstallmentCount - 1
		each := remaining.Div(decimal.NewFromInt(int64(later))).Truncate(percentagePlaces)

		stages := make([]domain.Stage, 0, s.InstallmentCount)
		stages = append(stages, domain.Stage{
			Name:       installmentName(1),
			Percentage: s.FirstPaymentPercentage,
			Due:        domain.OnBookingConfirmation(),
		})
		for n := 2; n < s.InstallmentCount; n++ {
			stages = append(stages, domain.Stage{
				Name:       installmentName(n),
				Percentage: each,
				Due:        domain.DaysAfterBooking(s.InstallmentIntervalDays * (n - 1)),
			})
		}
		final := remaining.Sub(each.Mul(decimal.NewFromInt(int64(later - 1))))
		stages = append(stages, domain.Stage{
			Name:       installmentName(s.InstallmentCount),
			Percentage: final,
			Due:        domain.DaysBeforeEvent(s.FinalPaymentDaysBefore),
		})
		return stages, nil

	default:
		return nil, customError.WrapInvalidPolicyParameters("payment_structure", "unsupported structure %T", structure)
	}
}

func installmentName(n int) string {
	return fmt.Sprintf("installment_%d", n)
}

// DatedStage is a stage with its due date resolved for a concrete booking.
type DatedStage struct {
	domain.Stage
	DueDate time.Time
}

// MaterializeSchedule resolves the schedule and pins every stage to a date.
// A stage measured back from the event that would land before the booking
// itself is due immediately. A stage due after the event, or before the stage
// preceding it, makes the terms unusable for this booking.
func MaterializeSchedule(structure domain.PaymentStructure, bookedAt, eventDate time.Time) ([]DatedStage, error) {
	if eventDate.Before(bookedAt) {
		return nil, customError.WrapInvalidPolicyParameters("event_date", "is before the booking date")
	}

	stages, err := ResolveSchedule(structure)
	if err != nil {
		return nil, err
	}

	dated := make([]DatedStage, 0, len(stages))
	var previous time.Time
	for i, stage := range stages {
		due := stage.Due.DueDate(bookedAt, eventDate)
		if due.Before(bookedAt) {
			due = bookedAt
		}
		if due.After(eventDate) {
			return nil, customError.WrapInvalidPolicyParameters(stage.Name, "would be due after the event date")
		}
		if i > 0 && due.Before(previous) {
			return nil, customError.WrapInvalidPolicyParameters(stage.Name, "would be due before the preceding stage")
		}
		previous = due
		dated = append(dated, DatedStage{Stage: stage, DueDate: due})
	}
	return dated, nil
}

// StageAmounts splits total across stages by percentage. Each amount is
// rounded to the minor unit and the last stage takes whatever is left, so the
// amounts always add back up to total.
func StageAmounts(total decimal.Decimal, stages []domain.Stage) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(stages))
	allocated := decimal.Zero
	for i, stage := range stages {
		if i == len(stages)-1 {
			amounts[i] = total.Sub(allocated)
			break
		}
		amounts[i] = utils.PercentOf(total, stage.Percentage)
		allocated = allocated.Add(amounts[i])
	}
	return amounts
}
