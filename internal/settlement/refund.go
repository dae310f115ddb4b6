package settlement

import (
	"time"

	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// RefundQuote breaks a refund down into the parts that produced it.
type RefundQuote struct {
	AmountPaid              decimal.Decimal
	RefundableAmount        decimal.Decimal
	TransactionFeeDeduction decimal.Decimal
	ProcessingFee           decimal.Decimal
	RefundAmount            decimal.Decimal
	// WithinNoticePeriod is informational: cancelling inside the notice
	// period does not lower the refund percentage fixed on the policy.
	WithinNoticePeriod bool
}

// ComputeRefund applies a cancellation policy to the amount already paid.
// The result never goes below zero nor above amountPaid.
func ComputeRefund(amountPaid decimal.Decimal, policy domain.CancellationPolicy, untilEvent time.Duration) (RefundQuote, error) {
	if amountPaid.IsNegative() {
		return RefundQuote{}, customError.WrapRefundNotEligible("amount paid is negative")
	}
	if err := policy.Validate(); err != nil {
		return RefundQuote{}, err
	}

	refundable := utils.PercentOf(amountPaid, policy.RefundPercentage)
	deduction := utils.PercentOf(amountPaid, policy.TransactionFeeDeduction)

	refund := refundable.Sub(deduction).Sub(policy.ProcessingFeeAmount)
	if refund.IsNegative() {
		refund = decimal.Zero
	}

	notice := time.Duration(policy.NoticePeriod.Hours()) * time.Hour

	return RefundQuote{
		AmountPaid:              amountPaid,
		RefundableAmount:        refundable,
		TransactionFeeDeduction: deduction,
		ProcessingFee:           policy.ProcessingFeeAmount,
		RefundAmount:            refund,
		WithinNoticePeriod:      untilEvent < notice,
	}, nil
}

// RefundDeadline is the moment after which a paid booking may be paid out:
// the event date minus the policy's notice period.
func RefundDeadline(eventDate time.Time, policy domain.CancellationPolicy) time.Time {
	return eventDate.Add(-time.Duration(policy.NoticePeriod.Hours()) * time.Hour)
}
