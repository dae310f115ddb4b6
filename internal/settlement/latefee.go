package settlement

import (
	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// factorPlaces bounds the precision of the compounding factor.
const factorPlaces = 16

// AccrueLateFee computes the fee owed on an overdue stage after daysLate days
// past its due date. Days inside the grace period do not accrue. The fee grows
// with daysLate until it reaches the policy cap and stays there.
func AccrueLateFee(overdueAmount decimal.Decimal, daysLate int, policy domain.LatePaymentPolicy) (decimal.Decimal, error) {
	if !overdueAmount.IsPositive() {
		return decimal.Zero, customError.WrapInvalidOverdueAmount(overdueAmount.String())
	}
	if daysLate < 0 {
		return decimal.Zero, customError.WrapInvalidPolicyParameters("days_late", "must not be negative")
	}
	if err := policy.Validate(); err != nil {
		return decimal.Zero, err
	}

	days := daysLate - policy.GracePeriod.Days()
	if days <= 0 {
		return decimal.Zero, nil
	}

	hundred := utils.Hundred()
	limit := overdueAmount.Mul(policy.MaximumLateFeePercentage).Div(hundred)
	rate := policy.DailyRate.Div(hundred)

	var fee decimal.Decimal
	if policy.Compounding {
		factor := decimal.NewFromInt(1)
		growth := factor.Add(rate)
		for i := 0; i < days; i++ {
			factor = factor.Mul(growth).Round(factorPlaces)
			if overdueAmount.Mul(factor.Sub(decimal.NewFromInt(1))).GreaterThanOrEqual(limit) {
				break
			}
		}
		fee = overdueAmount.Mul(factor.Sub(decimal.NewFromInt(1)))
	} else {
		fee = overdueAmount.Mul(rate).Mul(decimal.NewFromInt(int64(days)))
	}

	// The cap is rounded down so the rounded fee can never exceed it.
	return decimal.Min(utils.RoundMoney(fee), limit.Truncate(utils.MinorUnitPlaces)), nil
}
