package settlement

import (
	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// Split is the three-way division of an amount between the platform, the
// payment processor and the listing owner.
type Split struct {
	CommissionAmount decimal.Decimal
	TransactionFee   decimal.Decimal
	SellerAmount     decimal.Decimal
}

// Total adds the three parts back together.
func (s Split) Total() decimal.Decimal {
	return s.CommissionAmount.Add(s.TransactionFee).Add(s.SellerAmount)
}

// SplitPayment rounds commission and fee to the minor unit and derives the
// seller amount by subtraction, so the three parts always sum to total.
func SplitPayment(total, commissionPct, feePct decimal.Decimal) (Split, error) {
	if !total.IsPositive() {
		return Split{}, customError.WrapInvalidPolicyParameters("total_amount", "must be greater than zero")
	}
	if !utils.HasMinorUnitPrecision(total) {
		return Split{}, customError.WrapInvalidPolicyParameters("total_amount", "%s has more than %d decimal places", total.String(), utils.MinorUnitPlaces)
	}
	if err := checkRate("commission_percentage", commissionPct); err != nil {
		return Split{}, err
	}
	if err := checkRate("transaction_fee_percentage", feePct); err != nil {
		return Split{}, err
	}
	if commissionPct.Add(feePct).GreaterThan(utils.Hundred()) {
		return Split{}, customError.WrapNegativeSellerAmount(commissionPct.String(), feePct.String())
	}

	commission := utils.PercentOf(total, commissionPct)
	fee := utils.PercentOf(total, feePct)

	// Both parts rounding up at a 100% combined rate can overshoot by a unit;
	// the fee gives way so the seller share stays at zero.
	if rest := total.Sub(commission); fee.GreaterThan(rest) {
		fee = rest
	}

	return Split{
		CommissionAmount: commission,
		TransactionFee:   fee,
		SellerAmount:     total.Sub(commission).Sub(fee),
	}, nil
}

// StageSplits divides the split of a booking total across its payment stages.
// Every stage but the last is split on its own amount and the last one takes
// what remains, so the stage shares add up to the booking split exactly.
func StageSplits(total Split, amounts []decimal.Decimal, commissionPct, feePct decimal.Decimal) ([]Split, error) {
	if len(amounts) == 0 {
		return nil, nil
	}

	splits := make([]Split, len(amounts))
	rest := total
	for i, amount := range amounts[:len(amounts)-1] {
		split, err := SplitPayment(amount, commissionPct, feePct)
		if err != nil {
			return nil, err
		}
		splits[i] = split
		rest = Split{
			CommissionAmount: rest.CommissionAmount.Sub(split.CommissionAmount),
			TransactionFee:   rest.TransactionFee.Sub(split.TransactionFee),
			SellerAmount:     rest.SellerAmount.Sub(split.SellerAmount),
		}
	}

	if rest.CommissionAmount.IsNegative() || rest.TransactionFee.IsNegative() || rest.SellerAmount.IsNegative() {
		return nil, customError.WrapNegativeSellerAmount(commissionPct.String(), feePct.String())
	}
	splits[len(splits)-1] = rest
	return splits, nil
}

func checkRate(field string, pct decimal.Decimal) error {
	if pct.IsNegative() {
		return customError.WrapInvalidPolicyParameters(field, "must not be negative")
	}
	if !utils.HasMinorUnitPrecision(pct) {
		return customError.WrapInvalidPolicyParameters(field, "%s has more than %d decimal places", pct.String(), utils.MinorUnitPlaces)
	}
	return nil
}
