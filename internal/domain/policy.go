package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// PaymentType names one of the three payment structures a listing may offer.
type PaymentType string

const (
	PaymentTypeFullUpfront     PaymentType = "full_upfront"
	PaymentTypeDepositBalance  PaymentType = "deposit_balance"
	PaymentTypeInstallmentPlan PaymentType = "installment_plan"
)

// ParsePaymentType validates a payment type coming from a listing form.
func ParsePaymentType(s string) (PaymentType, error) {
	switch t := PaymentType(s); t {
	case PaymentTypeFullUpfront, PaymentTypeDepositBalance, PaymentTypeInstallmentPlan:
		return t, nil
	default:
		return "", customError.WrapInvalidPolicyParameters("type", "unknown payment type %q", s)
	}
}

// PaymentStructure is implemented only by FullUpfront, DepositBalance and
// InstallmentPlan.
type PaymentStructure interface {
	Kind() PaymentType
	Validate() error
	isPaymentStructure()
}

// FullUpfront takes 100% of the total on confirmation.
type FullUpfront struct{}

// DepositBalance takes a deposit on confirmation and the balance a number of
// days before the event.
type DepositBalance struct {
	DepositPercentage decimal.Decimal `json:"deposit_percentage"`
	BalanceDueDays    int             `json:"balance_due_days"`
}

// InstallmentPlan takes a first payment on confirmation and splits the rest
// evenly over the remaining installments.
type InstallmentPlan struct {
	FirstPaymentPercentage  decimal.Decimal `json:"first_payment_percentage"`
	InstallmentCount        int             `json:"installment_count"`
	InstallmentIntervalDays int             `json:"installment_interval_days"`
	FinalPaymentDaysBefore  int             `json:"final_payment_days_before"`
}

func (FullUpfront) Kind() PaymentType     { return PaymentTypeFullUpfront }
func (DepositBalance) Kind() PaymentType  { return PaymentTypeDepositBalance }
func (InstallmentPlan) Kind() PaymentType { return PaymentTypeInstallmentPlan }

func (FullUpfront) isPaymentStructure()     {}
func (DepositBalance) isPaymentStructure()  {}
func (InstallmentPlan) isPaymentStructure() {}

func (FullUpfront) Validate() error { return nil }

func (d DepositBalance) Validate() error {
	if err := percentInRange("deposit_percentage", d.DepositPercentage, 10, 50); err != nil {
		return err
	}
	return intInRange("balance_due_days", d.BalanceDueDays, 1, 30)
}

func (p InstallmentPlan) Validate() error {
	if err := percentInRange("first_payment_percentage", p.FirstPaymentPercentage, 20, 40); err != nil {
		return err
	}
	if err := intInRange("installment_count", p.InstallmentCount, 2, 4); err != nil {
		return err
	}
	if err := intInRange("installment_interval_days", p.InstallmentIntervalDays, 1, 90); err != nil {
		return err
	}
	return intInRange("final_payment_days_before", p.FinalPaymentDaysBefore, 1, 30)
}

// DefaultPaymentStructure returns the listing-form defaults for a payment type.
func DefaultPaymentStructure(kind PaymentType) (PaymentStructure, error) {
	switch kind {
	case PaymentTypeFullUpfront:
		return FullUpfront{}, nil
	case PaymentTypeDepositBalance:
		return DepositBalance{
			DepositPercentage: decimal.NewFromInt(30),
			BalanceDueDays:    7,
		}, nil
	case PaymentTypeInstallmentPlan:
		return InstallmentPlan{
			FirstPaymentPercentage:  decimal.NewFromInt(25),
			InstallmentCount:        3,
			InstallmentIntervalDays: 30,
			FinalPaymentDaysBefore:  7,
		}, nil
	default:
		return nil, customError.WrapInvalidPolicyParameters("type", "unknown payment type %q", kind)
	}
}

// PaymentPlan carries a PaymentStructure through JSON and the database. It is
// encoded as an object with a "type" discriminator next to the variant fields.
type PaymentPlan struct {
	PaymentStructure
}

type paymentPlanJSON struct {
	Type                    PaymentType      `json:"type"`
	DepositPercentage       *decimal.Decimal `json:"deposit_percentage,omitempty"`
	BalanceDueDays          *int             `json:"balance_due_days,omitempty"`
	FirstPaymentPercentage  *decimal.Decimal `json:"first_payment_percentage,omitempty"`
	InstallmentCount        *int             `json:"installment_count,omitempty"`
	InstallmentIntervalDays *int             `json:"installment_interval_days,omitempty"`
	FinalPaymentDaysBefore  *int             `json:"final_payment_days_before,omitempty"`
}

func (p PaymentPlan) MarshalJSON() ([]byte, error) {
	out := paymentPlanJSON{}
	switch s := p.PaymentStructure.(type) {
	case FullUpfront:
		out.Type = PaymentTypeFullUpfront
	case DepositBalance:
		out.Type = PaymentTypeDepositBalance
		out.DepositPercentage = &s.DepositPercentage
		out.BalanceDueDays = &s.BalanceDueDays
	case InstallmentPlan:
		out.Type = PaymentTypeInstallmentPlan
		out.FirstPaymentPercentage = &s.FirstPaymentPercentage
		out.InstallmentCount = &s.InstallmentCount
		out.InstallmentIntervalDays = &s.InstallmentIntervalDays
		out.FinalPaymentDaysBefore = &s.FinalPaymentDaysBefore
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("payment plan: unsupported structure %T", s)
	}
	return json.Marshal(out)
}

// UnmarshalJSON fills fields the document leaves out with the defaults of its
// type. Range checks are left to Validate.
func (p *PaymentPlan) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		p.PaymentStructure = nil
		return nil
	}
	var in paymentPlanJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := ParsePaymentType(string(in.Type))
	if err != nil {
		return err
	}
	structure, _ := DefaultPaymentStructure(kind)

	switch s := structure.(type) {
	case DepositBalance:
		if in.DepositPercentage != nil {
			s.DepositPercentage = *in.DepositPercentage
		}
		if in.BalanceDueDays != nil {
			s.BalanceDueDays = *in.BalanceDueDays
		}
		structure = s
	case InstallmentPlan:
		if in.FirstPaymentPercentage != nil {
			s.FirstPaymentPercentage = *in.FirstPaymentPercentage
		}
		if in.InstallmentCount != nil {
			s.InstallmentCount = *in.InstallmentCount
		}
		if in.InstallmentIntervalDays != nil {
			s.InstallmentIntervalDays = *in.InstallmentIntervalDays
		}
		if in.FinalPaymentDaysBefore != nil {
			s.FinalPaymentDaysBefore = *in.FinalPaymentDaysBefore
		}
		structure = s
	}

	p.PaymentStructure = structure
	return nil
}

// Validate rejects an empty plan as well as out-of-range variant fields.
func (p PaymentPlan) Validate() error {
	if p.PaymentStructure == nil {
		return customError.WrapInvalidPolicyParameters("payment_structure", "is required")
	}
	return p.PaymentStructure.Validate()
}

func (p PaymentPlan) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PaymentPlan) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// PeriodUnit is the unit of a notice or grace period.
type PeriodUnit string

const (
	PeriodHours PeriodUnit = "hours"
	PeriodDays  PeriodUnit = "days"
)

// Period is a length of time as entered on a listing form.
type Period struct {
	Value int        `json:"value"`
	Unit  PeriodUnit `json:"unit"`
}

func (p Period) Validate(field string) error {
	if p.Value < 0 {
		return customError.WrapInvalidPolicyParameters(field, "must not be negative")
	}
	if p.Unit != PeriodHours && p.Unit != PeriodDays {
		return customError.WrapInvalidPolicyParameters(field, "unknown unit %q", p.Unit)
	}
	return nil
}

// Hours returns the period in hours.
func (p Period) Hours() int {
	if p.Unit == PeriodDays {
		return p.Value * 24
	}
	return p.Value
}

// Days returns the period in whole days, rounding partial days up.
func (p Period) Days() int {
	if p.Unit == PeriodDays {
		return p.Value
	}
	return (p.Value + 23) / 24
}

// CancellationPolicy decides how much of the amount paid returns to the payer
// on cancellation.
type CancellationPolicy struct {
	NoticePeriod            Period          `json:"notice_period"`
	RefundPercentage        decimal.Decimal `json:"refund_percentage"`
	TransactionFeeDeduction decimal.Decimal `json:"transaction_fee_deduction"`
	ProcessingFeeAmount     decimal.Decimal `json:"processing_fee_amount"`
}

func (c CancellationPolicy) Validate() error {
	if err := c.NoticePeriod.Validate("notice_period"); err != nil {
		return err
	}
	if err := percentInRange("refund_percentage", c.RefundPercentage, 0, 100); err != nil {
		return err
	}
	if err := percentInRange("transaction_fee_deduction", c.TransactionFeeDeduction, 0, 100); err != nil {
		return err
	}
	if c.ProcessingFeeAmount.IsNegative() {
		return customError.WrapInvalidPolicyParameters("processing_fee_amount", "must not be negative")
	}
	if !utils.HasMinorUnitPrecision(c.ProcessingFeeAmount) {
		return customError.WrapInvalidPolicyParameters("processing_fee_amount", "%s has more than %d decimal places", c.ProcessingFeeAmount.String(), utils.MinorUnitPlaces)
	}
	return nil
}

// DefaultCancellationPolicy returns the cancellation terms a listing gets for
// its payment type when the owner does not override them.
func DefaultCancellationPolicy(kind PaymentType) CancellationPolicy {
	policy := CancellationPolicy{
		NoticePeriod:            Period{Value: 7, Unit: PeriodDays},
		TransactionFeeDeduction: decimal.NewFromInt(3),
	}
	switch kind {
	case PaymentTypeDepositBalance:
		policy.RefundPercentage = decimal.NewFromInt(100)
		policy.ProcessingFeeAmount = decimal.Zero
	case PaymentTypeInstallmentPlan:
		policy.RefundPercentage = decimal.NewFromInt(85)
		policy.ProcessingFeeAmount = decimal.NewFromInt(750)
	default:
		policy.RefundPercentage = decimal.NewFromInt(90)
		policy.ProcessingFeeAmount = decimal.NewFromInt(500)
	}
	return policy
}

func (c CancellationPolicy) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CancellationPolicy) Scan(src interface{}) error {
	return scanJSON(src, c)
}

const LateFeeEnforcementAutomatic = "automatic"

// LatePaymentPolicy governs the fee added to a stage paid after its due date.
type LatePaymentPolicy struct {
	GracePeriod              Period          `json:"grace_period"`
	DailyRate                decimal.Decimal `json:"late_payment_daily_rate"`
	MaximumLateFeePercentage decimal.Decimal `json:"maximum_late_fee_percentage"`
	Compounding              bool            `json:"compounding"`
	Enforcement              string          `json:"enforcement"`
}

func (l LatePaymentPolicy) Validate() error {
	if err := l.GracePeriod.Validate("grace_period"); err != nil {
		return err
	}
	if err := percentInRange("late_payment_daily_rate", l.DailyRate, 0, 5); err != nil {
		return err
	}
	if err := percentInRange("maximum_late_fee_percentage", l.MaximumLateFeePercentage, 0, 100); err != nil {
		return err
	}
	if l.Enforcement != LateFeeEnforcementAutomatic {
		return customError.WrapInvalidPolicyParameters("enforcement", "unsupported enforcement %q", l.Enforcement)
	}
	return nil
}

func DefaultLatePaymentPolicy() LatePaymentPolicy {
	return LatePaymentPolicy{
		GracePeriod:              Period{Value: 3, Unit: PeriodDays},
		DailyRate:                decimal.NewFromInt(2),
		MaximumLateFeePercentage: decimal.NewFromInt(25),
		Compounding:              false,
		Enforcement:              LateFeeEnforcementAutomatic,
	}
}

func (l LatePaymentPolicy) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *LatePaymentPolicy) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func percentInRange(field string, v decimal.Decimal, min, max int64) error {
	if v.LessThan(decimal.NewFromInt(min)) || v.GreaterThan(decimal.NewFromInt(max)) {
		return customError.WrapInvalidPolicyParameters(field, "%s is outside %d-%d", v.String(), min, max)
	}
	if !utils.HasMinorUnitPrecision(v) {
		return customError.WrapInvalidPolicyParameters(field, "%s has more than %d decimal places", v.String(), utils.MinorUnitPlaces)
	}
	return nil
}

func intInRange(field string, v, min, max int) error {
	if v < min || v > max {
		return customError.WrapInvalidPolicyParameters(field, "%d is outside %d-%d", v, min, max)
	}
	return nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}
