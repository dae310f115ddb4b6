package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sumPercentages(stages []domain.Stage) decimal.Decimal {
	total := decimal.Zero
	for _, s := range stages {
		total = total.Add(s.Percentage)
	}
	return total
}

func TestResolveSchedule(t *testing.T) {
	tests := []struct {
		name        string
		structure   domain.PaymentStructure
		percentages []string
		rules       []domain.DueRule
	}{
		{
			name:        "full upfront",
			structure:   domain.FullUpfront{},
			percentages: []string{"100"},
			rules:       []domain.DueRule{domain.OnBookingConfirmation()},
		},
		{
			name:        "deposit and balance 30/70 due 7 days before",
			structure:   domain.DepositBalance{DepositPercentage: dec("30"), BalanceDueDays: 7},
			percentages: []string{"30", "70"},
			rules:       []domain.DueRule{domain.OnBookingConfirmation(), domain.DaysBeforeEvent(7)},
		},
		{
			name: "three installments 25/37.5/37.5",
			structure: domain.InstallmentPlan{
				FirstPaymentPercentage:  dec("25"),
				InstallmentCount:        3,
				InstallmentIntervalDays: 30,
				FinalPaymentDaysBefore:  7,
			},
			percentages: []string{"25", "37.5", "37.5"},
			rules: []domain.DueRule{
				domain.OnBookingConfirmation(),
				domain.DaysAfterBooking(30),
				domain.DaysBeforeEvent(7),
			},
		},
		{
			name: "uneven remainder lands on the final installment",
			structure: domain.InstallmentPlan{
				FirstPaymentPercentage:  dec("20"),
				InstallmentCount:        4,
				InstallmentIntervalDays: 14,
				FinalPaymentDaysBefore:  10,
			},
			percentages: []string{"20", "26.66", "26.66", "26.68"},
			rules: []domain.DueRule{
				domain.OnBookingConfirmation(),
				domain.DaysAfterBooking(14),
				domain.DaysAfterBooking(28),
				domain.DaysBeforeEvent(10),
			},
		},
		{
			name: "two installments",
			structure: domain.InstallmentPlan{
				FirstPaymentPercentage:  dec("40"),
				InstallmentCount:        2,
				InstallmentIntervalDays: 30,
				FinalPaymentDaysBefore:  7,
			},
			percentages: []string{"40", "60"},
			rules:       []domain.DueRule{domain.OnBookingConfirmation(), domain.DaysBeforeEvent(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := ResolveSchedule(tt.structure)
			require.NoError(t, err)
			require.Len(t, stages, len(tt.percentages))

			for i, stage := range stages {
				assert.True(t, stage.Percentage.Equal(dec(tt.percentages[i])),
					"stage %d: expected %s, got %s", i, tt.percentages[i], stage.Percentage)
				assert.Equal(t, tt.rules[i], stage.Due)
			}
			assert.True(t, sumPercentages(stages).Equal(decimal.NewFromInt(100)))
		})
	}
}

func TestResolveSchedule_SumsToHundredForEveryValidPlan(t *testing.T) {
	for first := 20; first <= 40; first++ {
		for count := 2; count <= 4; count++ {
			plan := domain.InstallmentPlan{
				FirstPaymentPercentage:  decimal.NewFromInt(int64(first)),
				InstallmentCount:        count,
				InstallmentIntervalDays: 10,
				FinalPaymentDaysBefore:  7,
			}
			stages, err := ResolveSchedule(plan)
			require.NoError(t, err)
			assert.Len(t, stages, count)
			assert.True(t, sumPercentages(stages).Equal(decimal.NewFromInt(100)),
				"first=%d count=%d sums to %s", first, count, sumPercentages(stages))
		}
	}

	for deposit := 10; deposit <= 50; deposit++ {
		stages, err := ResolveSchedule(domain.DepositBalance{
			DepositPercentage: decimal.NewFromInt(int64(deposit)),
			BalanceDueDays:    7,
		})
		require.NoError(t, err)
		assert.True(t, sumPercentages(stages).Equal(decimal.NewFromInt(100)))
	}
}

func TestResolveSchedule_InvalidParameters(t *testing.T) {
	tests := []struct {
		name      string
		structure domain.PaymentStructure
	}{
		{name: "missing structure", structure: nil},
		{name: "deposit below 10", structure: domain.DepositBalance{DepositPercentage: dec("5"), BalanceDueDays: 7}},
		{name: "deposit above 50", structure: domain.DepositBalance{DepositPercentage: dec("50.01"), BalanceDueDays: 7}},
		{name: "balance due days zero", structure: domain.DepositBalance{DepositPercentage: dec("30"), BalanceDueDays: 0}},
		{name: "balance due days above 30", structure: domain.DepositBalance{DepositPercentage: dec("30"), BalanceDueDays: 31}},
		{name: "first payment below 20", structure: domain.InstallmentPlan{FirstPaymentPercentage: dec("19"), InstallmentCount: 3, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}},
		{name: "first payment above 40", structure: domain.InstallmentPlan{FirstPaymentPercentage: dec("41"), InstallmentCount: 3, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}},
		{name: "single installment", structure: domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 1, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}},
		{name: "five installments", structure: domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 5, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}},
		{name: "zero interval", structure: domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 3, InstallmentIntervalDays: 0, FinalPaymentDaysBefore: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := ResolveSchedule(tt.structure)
			assert.Nil(t, stages)
			assert.True(t, errors.Is(err, customError.ErrInvalidPolicyParameters), "got %v", err)
		})
	}
}

func TestMaterializeSchedule(t *testing.T) {
	bookedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	eventDate := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	t.Run("deposit balance dates", func(t *testing.T) {
		dated, err := MaterializeSchedule(domain.DepositBalance{DepositPercentage: dec("30"), BalanceDueDays: 7}, bookedAt, eventDate)
		require.NoError(t, err)
		require.Len(t, dated, 2)
		assert.Equal(t, bookedAt, dated[0].DueDate)
		assert.Equal(t, eventDate.AddDate(0, 0, -7), dated[1].DueDate)
	})

	t.Run("installment dates", func(t *testing.T) {
		plan := domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 3, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}
		dated, err := MaterializeSchedule(plan, bookedAt, eventDate)
		require.NoError(t, err)
		require.Len(t, dated, 3)
		assert.Equal(t, bookedAt, dated[0].DueDate)
		assert.Equal(t, bookedAt.AddDate(0, 0, 30), dated[1].DueDate)
		assert.Equal(t, eventDate.AddDate(0, 0, -7), dated[2].DueDate)
	})

	t.Run("balance window already passed is due immediately", func(t *testing.T) {
		soon := bookedAt.AddDate(0, 0, 3)
		dated, err := MaterializeSchedule(domain.DepositBalance{DepositPercentage: dec("30"), BalanceDueDays: 7}, bookedAt, soon)
		require.NoError(t, err)
		assert.Equal(t, bookedAt, dated[1].DueDate)
	})

	t.Run("installment after the event is rejected", func(t *testing.T) {
		plan := domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 3, InstallmentIntervalDays: 60, FinalPaymentDaysBefore: 7}
		_, err := MaterializeSchedule(plan, bookedAt, bookedAt.AddDate(0, 0, 45))
		assert.True(t, errors.Is(err, customError.ErrInvalidPolicyParameters))
	})

	t.Run("installment after the final stage is rejected", func(t *testing.T) {
		plan := domain.InstallmentPlan{FirstPaymentPercentage: dec("25"), InstallmentCount: 3, InstallmentIntervalDays: 30, FinalPaymentDaysBefore: 7}
		_, err := MaterializeSchedule(plan, bookedAt, bookedAt.AddDate(0, 0, 32))
		assert.True(t, errors.Is(err, customError.ErrInvalidPolicyParameters))
	})

	t.Run("event before booking is rejected", func(t *testing.T) {
		_, err := MaterializeSchedule(domain.FullUpfront{}, bookedAt, bookedAt.Add(-time.Hour))
		assert.True(t, errors.Is(err, customError.ErrInvalidPolicyParameters))
	})
}

func TestStageAmounts(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		stages   []string
		expected []string
	}{
		{name: "deposit on 150000", total: "150000", stages: []string{"30", "70"}, expected: []string{"45000", "105000"}},
		{name: "installments on 100000", total: "100000", stages: []string{"25", "37.5", "37.5"}, expected: []string{"25000", "37500", "37500"}},
		{name: "remainder to last stage", total: "100.01", stages: []string{"33.33", "33.33", "33.34"}, expected: []string{"33.33", "33.33", "33.35"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := make([]domain.Stage, len(tt.stages))
			for i, p := range tt.stages {
				stages[i] = domain.Stage{Percentage: dec(p)}
			}

			amounts := StageAmounts(dec(tt.total), stages)
			sum := decimal.Zero
			for i, a := range amounts {
				assert.True(t, a.Equal(dec(tt.expected[i])), "stage %d: expected %s, got %s", i, tt.expected[i], a)
				sum = sum.Add(a)
			}
			assert.True(t, sum.Equal(dec(tt.total)))
		})
	}
}
