package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func terms(lease, down string, months int, frequency string, start time.Time) domain.LoanTerms {
	return domain.LoanTerms{
		LeaseAmount: decimal.RequireFromString(lease),
		DownPayment: decimal.RequireFromString(down),
		TermMonths:  months,
		Frequency:   frequency,
		StartDate:   start,
	}
}

func sum(schedule []domain.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.Amount)
	}
	return total
}

func TestGenerateSchedule_Monthly(t *testing.T) {
	schedule, err := GenerateSchedule(terms("12000", "2000", 10, domain.FrequencyMonthly, day(2024, 1, 15)))
	require.NoError(t, err)
	require.Len(t, schedule, 10)

	for i, inst := range schedule {
		assert.Equal(t, i+1, inst.Sequence)
		assert.Equal(t, day(2024, time.Month(i+1), 15), inst.DueDate)
		assert.True(t, inst.Amount.Equal(decimal.NewFromInt(1000)), "installment %d is %s", i+1, inst.Amount)
	}
	assert.True(t, sum(schedule).Equal(decimal.NewFromInt(10000)))
}

func TestGenerateSchedule_MonthlyClampsEndOfMonth(t *testing.T) {
	schedule, err := GenerateSchedule(terms("3100", "100", 4, domain.FrequencyMonthly, day(2024, 1, 31)))
	require.NoError(t, err)

	expected := []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31), day(2024, 4, 30)}
	for i, inst := range schedule {
		assert.Equal(t, expected[i], inst.DueDate)
	}
}

func TestGenerateSchedule_BiWeekly(t *testing.T) {
	start := day(2024, 1, 1)
	schedule, err := GenerateSchedule(terms("1300", "100", 3, domain.FrequencyBiWeekly, start))
	require.NoError(t, err)
	require.Len(t, schedule, 6)

	for i, inst := range schedule {
		assert.Equal(t, start.AddDate(0, 0, 14*(i+1)), inst.DueDate)
		assert.True(t, inst.Amount.Equal(decimal.NewFromInt(200)))
	}
}

func TestGenerateSchedule_SemiMonthly(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		expected []time.Time
	}{
		{"after the 15th", day(2024, 2, 20), []time.Time{day(2024, 3, 1), day(2024, 3, 15)}},
		{"on the 1st", day(2024, 2, 1), []time.Time{day(2024, 2, 1), day(2024, 2, 15)}},
		{"before the 15th", day(2024, 2, 10), []time.Time{day(2024, 2, 15), day(2024, 3, 1)}},
		{"on the 15th", day(2024, 2, 15), []time.Time{day(2024, 2, 15), day(2024, 3, 1)}},
		{"year end", day(2024, 12, 20), []time.Time{day(2025, 1, 1), day(2025, 1, 15)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := GenerateSchedule(terms("1000", "0", 1, domain.FrequencySemiMonthly, tt.start))
			require.NoError(t, err)
			require.Len(t, schedule, 2)
			assert.Equal(t, tt.expected[0], schedule[0].DueDate)
			assert.Equal(t, tt.expected[1], schedule[1].DueDate)
		})
	}
}

func TestGenerateSchedule_RemainderOnLastInstallment(t *testing.T) {
	schedule, err := GenerateSchedule(terms("100", "0", 3, domain.FrequencyMonthly, day(2024, 1, 1)))
	require.NoError(t, err)

	assert.True(t, schedule[0].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, schedule[1].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, schedule[2].Amount.Equal(decimal.RequireFromString("33.34")))
	assert.True(t, sum(schedule).Equal(decimal.NewFromInt(100)))
}

func TestGenerateSchedule_RoundingUpWouldEmptyLastInstallment(t *testing.T) {
	// 0.06 over 4 rounds to 0.02 and would leave nothing for the last due
	schedule, err := GenerateSchedule(terms("0.06", "0", 2, domain.FrequencyBiWeekly, day(2024, 1, 1)))
	require.NoError(t, err)
	require.Len(t, schedule, 4)

	for _, inst := range schedule[:3] {
		assert.True(t, inst.Amount.Equal(decimal.RequireFromString("0.01")))
	}
	assert.True(t, schedule[3].Amount.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, sum(schedule).Equal(decimal.RequireFromString("0.06")))
}

func TestGenerateSchedule_SumAndCountProperties(t *testing.T) {
	amounts := []string{"10000", "9999.99", "12345.67", "500.01", "87654.32"}
	frequencies := []string{domain.FrequencyMonthly, domain.FrequencyBiWeekly, domain.FrequencySemiMonthly}

	for _, amount := range amounts {
		for _, frequency := range frequencies {
			for _, months := range []int{1, 7, 12, 36, 60} {
				schedule, err := GenerateSchedule(terms(amount, "0", months, frequency, day(2024, 5, 31)))
				require.NoError(t, err)

				expectedCount := months * 2
				if frequency == domain.FrequencyMonthly {
					expectedCount = months
				}
				assert.Len(t, schedule, expectedCount)
				assert.True(t, sum(schedule).Equal(decimal.RequireFromString(amount)), "%s %s %d", amount, frequency, months)

				for i := 1; i < len(schedule); i++ {
					assert.True(t, schedule[i].DueDate.After(schedule[i-1].DueDate))
				}
				for _, inst := range schedule {
					assert.True(t, inst.Amount.IsPositive())
					assert.True(t, inst.Amount.Equal(inst.Amount.Round(2)))
				}
			}
		}
	}
}

func TestGenerateSchedule_InvalidTerms(t *testing.T) {
	tests := []struct {
		name  string
		terms domain.LoanTerms
	}{
		{"zero term", terms("1000", "0", 0, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"negative term", terms("1000", "0", -3, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"zero lease", terms("0", "0", 12, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"negative down payment", terms("1000", "-1", 12, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"down payment covers lease", terms("1000", "1000", 12, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"down payment above lease", terms("1000", "1500", 12, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"unknown frequency", terms("1000", "0", 12, "weekly", day(2024, 1, 1))},
		{"too small to split", terms("0.01", "0", 1, domain.FrequencyBiWeekly, day(2024, 1, 1))},
		{"missing start", terms("1000", "0", 12, domain.FrequencyMonthly, time.Time{})},
		{"sub cent lease", terms("100.005", "0", 3, domain.FrequencyMonthly, day(2024, 1, 1))},
		{"sub cent down payment", terms("1000", "10.001", 12, domain.FrequencyMonthly, day(2024, 1, 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSchedule(tt.terms)
			assert.True(t, errors.Is(err, customError.ErrInvalidTerms), "got %v", err)
		})
	}
}

func TestPerDueAmount(t *testing.T) {
	amount, err := PerDueAmount(terms("12000", "2000", 10, domain.FrequencyMonthly, day(2024, 1, 15)))
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(1000)))

	amount, err = PerDueAmount(terms("1000", "0", 12, domain.FrequencyBiWeekly, day(2024, 1, 15)))
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("41.67")))
}

func TestNewLoan_FullyCoveredByDownPayment(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	loan, schedule, err := NewLoan(terms("5000", "5000", 12, domain.FrequencyMonthly, day(2024, 1, 15)), uuid.New(), uuid.New(), now)
	require.NoError(t, err)

	assert.Empty(t, schedule)
	assert.True(t, loan.IsClosed())
	assert.True(t, loan.AmountFinanced.IsZero())
	assert.True(t, loan.PerDuePaymentAmount.IsZero())

	regenerated, err := ScheduleFor(loan)
	require.NoError(t, err)
	assert.Empty(t, regenerated)
}

func TestNewLoan_Active(t *testing.T) {
	customerID, vehicleID := uuid.New(), uuid.New()
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	loan, schedule, err := NewLoan(terms("12000", "2000", 10, domain.FrequencyMonthly, day(2024, 1, 15)), customerID, vehicleID, now)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.Equal(t, customerID, loan.CustomerID)
	assert.Equal(t, vehicleID, loan.VehicleID)
	assert.True(t, loan.AmountFinanced.Equal(decimal.NewFromInt(10000)))
	assert.True(t, loan.PerDuePaymentAmount.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, schedule, 10)

	regenerated, err := ScheduleFor(loan)
	require.NoError(t, err)
	assert.Equal(t, schedule, regenerated)
}

func TestNewLoan_RejectsInvalidTerms(t *testing.T) {
	_, _, err := NewLoan(terms("5000", "6000", 12, domain.FrequencyMonthly, day(2024, 1, 15)), uuid.New(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, customError.ErrInvalidTerms)
}
