// Package ledger holds the installment schedule and the payment rules of a loan.
// Everything here is pure: callers pass snapshots in and persist what comes back.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/utils"

	"github.com/shopspring/decimal"
)

const biWeeklyDays = 14

// InstallmentCount returns how many dues a term produces for the frequency
func InstallmentCount(termMonths int, frequency string) (int, error) {
	switch frequency {
	case domain.FrequencyMonthly:
		return termMonths, nil
	case domain.FrequencyBiWeekly, domain.FrequencySemiMonthly:
		return termMonths * 2, nil
	default:
		return 0, customError.WrapInvalidTerms(fmt.Sprintf("unknown payment frequency %q", frequency))
	}
}

func validateTerms(terms domain.LoanTerms) error {
	switch {
	case terms.TermMonths <= 0:
		return customError.WrapInvalidTerms("term must be greater than 0 months")
	case !terms.LeaseAmount.IsPositive():
		return customError.WrapInvalidTerms("lease amount must be greater than 0")
	case terms.DownPayment.IsNegative():
		return customError.WrapInvalidTerms("down payment cannot be negative")
	case !utils.IsMoney(terms.LeaseAmount) || !utils.IsMoney(terms.DownPayment):
		return customError.WrapInvalidTerms(fmt.Sprintf("amounts cannot have more than %d decimal places", utils.MoneyPlaces))
	case terms.DownPayment.GreaterThanOrEqual(terms.LeaseAmount):
		return customError.WrapInvalidTerms("down payment must be lower than the lease amount")
	case terms.StartDate.IsZero():
		return customError.WrapInvalidTerms("start date is required")
	}
	return nil
}

// PerDueAmount returns the flat amount of every installment but the last.
func PerDueAmount(terms domain.LoanTerms) (decimal.Decimal, error) {
	if err := validateTerms(terms); err != nil {
		return decimal.Zero, err
	}
	count, err := InstallmentCount(terms.TermMonths, terms.Frequency)
	if err != nil {
		return decimal.Zero, err
	}
	return perDue(terms.AmountFinanced(), count)
}

// perDue rounds financed/count to the minor unit. When rounding up would leave the
// final installment non-positive the amount is truncated instead.
func perDue(financed decimal.Decimal, count int) (decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(count))
	exact := financed.Div(n)

	amount := utils.RoundMoney(exact)
	if amount.Mul(n.Sub(decimal.NewFromInt(1))).GreaterThanOrEqual(financed) {
		amount = exact.Truncate(utils.MoneyPlaces)
	}
	if !amount.IsPositive() {
		return decimal.Zero, customError.WrapInvalidTerms(
			fmt.Sprintf("amount financed %s is too small for %d installments", financed.StringFixed(2), count))
	}
	return amount, nil
}

// GenerateSchedule derives the ordered installments of a lease. The amounts sum to
// LeaseAmount - DownPayment exactly; the last installment carries the rounding remainder.
func GenerateSchedule(terms domain.LoanTerms) ([]domain.Installment, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}
	count, err := InstallmentCount(terms.TermMonths, terms.Frequency)
	if err != nil {
		return nil, err
	}

	financed := terms.AmountFinanced()
	amount, err := perDue(financed, count)
	if err != nil {
		return nil, err
	}

	dueDates := dueDates(utils.DateOnly(terms.StartDate), terms.Frequency, count)

	schedule := make([]domain.Installment, 0, count)
	allocated := decimal.Zero
	for i, due := range dueDates {
		installmentAmount := amount
		if i == count-1 {
			installmentAmount = financed.Sub(allocated)
		}
		allocated = allocated.Add(installmentAmount)

		schedule = append(schedule, domain.Installment{
			Sequence: i + 1,
			DueDate:  due,
			Amount:   installmentAmount,
		})
	}

	return schedule, nil
}

func dueDates(start time.Time, frequency string, count int) []time.Time {
	dates := make([]time.Time, 0, count)

	switch frequency {
	case domain.FrequencyBiWeekly:
		for k := 1; k <= count; k++ {
			dates = append(dates, start.AddDate(0, 0, biWeeklyDays*k))
		}

	case domain.FrequencyMonthly:
		// First due falls on the start date; every later one is computed from the
		// start so a clamped February does not drag the following months to the 28th.
		for k := 0; k < count; k++ {
			dates = append(dates, utils.AddMonthsClamped(start, k))
		}

	case domain.FrequencySemiMonthly:
		due := firstSemiMonthlyDue(start)
		for len(dates) < count {
			dates = append(dates, due)
			due = nextSemiMonthlyDue(due)
		}
	}

	return dates
}

// firstSemiMonthlyDue is the earliest 1st or 15th on or after start
func firstSemiMonthlyDue(start time.Time) time.Time {
	y, m, d := start.Date()
	switch {
	case d == 1:
		return start
	case d <= 15:
		return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextSemiMonthlyDue(due time.Time) time.Time {
	y, m, d := due.Date()
	if d == 1 {
		return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// NewLoan builds the loan for a lease assignment. A lease fully covered by its down
// payment skips schedule generation and is closed from the start.
func NewLoan(terms domain.LoanTerms, customerID, vehicleID uuid.UUID, now time.Time) (*domain.Loan, []domain.Installment, error) {
	loan := &domain.Loan{
		ID:               uuid.New(),
		CustomerID:       customerID,
		VehicleID:        vehicleID,
		LeaseAmount:      terms.LeaseAmount,
		DownPayment:      terms.DownPayment,
		TermMonths:       terms.TermMonths,
		PaymentFrequency: terms.Frequency,
		StartDate:        utils.DateOnly(terms.StartDate),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if terms.LeaseAmount.IsPositive() && terms.LeaseAmount.Equal(terms.DownPayment) {
		loan.AmountFinanced = decimal.Zero
		loan.PerDuePaymentAmount = decimal.Zero
		loan.Status = domain.LoanStatusClosed
		return loan, []domain.Installment{}, nil
	}

	schedule, err := GenerateSchedule(terms)
	if err != nil {
		return nil, nil, err
	}

	loan.AmountFinanced = terms.AmountFinanced()
	loan.PerDuePaymentAmount = schedule[0].Amount
	loan.Status = domain.LoanStatusActive
	return loan, schedule, nil
}

// ScheduleFor regenerates the schedule of a persisted loan
func ScheduleFor(loan *domain.Loan) ([]domain.Installment, error) {
	if loan.LeaseAmount.Equal(loan.DownPayment) {
		return []domain.Installment{}, nil
	}
	return GenerateSchedule(loan.Terms())
}
