package ledger

import (
	"time"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/utils"

	"github.com/shopspring/decimal"
)

// Summarize partitions the schedule at now. Every installment lands in exactly one of
// Paid, Unpaid or Overdue, keeping schedule order.
func Summarize(b *Book, now time.Time) domain.LedgerSummary {
	summary := domain.LedgerSummary{
		LoanID:         b.Loan.ID,
		Paid:           []domain.Installment{},
		Unpaid:         []domain.Installment{},
		Overdue:        []domain.Installment{},
		TotalCollected: decimal.Zero,
		PendingAmount:  decimal.Zero,
		OverdueAmount:  decimal.Zero,
		AmountFinanced: b.Loan.AmountFinanced,
		Status:         b.Loan.Status,
	}

	for _, inst := range b.Schedule {
		switch status(b, inst, now) {
		case domain.ScheduleStatusPaid:
			summary.Paid = append(summary.Paid, inst)
			summary.TotalCollected = summary.TotalCollected.Add(b.completed(inst.DueDate).Amount)
		case domain.ScheduleStatusOverdue:
			summary.Overdue = append(summary.Overdue, inst)
			summary.OverdueAmount = summary.OverdueAmount.Add(inst.Amount)
			summary.PendingAmount = summary.PendingAmount.Add(inst.Amount)
		default:
			summary.Unpaid = append(summary.Unpaid, inst)
			summary.PendingAmount = summary.PendingAmount.Add(inst.Amount)
		}
	}

	return summary
}

// Entries returns the schedule with a status per installment
func Entries(b *Book, now time.Time) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(b.Schedule))
	for _, inst := range b.Schedule {
		entry := domain.ScheduleEntry{Installment: inst, Status: status(b, inst, now)}
		if p := b.completed(inst.DueDate); p != nil {
			id := p.ID
			entry.PaymentID = &id
		}
		entries = append(entries, entry)
	}
	return entries
}

// OverdueItems lists the overdue installments of the book with their age in days
func OverdueItems(b *Book, now time.Time) []domain.OverdueItem {
	var items []domain.OverdueItem
	for _, inst := range b.Schedule {
		if status(b, inst, now) != domain.ScheduleStatusOverdue {
			continue
		}
		items = append(items, domain.OverdueItem{
			LoanID:      b.Loan.ID,
			CustomerID:  b.Loan.CustomerID,
			DueDate:     inst.DueDate,
			Amount:      inst.Amount,
			DaysOverdue: utils.DaysBetween(inst.DueDate, now),
		})
	}
	return items
}

// UnpaidBetween returns the unpaid installments due in [from, to], both calendar dates inclusive
func UnpaidBetween(b *Book, from, to time.Time) []domain.Installment {
	from, to = utils.DateOnly(from), utils.DateOnly(to)

	var found []domain.Installment
	if b.Loan.IsClosed() {
		return found
	}
	for _, inst := range b.Schedule {
		if inst.DueDate.Before(from) || inst.DueDate.After(to) {
			continue
		}
		if b.completed(inst.DueDate) == nil {
			found = append(found, inst)
		}
	}
	return found
}

func status(b *Book, inst domain.Installment, now time.Time) string {
	switch {
	case b.completed(inst.DueDate) != nil:
		return domain.ScheduleStatusPaid
	case b.deferred(inst.DueDate):
		return domain.ScheduleStatusUpcoming
	case utils.IsDateOverdue(inst.DueDate, now):
		return domain.ScheduleStatusOverdue
	default:
		return domain.ScheduleStatusUpcoming
	}
}
