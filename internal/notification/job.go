package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/ledger"
	"github.com/segyhp/lease-billing/internal/repository"
	"github.com/segyhp/lease-billing/pkg/utils"
)

// JobStats summarises one reminder run
type JobStats struct {
	LoansScanned int
	DueTomorrow  int
	Overdue      int
	Duplicates   int
	Failures     int
}

// Job sends due_tomorrow and overdue reminders for active loans
type Job struct {
	loans       repository.LoanRepository
	payments    repository.PaymentRepository
	notifier    *Service
	overdueDays int
	log         logrus.FieldLogger
}

func NewJob(loans repository.LoanRepository, payments repository.PaymentRepository, notifier *Service, overdueDays int, log logrus.FieldLogger) *Job {
	return &Job{
		loans:       loans,
		payments:    payments,
		notifier:    notifier,
		overdueDays: overdueDays,
		log:         log,
	}
}

// Run scans every active loan as of now. A failing loan is logged and skipped.
func (j *Job) Run(ctx context.Context, now time.Time) (JobStats, error) {
	var stats JobStats

	loans, err := j.loans.ListActive(ctx)
	if err != nil {
		return stats, err
	}

	ids := make([]uuid.UUID, len(loans))
	for i, loan := range loans {
		ids[i] = loan.ID
	}
	payments, err := j.payments.ListByLoans(ctx, ids)
	if err != nil {
		return stats, err
	}

	today := utils.DateOnly(now)
	tomorrow := today.AddDate(0, 0, 1)

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.LoansScanned++

		book, err := ledger.NewBook(loan, payments[loan.ID])
		if err != nil {
			j.log.WithError(err).WithField("loan_id", loan.ID).Error("Cannot rebuild loan schedule")
			stats.Failures++
			continue
		}

		for _, inst := range ledger.UnpaidBetween(book, tomorrow, tomorrow) {
			j.send(ctx, &stats, Message{
				CustomerID: loan.CustomerID,
				Type:       domain.NotificationDueTomorrow,
				ScopeKey:   domain.ScopeKeyForLoanDue(loan.ID, inst.DueDate),
				Title:      "Payment due tomorrow",
				Body:       fmt.Sprintf("Your installment of %s is due on %s.", inst.Amount.StringFixed(2), inst.DueDateISO()),
			})
		}

		for _, item := range ledger.OverdueItems(book, now) {
			if item.DaysOverdue > j.overdueDays {
				continue
			}
			j.send(ctx, &stats, Message{
				CustomerID: loan.CustomerID,
				Type:       domain.NotificationOverdue,
				ScopeKey:   domain.ScopeKeyForOverdue(loan.ID, item.DueDate, today),
				Title:      "Payment overdue",
				Body: fmt.Sprintf("Your installment of %s due on %s is %d day(s) overdue.",
					item.Amount.StringFixed(2), item.DueDate.Format(time.DateOnly), item.DaysOverdue),
			})
		}
	}

	j.log.WithFields(logrus.Fields{
		"loans":        stats.LoansScanned,
		"due_tomorrow": stats.DueTomorrow,
		"overdue":      stats.Overdue,
		"duplicates":   stats.Duplicates,
		"failures":     stats.Failures,
	}).Info("Reminder job finished")

	return stats, nil
}

func (j *Job) send(ctx context.Context, stats *JobStats, msg Message) {
	sent, err := j.notifier.Send(ctx, msg)
	switch {
	case err != nil:
		j.log.WithError(err).WithField("scope_key", msg.ScopeKey).Error("Failed to send reminder")
		stats.Failures++
	case !sent:
		stats.Duplicates++
	case msg.Type == domain.NotificationDueTomorrow:
		stats.DueTomorrow++
	default:
		stats.Overdue++
	}
}
