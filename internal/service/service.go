package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/notification"
)

// Locker serializes payment flows of one loan across API instances
type Locker interface {
	Acquire(ctx context.Context, loanID uuid.UUID) (func(), error)
}

// ScheduleCache caches rendered loan schedules. Get only returns an entry stored under
// the same stamp.
type ScheduleCache interface {
	Get(ctx context.Context, loanID uuid.UUID, stamp string) (*domain.ScheduleResponse, bool, error)
	Set(ctx context.Context, loanID uuid.UUID, stamp string, schedule *domain.ScheduleResponse) error
	Invalidate(ctx context.Context, loanID uuid.UUID) error
}

// scheduleStamp identifies what a rendered schedule depends on: the calendar day and
// the loan row it was read from. Every ledger write moves loan.UpdatedAt, so a schedule
// rendered before a write can never match the stamp of a later read.
func scheduleStamp(loan *domain.Loan, asOf time.Time) string {
	return asOf.Format(time.DateOnly) + "@" + strconv.FormatInt(loan.UpdatedAt.UnixMicro(), 10)
}

// Notifier delivers customer notifications
type Notifier interface {
	Send(ctx context.Context, msg notification.Message) (bool, error)
}

// Recorder receives ledger events for metrics
type Recorder interface {
	PaymentApplied(method string, amount decimal.Decimal, closedLoan bool)
	PaymentRejected(code string)
	LoanOpened(frequency string, closed bool)
}

type nopRecorder struct{}

func (nopRecorder) PaymentApplied(string, decimal.Decimal, bool) {}
func (nopRecorder) PaymentRejected(string)                       {}
func (nopRecorder) LoanOpened(string, bool)                      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
