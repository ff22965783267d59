package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/notification"
	"github.com/segyhp/lease-billing/internal/repository"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

// memLedger is an in-memory LedgerStore. Writes of fn are discarded when it fails.
type memLedger struct {
	mu       sync.Mutex
	loans    map[uuid.UUID]*domain.Loan
	payments map[uuid.UUID][]*domain.Payment
}

func newMemLedger(loans ...*domain.Loan) *memLedger {
	m := &memLedger{
		loans:    make(map[uuid.UUID]*domain.Loan),
		payments: make(map[uuid.UUID][]*domain.Payment),
	}
	for _, loan := range loans {
		copied := *loan
		m.loans[loan.ID] = &copied
	}
	return m
}

func (m *memLedger) loan(id uuid.UUID) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.loans[id]
	return &copied
}

func (m *memLedger) paymentsOf(id uuid.UUID) []*domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Payment(nil), m.payments[id]...)
}

func (m *memLedger) WithLoanLock(ctx context.Context, loanID uuid.UUID, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.loans[loanID]
	if !ok {
		return customError.WrapLoanNotFound(loanID.String())
	}
	snapshot := *loan
	payments := make([]*domain.Payment, 0, len(m.payments[loanID]))
	for _, p := range m.payments[loanID] {
		copied := *p
		payments = append(payments, &copied)
	}

	tx := &memTx{loan: &snapshot, payments: payments}
	if err := fn(tx); err != nil {
		return err
	}

	m.loans[loanID] = tx.loan
	m.payments[loanID] = tx.payments
	return nil
}

type memTx struct {
	loan     *domain.Loan
	payments []*domain.Payment
}

func (t *memTx) Loan() *domain.Loan          { return t.loan }
func (t *memTx) Payments() []*domain.Payment { return t.payments }

func (t *memTx) InsertPayment(_ context.Context, payment *domain.Payment) error {
	for _, p := range t.payments {
		if payment.IsCompleted() && p.IsCompleted() && p.DueDate.Equal(payment.DueDate) {
			return customError.WrapAlreadyPaid(payment.DueDate.Format(time.DateOnly))
		}
	}
	t.payments = append(t.payments, payment)
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, payment *domain.Payment) error {
	for i, p := range t.payments {
		if p.ID == payment.ID {
			t.payments[i] = payment
			return nil
		}
	}
	return customError.WrapPaymentNotFound(payment.ID.String())
}

func (t *memTx) SaveLoan(_ context.Context, loan *domain.Loan) error {
	t.loan = loan
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, msg notification.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

type spyRecorder struct {
	applied  []string
	rejected []string
	opened   []string
	closed   int
}

func (r *spyRecorder) PaymentApplied(method string, _ decimal.Decimal, closedLoan bool) {
	r.applied = append(r.applied, method)
	if closedLoan {
		r.closed++
	}
}

func (r *spyRecorder) PaymentRejected(code string) { r.rejected = append(r.rejected, code) }

func (r *spyRecorder) LoanOpened(frequency string, closed bool) {
	r.opened = append(r.opened, frequency)
	if closed {
		r.closed++
	}
}

// recordingCache is an in-memory ScheduleCache that logs every call in order
type recordingCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]stampedSchedule
	calls   []string
}

type stampedSchedule struct {
	stamp    string
	schedule *domain.ScheduleResponse
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[uuid.UUID]stampedSchedule)}
}

func (c *recordingCache) Get(_ context.Context, loanID uuid.UUID, stamp string) (*domain.ScheduleResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[loanID]
	if !ok || entry.stamp != stamp {
		c.calls = append(c.calls, "get:miss")
		return nil, false, nil
	}
	c.calls = append(c.calls, "get:hit")
	return entry.schedule, true, nil
}

func (c *recordingCache) Set(_ context.Context, loanID uuid.UUID, stamp string, schedule *domain.ScheduleResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "set")
	c.entries[loanID] = stampedSchedule{stamp: stamp, schedule: schedule}
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, loanID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "invalidate")
	delete(c.entries, loanID)
	return nil
}
