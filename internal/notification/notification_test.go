package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/ledger"
	"github.com/segyhp/lease-billing/internal/mocks"
)

type countingRecorder struct {
	outcomes map[string]int
}

func (r *countingRecorder) Notification(notificationType, outcome string) {
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[notificationType+"/"+outcome]++
}

type fixture struct {
	repo      *mocks.MockNotificationRepository
	customers *mocks.MockCustomerRepository
	pusher    *mocks.MockPusher
	recorder  *countingRecorder
	service   *Service
	customer  *domain.Customer
}

func newFixture() *fixture {
	log, _ := test.NewNullLogger()
	f := &fixture{
		repo:      &mocks.MockNotificationRepository{},
		customers: &mocks.MockCustomerRepository{},
		pusher:    &mocks.MockPusher{},
		recorder:  &countingRecorder{},
		customer:  &domain.Customer{ID: uuid.New(), FirstName: "Ada", Email: "ada@example.com"},
	}
	f.service = NewService(f.repo, f.customers, f.pusher, f.recorder, log)
	f.service.now = func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC) }
	f.customers.On("GetByID", mock.Anything, f.customer.ID).Return(f.customer, nil).Maybe()
	return f
}

func TestSend_RecordsThenPushes(t *testing.T) {
	// Arrange
	f := newFixture()
	msg := Message{CustomerID: f.customer.ID, Type: domain.NotificationPaymentReceived, ScopeKey: "payment:1", Title: "t", Body: "b"}

	f.repo.On("Record", mock.Anything, mock.MatchedBy(func(l *domain.NotificationLog) bool {
		return l.Type == msg.Type && l.ScopeKey == msg.ScopeKey && l.CustomerID == f.customer.ID
	})).Return(true, nil)
	f.pusher.On("Push", mock.Anything, f.customer, "t", "b").Return(nil)

	// Act
	sent, err := f.service.Send(context.Background(), msg)

	// Assert
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, f.recorder.outcomes["payment_received/sent"])
	f.repo.AssertExpectations(t)
	f.pusher.AssertExpectations(t)
}

func TestSend_DuplicateIsNotPushed(t *testing.T) {
	f := newFixture()
	f.repo.On("Record", mock.Anything, mock.Anything).Return(false, nil)

	sent, err := f.service.Send(context.Background(), Message{CustomerID: f.customer.ID, Type: domain.NotificationOverdue, ScopeKey: "k"})

	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, f.recorder.outcomes["overdue/duplicate"])
	f.pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_PushFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	f.repo.On("Record", mock.Anything, mock.Anything).Return(true, nil)
	f.pusher.On("Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("device gone"))

	sent, err := f.service.Send(context.Background(), Message{CustomerID: f.customer.ID, Type: domain.NotificationOverdue, ScopeKey: "k"})

	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, f.recorder.outcomes["overdue/failed"])
}

func TestSend_RecordError(t *testing.T) {
	f := newFixture()
	f.repo.On("Record", mock.Anything, mock.Anything).Return(false, errors.New("db down"))

	sent, err := f.service.Send(context.Background(), Message{CustomerID: f.customer.ID, Type: domain.NotificationOverdue, ScopeKey: "k"})

	assert.Error(t, err)
	assert.False(t, sent)
}

func activeLoan(customerID uuid.UUID) *domain.Loan {
	terms := domain.LoanTerms{
		LeaseAmount: decimal.NewFromInt(12000),
		DownPayment: decimal.NewFromInt(2000),
		TermMonths:  10,
		Frequency:   domain.FrequencyMonthly,
		StartDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	loan, _, err := ledger.NewLoan(terms, customerID, uuid.New(), terms.StartDate)
	if err != nil {
		panic(err)
	}
	return loan
}

func TestJobRun_DueTomorrowAndOverdue(t *testing.T) {
	// Arrange
	f := newFixture()
	loans := &mocks.MockLoanRepository{}
	payments := &mocks.MockPaymentRepository{}
	log, _ := test.NewNullLogger()

	loan := activeLoan(f.customer.ID)
	// Jan 15 is paid, Feb 15 is 28 days overdue, Mar 15 is due tomorrow
	paid := &domain.Payment{ID: uuid.New(), LoanID: loan.ID, DueDate: loan.StartDate, Status: domain.PaymentStatusCompleted}
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	loans.On("ListActive", mock.Anything).Return([]*domain.Loan{loan}, nil)
	payments.On("ListByLoans", mock.Anything, []uuid.UUID{loan.ID}).
		Return(map[uuid.UUID][]*domain.Payment{loan.ID: {paid}}, nil)

	var scopes []string
	f.repo.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		scopes = append(scopes, args.Get(1).(*domain.NotificationLog).ScopeKey)
	}).Return(true, nil)
	f.pusher.On("Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	job := NewJob(loans, payments, f.service, 30, log)

	// Act
	stats, err := job.Run(context.Background(), now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LoansScanned)
	assert.Equal(t, 1, stats.DueTomorrow)
	assert.Equal(t, 1, stats.Overdue)
	assert.ElementsMatch(t, []string{
		domain.ScopeKeyForLoanDue(loan.ID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		domain.ScopeKeyForOverdue(loan.ID, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)),
	}, scopes)
}

func TestJobRun_OverdueIsRemindedOncePerDay(t *testing.T) {
	f := newFixture()
	loans := &mocks.MockLoanRepository{}
	payments := &mocks.MockPaymentRepository{}
	log, _ := test.NewNullLogger()

	loan := activeLoan(f.customer.ID)
	loans.On("ListActive", mock.Anything).Return([]*domain.Loan{loan}, nil)
	payments.On("ListByLoans", mock.Anything, mock.Anything).Return(map[uuid.UUID][]*domain.Payment{}, nil)

	var scopes []string
	f.repo.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		scopes = append(scopes, args.Get(1).(*domain.NotificationLog).ScopeKey)
	}).Return(true, nil)
	f.pusher.On("Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	job := NewJob(loans, payments, f.service, 7, log)
	// Feb 15 is overdue on both days, Jan 15 is outside the window
	for _, now := range []time.Time{
		time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 20, 18, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 21, 9, 0, 0, 0, time.UTC),
	} {
		_, err := job.Run(context.Background(), now)
		require.NoError(t, err)
	}

	require.Len(t, scopes, 3)
	assert.Equal(t, scopes[0], scopes[1], "same day reruns share the scope and are deduplicated")
	assert.NotEqual(t, scopes[0], scopes[2])
	assert.Equal(t, "loan:"+loan.ID.String()+":due:2024-02-15:overdue:2024-02-21", scopes[2])
}

func TestJobRun_OverdueOutsideWindowIsSkipped(t *testing.T) {
	f := newFixture()
	loans := &mocks.MockLoanRepository{}
	payments := &mocks.MockPaymentRepository{}
	log, _ := test.NewNullLogger()

	loan := activeLoan(f.customer.ID)
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) // Jan 15 is 17 days overdue

	loans.On("ListActive", mock.Anything).Return([]*domain.Loan{loan}, nil)
	payments.On("ListByLoans", mock.Anything, mock.Anything).Return(map[uuid.UUID][]*domain.Payment{}, nil)

	stats, err := NewJob(loans, payments, f.service, 7, log).Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Overdue)
	assert.Equal(t, 0, stats.DueTomorrow)
	f.repo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestJobRun_DuplicatesAreCounted(t *testing.T) {
	f := newFixture()
	loans := &mocks.MockLoanRepository{}
	payments := &mocks.MockPaymentRepository{}
	log, _ := test.NewNullLogger()

	loan := activeLoan(f.customer.ID)
	now := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)

	loans.On("ListActive", mock.Anything).Return([]*domain.Loan{loan}, nil)
	payments.On("ListByLoans", mock.Anything, mock.Anything).Return(map[uuid.UUID][]*domain.Payment{}, nil)
	f.repo.On("Record", mock.Anything, mock.Anything).Return(false, nil)

	stats, err := NewJob(loans, payments, f.service, 7, log).Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 0, stats.DueTomorrow)
}

func TestLogPusher(t *testing.T) {
	log, hook := test.NewNullLogger()
	err := NewLogPusher(log).Push(context.Background(), &domain.Customer{ID: uuid.New()}, "Payment overdue", "body")

	require.NoError(t, err)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "body", hook.LastEntry().Message)
	assert.Equal(t, "Payment overdue", hook.LastEntry().Data["notification"])
}
