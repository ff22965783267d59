package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/cache"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/mocks"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

type leaseFixture struct {
	vehicles   *mocks.MockVehicleRepository
	loans      *mocks.MockLoanRepository
	payments   *mocks.MockPaymentRepository
	onboarding *mocks.MockOnboardingStore
	recorder   *spyRecorder
	service    *LeaseService
}

func newLeaseFixture(t *testing.T, scheduleCache ScheduleCache) *leaseFixture {
	log, _ := test.NewNullLogger()
	f := &leaseFixture{
		vehicles:   &mocks.MockVehicleRepository{},
		loans:      &mocks.MockLoanRepository{},
		payments:   &mocks.MockPaymentRepository{},
		onboarding: &mocks.MockOnboardingStore{},
		recorder:   &spyRecorder{},
	}
	f.service = NewLeaseService(f.vehicles, f.loans, f.payments, f.onboarding, scheduleCache, f.recorder, bcrypt.MinCost, log)
	f.service.now = func() time.Time { return serviceNow }
	return f
}

func availableVehicle() *domain.Vehicle {
	return &domain.Vehicle{ID: uuid.New(), Make: "Toyota", Model: "Corolla", Status: domain.VehicleStatusAvailable}
}

func leaseOf(v *domain.Vehicle, lease, down int64) domain.VehicleLeaseRequest {
	return domain.VehicleLeaseRequest{
		VehicleID:        v.ID,
		LeaseAmount:      decimal.NewFromInt(lease),
		DownPayment:      decimal.NewFromInt(down),
		TermMonths:       12,
		PaymentFrequency: domain.FrequencySemiMonthly,
		StartDate:        "2024-03-02",
	}
}

func TestCreateCustomerWithLeases(t *testing.T) {
	// Arrange
	f := newLeaseFixture(t, cache.NopScheduleCache{})
	financed, paidUp := availableVehicle(), availableVehicle()

	f.vehicles.On("GetByIDs", mock.Anything, []uuid.UUID{financed.ID, paidUp.ID}).
		Return(map[uuid.UUID]*domain.Vehicle{financed.ID: financed, paidUp.ID: paidUp}, nil)
	f.onboarding.On("Onboard", mock.Anything,
		mock.MatchedBy(func(c *domain.Customer) bool { return c.Email == "ada@example.com" }),
		mock.MatchedBy(func(loans []*domain.Loan) bool { return len(loans) == 2 }),
	).Return(nil)

	req := &domain.CreateCustomerRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     " Ada@Example.com ",
		Leases:    []domain.VehicleLeaseRequest{leaseOf(financed, 24000, 0), leaseOf(paidUp, 5000, 5000)},
	}

	// Act
	resp, err := f.service.CreateCustomerWithLeases(context.Background(), req)

	// Assert
	require.NoError(t, err)
	assert.Len(t, resp.TemporaryPassword, 16)
	assert.True(t, auth.CheckPassword(resp.Customer.PasswordHash, resp.TemporaryPassword))

	require.Len(t, resp.Loans, 2)
	active := resp.Loans[0]
	assert.Equal(t, domain.LoanStatusActive, active.Loan.Status)
	assert.Len(t, active.Schedule, 24)
	assert.Equal(t, "2024-03-15", active.Schedule[0].DueDateISO())
	assert.True(t, active.Loan.PerDuePaymentAmount.Equal(decimal.NewFromInt(1000)))

	closed := resp.Loans[1]
	assert.Equal(t, domain.LoanStatusClosed, closed.Loan.Status)
	assert.Empty(t, closed.Schedule)

	assert.Equal(t, []string{domain.FrequencySemiMonthly, domain.FrequencySemiMonthly}, f.recorder.opened)
	assert.Equal(t, 1, f.recorder.closed)
	f.onboarding.AssertExpectations(t)
}

func TestCreateCustomerWithLeases_Rejections(t *testing.T) {
	leased := availableVehicle()
	leased.Status = domain.VehicleStatusLeased
	ok := availableVehicle()

	badTerms := leaseOf(ok, 1000, 2000)
	badStart := leaseOf(ok, 1000, 0)
	badStart.StartDate = "next tuesday"

	tests := []struct {
		name     string
		leases   []domain.VehicleLeaseRequest
		vehicles map[uuid.UUID]*domain.Vehicle
		want     error
	}{
		{
			name:   "repeated vehicle",
			leases: []domain.VehicleLeaseRequest{leaseOf(ok, 1000, 0), leaseOf(ok, 1000, 0)},
			want:   customError.ErrVehicleUnavailable,
		},
		{
			name:     "unknown vehicle",
			leases:   []domain.VehicleLeaseRequest{leaseOf(ok, 1000, 0)},
			vehicles: map[uuid.UUID]*domain.Vehicle{},
			want:     customError.ErrVehicleUnavailable,
		},
		{
			name:     "already leased",
			leases:   []domain.VehicleLeaseRequest{leaseOf(leased, 1000, 0)},
			vehicles: map[uuid.UUID]*domain.Vehicle{leased.ID: leased},
			want:     customError.ErrVehicleUnavailable,
		},
		{
			name:     "down payment above lease",
			leases:   []domain.VehicleLeaseRequest{badTerms},
			vehicles: map[uuid.UUID]*domain.Vehicle{ok.ID: ok},
			want:     customError.ErrInvalidTerms,
		},
		{
			name:     "unparsable start date",
			leases:   []domain.VehicleLeaseRequest{badStart},
			vehicles: map[uuid.UUID]*domain.Vehicle{ok.ID: ok},
			want:     customError.ErrInvalidTerms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLeaseFixture(t, cache.NopScheduleCache{})
			f.vehicles.On("GetByIDs", mock.Anything, mock.Anything).Return(tt.vehicles, nil).Maybe()

			_, err := f.service.CreateCustomerWithLeases(context.Background(), &domain.CreateCustomerRequest{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
				Leases:    tt.leases,
			})

			assert.ErrorIs(t, err, tt.want)
			f.onboarding.AssertNotCalled(t, "Onboard", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCustomerWithLeases_OnboardingConflict(t *testing.T) {
	f := newLeaseFixture(t, cache.NopScheduleCache{})
	f.onboarding.On("Onboard", mock.Anything, mock.Anything, mock.Anything).
		Return(customError.WrapCustomerAlreadyExists("ada@example.com"))

	_, err := f.service.CreateCustomerWithLeases(context.Background(), &domain.CreateCustomerRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})

	assert.ErrorIs(t, err, customError.ErrCustomerAlreadyExists)
	f.vehicles.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
	assert.Empty(t, f.recorder.opened)
}

func TestGetSchedule_CachedForTheDay(t *testing.T) {
	// Arrange
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newLeaseFixture(t, cache.NewScheduleCache(client, time.Hour))

	customerID := uuid.New()
	loan := testLoan(t, customerID)
	paid := &domain.Payment{ID: uuid.New(), LoanID: loan.ID, DueDate: loan.StartDate, Status: domain.PaymentStatusCompleted}

	f.loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	f.payments.On("ListByLoan", mock.Anything, loan.ID).Return([]*domain.Payment{paid}, nil).Once()

	viewer := &auth.Principal{ID: customerID, Role: auth.RoleCustomer}

	// Act
	first, err := f.service.GetSchedule(context.Background(), loan.ID, viewer)
	require.NoError(t, err)
	second, err := f.service.GetSchedule(context.Background(), loan.ID, viewer)
	require.NoError(t, err)

	// Assert
	require.Len(t, first.Entries, 10)
	assert.Equal(t, domain.ScheduleStatusPaid, first.Entries[0].Status)
	assert.Equal(t, paid.ID, *first.Entries[0].PaymentID)
	assert.Equal(t, domain.ScheduleStatusOverdue, first.Entries[1].Status)
	assert.Equal(t, domain.ScheduleStatusUpcoming, first.Entries[2].Status)
	assert.Equal(t, len(first.Entries), len(second.Entries))
	f.payments.AssertNumberOfCalls(t, "ListByLoan", 1)
}

func TestGetSchedule_FillRacingAWriteIsNotServed(t *testing.T) {
	rc := newRecordingCache()
	f := newLeaseFixture(t, rc)

	customerID := uuid.New()
	before := testLoan(t, customerID)
	after := *before
	after.AmountFinanced = before.AmountFinanced.Sub(decimal.NewFromInt(1000))
	after.UpdatedAt = before.UpdatedAt.Add(time.Second)
	paid := &domain.Payment{ID: uuid.New(), LoanID: before.ID, DueDate: before.StartDate, Status: domain.PaymentStatusCompleted}

	f.loans.On("GetByID", mock.Anything, before.ID).Return(before, nil).Once()
	f.loans.On("GetByID", mock.Anything, before.ID).Return(&after, nil)
	// a payment commits and invalidates after the reader loaded its snapshot
	f.payments.On("ListByLoan", mock.Anything, before.ID).Run(func(mock.Arguments) {
		require.NoError(t, rc.Invalidate(context.Background(), before.ID))
	}).Return([]*domain.Payment{}, nil).Once()
	f.payments.On("ListByLoan", mock.Anything, before.ID).Return([]*domain.Payment{paid}, nil)

	viewer := &auth.Principal{ID: customerID, Role: auth.RoleCustomer}

	stale, err := f.service.GetSchedule(context.Background(), before.ID, viewer)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusOverdue, stale.Entries[0].Status)

	fresh, err := f.service.GetSchedule(context.Background(), before.ID, viewer)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusPaid, fresh.Entries[0].Status)
	assert.Equal(t, []string{"get:miss", "invalidate", "set", "get:miss", "set"}, rc.calls)

	again, err := f.service.GetSchedule(context.Background(), before.ID, viewer)
	require.NoError(t, err)
	assert.Same(t, fresh, again)
	f.payments.AssertNumberOfCalls(t, "ListByLoan", 2)
}

func TestGetSchedule_OtherCustomerIsForbidden(t *testing.T) {
	f := newLeaseFixture(t, cache.NopScheduleCache{})
	loan := testLoan(t, uuid.New())
	f.loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)

	_, err := f.service.GetSchedule(context.Background(), loan.ID, &auth.Principal{ID: uuid.New(), Role: auth.RoleCustomer})

	assert.ErrorIs(t, err, customError.ErrForbidden)
}

func TestGetSummary(t *testing.T) {
	f := newLeaseFixture(t, cache.NopScheduleCache{})
	loan := testLoan(t, uuid.New())
	f.loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	f.payments.On("ListByLoan", mock.Anything, loan.ID).Return([]*domain.Payment{}, nil)

	summary, err := f.service.GetSummary(context.Background(), loan.ID)

	require.NoError(t, err)
	assert.Len(t, summary.Overdue, 2)
	assert.Len(t, summary.Unpaid, 8)
	assert.Empty(t, summary.Paid)
	assert.True(t, summary.OverdueAmount.Equal(decimal.NewFromInt(2000)))
}

func TestListCustomerLoans(t *testing.T) {
	f := newLeaseFixture(t, cache.NopScheduleCache{})
	customerID := uuid.New()
	loan := testLoan(t, customerID)
	f.loans.On("ListByCustomer", mock.Anything, customerID).Return([]*domain.Loan{loan}, nil)

	loans, err := f.service.ListCustomerLoans(context.Background(), customerID)

	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Len(t, loans[0].Schedule, 10)
}
