package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/ledger"
	"github.com/segyhp/lease-billing/internal/repository"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/utils"
)

type LeaseService struct {
	vehicles   repository.VehicleRepository
	loans      repository.LoanRepository
	payments   repository.PaymentRepository
	onboarding repository.OnboardingStore
	cache      ScheduleCache
	recorder   Recorder
	bcryptCost int
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewLeaseService(
	vehicles repository.VehicleRepository,
	loans repository.LoanRepository,
	payments repository.PaymentRepository,
	onboarding repository.OnboardingStore,
	cache ScheduleCache,
	recorder Recorder,
	bcryptCost int,
	log logrus.FieldLogger,
) *LeaseService {
	return &LeaseService{
		vehicles:   vehicles,
		loans:      loans,
		payments:   payments,
		onboarding: onboarding,
		cache:      cache,
		recorder:   recorderOrNop(recorder),
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// CreateCustomerWithLeases onboards a customer together with one loan per leased vehicle.
// The temporary password is only ever returned here.
func (s *LeaseService) CreateCustomerWithLeases(ctx context.Context, req *domain.CreateCustomerRequest) (*domain.CreateCustomerResponse, error) {
	now := s.now().UTC()

	ids := make([]uuid.UUID, 0, len(req.Leases))
	seen := make(map[uuid.UUID]bool, len(req.Leases))
	for _, lease := range req.Leases {
		if seen[lease.VehicleID] {
			return nil, customError.WrapVehicleUnavailable(lease.VehicleID.String(), "is listed more than once")
		}
		seen[lease.VehicleID] = true
		ids = append(ids, lease.VehicleID)
	}

	var vehicles map[uuid.UUID]*domain.Vehicle
	if len(ids) > 0 {
		var err error
		if vehicles, err = s.vehicles.GetByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	password, err := auth.TemporaryPassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        normalizeEmail(req.Email),
		Phone:        req.Phone,
		PasswordHash: hash,
		Status:       domain.AccountStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	loans := make([]*domain.Loan, 0, len(req.Leases))
	withDue := make([]*domain.LoanWithDue, 0, len(req.Leases))
	for _, lease := range req.Leases {
		vehicle, ok := vehicles[lease.VehicleID]
		if !ok {
			return nil, customError.WrapVehicleUnavailable(lease.VehicleID.String(), "does not exist")
		}
		if vehicle.Status != domain.VehicleStatusAvailable {
			return nil, customError.WrapVehicleUnavailable(lease.VehicleID.String(), "is already leased")
		}

		start := utils.DateOnly(now)
		if lease.StartDate != "" {
			if start, err = utils.ParseDueDateISO(lease.StartDate); err != nil {
				return nil, customError.WrapInvalidTerms(fmt.Sprintf("start date %q is not an ISO date", lease.StartDate))
			}
		}

		terms := domain.LoanTerms{
			LeaseAmount: lease.LeaseAmount,
			DownPayment: lease.DownPayment,
			TermMonths:  lease.TermMonths,
			Frequency:   lease.PaymentFrequency,
			StartDate:   start,
		}
		loan, schedule, err := ledger.NewLoan(terms, customer.ID, vehicle.ID, now)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
		withDue = append(withDue, &domain.LoanWithDue{Loan: loan, Schedule: schedule})
	}

	if err := s.onboarding.Onboard(ctx, customer, loans); err != nil {
		return nil, err
	}

	for _, loan := range loans {
		s.recorder.LoanOpened(loan.PaymentFrequency, loan.IsClosed())
	}
	s.log.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"loans":       len(loans),
	}).Info("Customer onboarded")

	return &domain.CreateCustomerResponse{
		Customer:          customer,
		TemporaryPassword: password,
		Loans:             withDue,
	}, nil
}

// authorize loads the loan and checks that a customer viewer owns it. Admins see every loan.
func (s *LeaseService) authorize(ctx context.Context, loanID uuid.UUID, viewer *auth.Principal) (*domain.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if viewer != nil && viewer.Role == auth.RoleCustomer && viewer.ID != loan.CustomerID {
		return nil, customError.WrapForbidden("Loan belongs to another customer")
	}
	return loan, nil
}

func (s *LeaseService) book(ctx context.Context, loan *domain.Loan) (*ledger.Book, error) {
	payments, err := s.payments.ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	return ledger.NewBook(loan, payments)
}

// GetSchedule returns the installments of a loan with their status as of today
func (s *LeaseService) GetSchedule(ctx context.Context, loanID uuid.UUID, viewer *auth.Principal) (*domain.ScheduleResponse, error) {
	loan, err := s.authorize(ctx, loanID, viewer)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	log := s.log.WithField("loan_id", loanID)
	stamp := scheduleStamp(loan, now)

	cached, ok, err := s.cache.Get(ctx, loanID, stamp)
	if err != nil {
		log.WithError(err).Warn("Schedule cache read failed")
	}
	if ok {
		return cached, nil
	}

	book, err := s.book(ctx, loan)
	if err != nil {
		return nil, err
	}
	schedule := &domain.ScheduleResponse{
		LoanID:           loan.ID,
		PaymentFrequency: loan.PaymentFrequency,
		PaymentAmount:    loan.PerDuePaymentAmount,
		Entries:          ledger.Entries(book, now),
	}

	if err := s.cache.Set(ctx, loanID, stamp, schedule); err != nil {
		log.WithError(err).Warn("Schedule cache write failed")
	}
	return schedule, nil
}

// GetSummary partitions the schedule of a loan into paid, unpaid and overdue installments
func (s *LeaseService) GetSummary(ctx context.Context, loanID uuid.UUID) (*domain.LedgerSummary, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	book, err := s.book(ctx, loan)
	if err != nil {
		return nil, err
	}
	summary := ledger.Summarize(book, s.now().UTC())
	return &summary, nil
}

// ListCustomerLoans returns the loans of a customer with their schedules
func (s *LeaseService) ListCustomerLoans(ctx context.Context, customerID uuid.UUID) ([]*domain.LoanWithDue, error) {
	loans, err := s.loans.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.LoanWithDue, 0, len(loans))
	for _, loan := range loans {
		schedule, err := ledger.ScheduleFor(loan)
		if err != nil {
			return nil, err
		}
		result = append(result, &domain.LoanWithDue{Loan: loan, Schedule: schedule})
	}
	return result, nil
}
