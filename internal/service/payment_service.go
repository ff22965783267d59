package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/ledger"
	"github.com/segyhp/lease-billing/internal/notification"
	"github.com/segyhp/lease-billing/internal/processor"
	"github.com/segyhp/lease-billing/internal/repository"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/utils"
)

// PaymentConfig holds the billing settings of PaymentService
type PaymentConfig struct {
	Currency     string
	MinimumCents int64
	WaivePolicy  ledger.WaivePolicy
}

type PaymentService struct {
	loans     repository.LoanRepository
	payments  repository.PaymentRepository
	customers repository.CustomerRepository
	store     repository.LedgerStore
	locker    Locker
	cache     ScheduleCache
	processor processor.Processor
	notifier  Notifier
	links     *auth.Issuer
	recorder  Recorder
	cfg       PaymentConfig
	log       logrus.FieldLogger
	now       func() time.Time
}

// PaymentDeps groups the collaborators of PaymentService
type PaymentDeps struct {
	Loans     repository.LoanRepository
	Payments  repository.PaymentRepository
	Customers repository.CustomerRepository
	Store     repository.LedgerStore
	Locker    Locker
	Cache     ScheduleCache
	Processor processor.Processor
	Notifier  Notifier
	Links     *auth.Issuer
	Recorder  Recorder
}

func NewPaymentService(deps PaymentDeps, cfg PaymentConfig, log logrus.FieldLogger) *PaymentService {
	if cfg.WaivePolicy == "" {
		cfg.WaivePolicy = ledger.WaivePolicyForgive
	}
	return &PaymentService{
		loans:     deps.Loans,
		payments:  deps.Payments,
		customers: deps.Customers,
		store:     deps.Store,
		locker:    deps.Locker,
		cache:     deps.Cache,
		processor: deps.Processor,
		notifier:  deps.Notifier,
		links:     deps.Links,
		recorder:  recorderOrNop(deps.Recorder),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// card describes a card payment attempt against a loan
type card struct {
	loanID      uuid.UUID
	token       string
	paymentType string
	dueDateISO  string
	mode        string
}

// Pay charges the card of a customer for the next or a chosen installment of their loan
func (s *PaymentService) Pay(ctx context.Context, customerID uuid.UUID, req *domain.MakePaymentRequest) (*domain.PaymentResult, error) {
	loan, err := s.loans.GetByID(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	if loan.CustomerID != customerID {
		return nil, customError.WrapForbidden("Loan belongs to another customer")
	}

	return s.chargeCard(ctx, loan.CustomerID, card{
		loanID:      loan.ID,
		token:       req.CardToken,
		paymentType: req.PaymentType,
		dueDateISO:  req.DueDateISO,
		mode:        domain.PaymentModeInstallment,
	})
}

// PayByLink pays an installment of the loan a payment link token was issued for
func (s *PaymentService) PayByLink(ctx context.Context, req *domain.LinkPaymentRequest) (*domain.PaymentResult, error) {
	loanID, err := s.links.ParsePaymentLink(req.LinkToken)
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	return s.chargeCard(ctx, loan.CustomerID, card{
		loanID:      loan.ID,
		token:       req.CardToken,
		paymentType: req.PaymentType,
		dueDateISO:  req.DueDateISO,
		mode:        domain.PaymentModeCheckout,
	})
}

// CreatePaymentLink issues a link token that lets anyone pay installments of loanID
func (s *PaymentService) CreatePaymentLink(ctx context.Context, loanID uuid.UUID) (*domain.PaymentLinkResponse, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.IsClosed() {
		return nil, customError.WrapLoanAlreadyClosed(loanID.String())
	}

	token, expiresAt, err := s.links.IssuePaymentLink(loan.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentLinkResponse{LinkToken: token, ExpiresAt: expiresAt}, nil
}

func resolveInstallment(book *ledger.Book, paymentType, dueDateISO string) (*domain.Installment, error) {
	if paymentType == domain.PaymentTypeDue {
		return ledger.InstallmentDue(book, dueDateISO)
	}
	return ledger.NextUnpaidInstallment(book)
}

func (s *PaymentService) chargeCard(ctx context.Context, customerID uuid.UUID, c card) (*domain.PaymentResult, error) {
	log := s.log.WithFields(logrus.Fields{"loan_id": c.loanID, "payment_type": c.paymentType})

	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, c.loanID)
	if err != nil {
		s.reject(err)
		return nil, err
	}
	defer release()

	var (
		result   *domain.PaymentResult
		declined error
	)
	err = s.store.WithLoanLock(ctx, c.loanID, func(tx repository.LedgerTx) error {
		now := s.now().UTC()
		book, err := ledger.NewBook(tx.Loan(), tx.Payments())
		if err != nil {
			return err
		}

		// resolved again under the row lock so a concurrent payment cannot be missed
		inst, err := resolveInstallment(book, c.paymentType, c.dueDateISO)
		if err != nil {
			return err
		}
		cents := utils.ToCents(inst.Amount)
		if cents < s.cfg.MinimumCents {
			return customError.WrapAmountBelowProcessorMinimum(inst.Amount.StringFixed(2), s.cfg.MinimumCents)
		}

		charge, chargeErr := s.processor.Charge(ctx, processor.ChargeRequest{
			AmountCents: cents,
			Currency:    s.cfg.Currency,
			CardToken:   c.token,
			LoanID:      book.Loan.ID,
			CustomerID:  customer.ID,
			DueDateISO:  inst.DueDateISO(),
			Email:       customer.Email,
		})

		in := ledger.PaymentInput{
			Amount: inst.Amount,
			Method: domain.PaymentMethodCard,
			Mode:   c.mode,
			Now:    now,
		}

		if chargeErr != nil {
			if errors.Is(chargeErr, customError.ErrProcessorUnavailable) {
				return chargeErr
			}
			failed, err := ledger.RecordFailure(book, *inst, in)
			if err != nil {
				return err
			}
			if err := tx.InsertPayment(ctx, failed); err != nil {
				return err
			}
			declined = chargeErr
			return nil
		}

		in.ProcessorRef = &charge.Reference
		if charge.AmountCents > 0 {
			in.Amount = utils.FromCents(charge.AmountCents)
		}
		payment, loan, err := ledger.ApplyPayment(book, *inst, in)
		if err != nil {
			log.WithError(err).WithField("processor_ref", charge.Reference).Error("Charged card could not be applied to the ledger")
			return err
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.SaveLoan(ctx, loan); err != nil {
			return err
		}
		result = &domain.PaymentResult{Payment: payment, Loan: loan}
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}
	if declined != nil {
		log.WithError(declined).Info("Card payment declined")
		s.reject(declined)
		return nil, declined
	}

	s.applied(ctx, result, domain.NotificationPaymentReceived)
	return result, nil
}

// RecordManual records an admin entered payment for the installment due on req.DueDateISO
func (s *PaymentService) RecordManual(ctx context.Context, req *domain.ManualPaymentRequest) (*domain.PaymentResult, error) {
	result, err := s.mutate(ctx, req.LoanID, func(book *ledger.Book, now time.Time) (*domain.Payment, *domain.Loan, error) {
		inst, err := ledger.InstallmentDue(book, req.DueDateISO)
		if err != nil {
			return nil, nil, err
		}
		return ledger.ApplyPayment(book, *inst, ledger.PaymentInput{
			Amount: req.Amount,
			Method: req.Method,
			Mode:   domain.PaymentModeManual,
			Note:   req.Note,
			Now:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.applied(ctx, result, domain.NotificationPaymentReceived)
	return result, nil
}

// Waive settles the installment due on req.DueDateISO without payment, following the
// configured waive policy
func (s *PaymentService) Waive(ctx context.Context, req *domain.WaiveInstallmentRequest) (*domain.PaymentResult, error) {
	result, err := s.mutate(ctx, req.LoanID, func(book *ledger.Book, now time.Time) (*domain.Payment, *domain.Loan, error) {
		inst, err := ledger.InstallmentDue(book, req.DueDateISO)
		if err != nil {
			return nil, nil, err
		}
		return ledger.WaiveInstallment(book, *inst, req.Note, s.cfg.WaivePolicy, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, result.Loan.ID); err != nil {
		s.log.WithError(err).WithField("loan_id", result.Loan.ID).Warn("Schedule cache invalidation failed")
	}
	s.log.WithFields(logrus.Fields{
		"loan_id":  result.Loan.ID,
		"due_date": result.Payment.DueDate.Format(time.DateOnly),
		"policy":   s.cfg.WaivePolicy,
	}).Info("Installment waived")
	return result, nil
}

// UpdateStatus changes the status of a recorded payment. Completing a failed payment
// settles its installment and notifies the customer.
func (s *PaymentService) UpdateStatus(ctx context.Context, paymentID uuid.UUID, status string) (*domain.PaymentResult, error) {
	existing, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var changed bool
	result, err := s.mutate(ctx, existing.LoanID, func(book *ledger.Book, now time.Time) (*domain.Payment, *domain.Loan, error) {
		payment, loan, err := ledger.ReconcilePaymentStatus(book, paymentID, status, now)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range book.Payments {
			if p.ID == paymentID {
				changed = p.Status != payment.Status
			}
		}
		if !changed {
			return payment, loan, errUnchanged
		}
		return payment, loan, nil
	})
	if errors.Is(err, errUnchanged) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	s.applied(ctx, result, domain.NotificationPaymentConfirmed)
	return result, nil
}

// errUnchanged rolls back a mutation that left the ledger as it was
var errUnchanged = errors.New("ledger unchanged")

type ledgerOp func(book *ledger.Book, now time.Time) (*domain.Payment, *domain.Loan, error)

// mutate runs op against the locked loan and persists the payment and loan it returns
func (s *PaymentService) mutate(ctx context.Context, loanID uuid.UUID, op ledgerOp) (*domain.PaymentResult, error) {
	release, err := s.locker.Acquire(ctx, loanID)
	if err != nil {
		s.reject(err)
		return nil, err
	}
	defer release()

	var result *domain.PaymentResult
	err = s.store.WithLoanLock(ctx, loanID, func(tx repository.LedgerTx) error {
		book, err := ledger.NewBook(tx.Loan(), tx.Payments())
		if err != nil {
			return err
		}
		original := make(map[uuid.UUID]bool, len(book.Payments))
		for _, p := range book.Payments {
			original[p.ID] = true
		}

		payment, loan, err := op(book, s.now().UTC())
		if errors.Is(err, errUnchanged) {
			result = &domain.PaymentResult{Payment: payment, Loan: loan}
			return err
		}
		if err != nil {
			return err
		}

		if original[payment.ID] {
			err = tx.UpdatePaymentStatus(ctx, payment)
		} else {
			err = tx.InsertPayment(ctx, payment)
		}
		if err != nil {
			return err
		}
		if err := tx.SaveLoan(ctx, loan); err != nil {
			return err
		}
		result = &domain.PaymentResult{Payment: payment, Loan: loan}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return result, err
	}
	if err != nil {
		s.reject(err)
		return nil, err
	}
	return result, nil
}

func (s *PaymentService) reject(err error) {
	s.recorder.PaymentRejected(customError.Code(err))
}

// applied runs the side effects of a committed payment. Failures are logged only.
func (s *PaymentService) applied(ctx context.Context, result *domain.PaymentResult, notificationType string) {
	payment, loan := result.Payment, result.Loan
	log := s.log.WithFields(logrus.Fields{
		"loan_id":    loan.ID,
		"payment_id": payment.ID,
		"due_date":   payment.DueDate.Format(time.DateOnly),
	})

	s.recorder.PaymentApplied(payment.Method, payment.Amount, loan.IsClosed())
	log.WithFields(logrus.Fields{
		"amount":    payment.Amount.StringFixed(2),
		"remaining": loan.AmountFinanced.StringFixed(2),
		"status":    loan.Status,
	}).Info("Payment applied")

	if err := s.cache.Invalidate(ctx, loan.ID); err != nil {
		log.WithError(err).Warn("Schedule cache invalidation failed")
	}

	title := "Payment received"
	if notificationType == domain.NotificationPaymentConfirmed {
		title = "Payment confirmed"
	}
	body := fmt.Sprintf("We received %s for the installment due %s.", payment.Amount.StringFixed(2), payment.DueDate.Format(time.DateOnly))
	if loan.IsClosed() {
		body += " Your loan is now fully paid."
	}
	if _, err := s.notifier.Send(ctx, notification.Message{
		CustomerID: loan.CustomerID,
		Type:       notificationType,
		ScopeKey:   domain.ScopeKeyForPayment(payment.ID),
		Title:      title,
		Body:       body,
	}); err != nil {
		log.WithError(err).Warn("Payment notification failed")
	}
}

// ListMine pages through the payments of a customer
func (s *PaymentService) ListMine(ctx context.Context, customerID uuid.UUID, offset, limit int) (*domain.PaymentListResponse, error) {
	return s.payments.List(ctx, domain.PaymentFilter{CustomerID: &customerID, Offset: offset, Limit: limit})
}

// ListAdmin pages through every payment matching filter
func (s *PaymentService) ListAdmin(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentListResponse, error) {
	return s.payments.List(ctx, filter)
}

// Overdue lists every overdue installment of active loans, most overdue first
func (s *PaymentService) Overdue(ctx context.Context) (*domain.OverdueResponse, error) {
	now := s.now().UTC()

	loans, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(loans))
	for i, loan := range loans {
		ids[i] = loan.ID
	}
	payments, err := s.payments.ListByLoans(ctx, ids)
	if err != nil {
		return nil, err
	}

	resp := &domain.OverdueResponse{Items: []domain.OverdueItem{}, TotalOutstanding: decimal.Zero}
	days := 0
	for _, loan := range loans {
		book, err := ledger.NewBook(loan, payments[loan.ID])
		if err != nil {
			return nil, err
		}
		for _, item := range ledger.OverdueItems(book, now) {
			resp.Items = append(resp.Items, item)
			resp.TotalOutstanding = resp.TotalOutstanding.Add(item.Amount)
			days += item.DaysOverdue
		}
	}

	sort.SliceStable(resp.Items, func(i, j int) bool {
		return resp.Items[i].DaysOverdue > resp.Items[j].DaysOverdue
	})
	resp.Total = len(resp.Items)
	if resp.Total > 0 {
		resp.AvgDaysOverdue = decimal.NewFromInt(int64(days)).
			Div(decimal.NewFromInt(int64(resp.Total))).Round(2).InexactFloat64()
	}
	return resp, nil
}

// Calendar groups the installments of every loan around the day dateISO. Payment state
// is the current one, so a due paid late shows as paid.
func (s *PaymentService) Calendar(ctx context.Context, dateISO string) (*domain.PaymentCalendar, error) {
	day, err := utils.ParseDueDateISO(dateISO)
	if err != nil {
		return nil, customError.WrapInvalidTerms(fmt.Sprintf("calendar date %q is not an ISO date", dateISO))
	}

	loans, err := s.loans.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(loans))
	for i, loan := range loans {
		ids[i] = loan.ID
	}
	payments, err := s.payments.ListByLoans(ctx, ids)
	if err != nil {
		return nil, err
	}

	cal := &domain.PaymentCalendar{
		Date:          day.Format(time.DateOnly),
		Paid:          []domain.CalendarItem{},
		Pending:       []domain.CalendarItem{},
		Overdue:       []domain.CalendarItem{},
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, loan := range loans {
		book, err := ledger.NewBook(loan, payments[loan.ID])
		if err != nil {
			return nil, err
		}
		for _, entry := range ledger.Entries(book, day) {
			item := domain.CalendarItem{
				LoanID:     loan.ID,
				CustomerID: loan.CustomerID,
				VehicleID:  loan.VehicleID,
				DueDate:    entry.DueDate,
				Amount:     entry.Amount,
				PaymentID:  entry.PaymentID,
			}
			onDay := entry.DueDate.Equal(day)
			switch {
			case entry.Status == domain.ScheduleStatusOverdue:
				item.DaysOverdue = utils.DaysBetween(entry.DueDate, day)
				cal.Overdue = append(cal.Overdue, item)
				cal.OverdueAmount = cal.OverdueAmount.Add(item.Amount)
			case onDay && entry.Status == domain.ScheduleStatusPaid:
				cal.Paid = append(cal.Paid, item)
				cal.PaidAmount = cal.PaidAmount.Add(item.Amount)
			case onDay:
				cal.Pending = append(cal.Pending, item)
				cal.PendingAmount = cal.PendingAmount.Add(item.Amount)
			}
		}
	}

	sort.SliceStable(cal.Overdue, func(i, j int) bool {
		return cal.Overdue[i].DaysOverdue > cal.Overdue[j].DaysOverdue
	})
	return cal, nil
}
