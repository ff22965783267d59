package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/utils"

	"github.com/shopspring/decimal"
)

// WaivePolicy decides what a waived installment does to the amount financed
type WaivePolicy string

const (
	// WaivePolicyForgive treats the waived due as forgiven debt: the nominal amount is
	// taken off the balance and the installment counts as paid.
	WaivePolicyForgive WaivePolicy = "forgive"
	// WaivePolicyDefer keeps the due owed: the balance is untouched, the installment is
	// no longer reported overdue and stays payable.
	WaivePolicyDefer WaivePolicy = "defer"
)

// ParseWaivePolicy validates a configured policy name
func ParseWaivePolicy(s string) (WaivePolicy, bool) {
	switch p := WaivePolicy(s); p {
	case WaivePolicyForgive, WaivePolicyDefer:
		return p, true
	}
	return "", false
}

// PaymentStatusDeferred marks a waiver recorded under WaivePolicyDefer
const PaymentStatusDeferred = "deferred"

// Book is a snapshot of one loan, its regenerated schedule and its payments.
type Book struct {
	Loan     *domain.Loan
	Schedule []domain.Installment
	Payments []*domain.Payment
}

// NewBook regenerates the schedule of loan and pairs it with its payments
func NewBook(loan *domain.Loan, payments []*domain.Payment) (*Book, error) {
	schedule, err := ScheduleFor(loan)
	if err != nil {
		return nil, err
	}
	return &Book{Loan: loan, Schedule: schedule, Payments: payments}, nil
}

// With returns a new book holding the state produced by a ledger operation
func (b *Book) With(payment *domain.Payment, loan *domain.Loan) *Book {
	payments := make([]*domain.Payment, 0, len(b.Payments)+1)
	replaced := false
	for _, p := range b.Payments {
		if p.ID == payment.ID {
			payments = append(payments, payment)
			replaced = true
			continue
		}
		payments = append(payments, p)
	}
	if !replaced {
		payments = append(payments, payment)
	}
	return &Book{Loan: loan, Schedule: b.Schedule, Payments: payments}
}

func (b *Book) completed(due time.Time) *domain.Payment {
	for _, p := range b.Payments {
		if p.IsCompleted() && utils.DateOnly(p.DueDate).Equal(due) {
			return p
		}
	}
	return nil
}

func (b *Book) deferred(due time.Time) bool {
	for _, p := range b.Payments {
		if p.Status == PaymentStatusDeferred && utils.DateOnly(p.DueDate).Equal(due) {
			return true
		}
	}
	return false
}

func (b *Book) installmentOn(due time.Time) (domain.Installment, bool) {
	for _, inst := range b.Schedule {
		if inst.DueDate.Equal(due) {
			return inst, true
		}
	}
	return domain.Installment{}, false
}

func (b *Book) loanID() string {
	return b.Loan.ID.String()
}

// NextUnpaidInstallment returns the earliest installment without a completed payment.
// A closed loan has none left. An active loan whose every installment is paid is
// inconsistent and reported as such.
func NextUnpaidInstallment(b *Book) (*domain.Installment, error) {
	if b.Loan.IsClosed() {
		return nil, customError.WrapLoanAlreadyClosed(b.loanID())
	}
	for _, inst := range b.Schedule {
		if b.completed(inst.DueDate) == nil {
			found := inst
			return &found, nil
		}
	}
	return nil, customError.WrapLedgerInconsistent(b.loanID(),
		"loan is active with balance "+b.Loan.AmountFinanced.StringFixed(2)+" but every installment is paid")
}

// InstallmentDue resolves a client supplied due date to an unpaid installment.
func InstallmentDue(b *Book, dueDateISO string) (*domain.Installment, error) {
	if b.Loan.IsClosed() {
		return nil, customError.WrapLoanAlreadyClosed(b.loanID())
	}
	due, err := utils.ParseDueDateISO(dueDateISO)
	if err != nil {
		return nil, customError.WrapUnknownOrAlreadyPaidInstallment(dueDateISO)
	}
	inst, ok := b.installmentOn(due)
	if !ok || b.completed(due) != nil {
		return nil, customError.WrapUnknownOrAlreadyPaidInstallment(dueDateISO)
	}
	return &inst, nil
}

// PaymentInput carries what the caller knows about a payment event
type PaymentInput struct {
	Amount       decimal.Decimal
	Method       string
	Mode         string
	Note         *string
	ProcessorRef *string
	Now          time.Time
}

// ApplyPayment records a completed payment for inst and takes the installment amount
// off the balance. The loan closes when the balance reaches zero. Inputs are not
// mutated; the new payment and loan are returned.
func ApplyPayment(b *Book, inst domain.Installment, in PaymentInput) (*domain.Payment, *domain.Loan, error) {
	if b.Loan.IsClosed() {
		return nil, nil, customError.WrapLoanAlreadyClosed(b.loanID())
	}
	if !in.Amount.IsPositive() || !utils.IsMoney(in.Amount) {
		return nil, nil, customError.WrapInvalidAmount(in.Amount.String())
	}
	if err := checkPayable(b, inst); err != nil {
		return nil, nil, err
	}

	loan, err := decrement(b.Loan, inst.Amount, in.Now)
	if err != nil {
		return nil, nil, err
	}

	payment := newPayment(b.Loan, inst, in, domain.PaymentStatusCompleted)
	return payment, loan, nil
}

// RecordFailure builds the failed payment of a declined charge. The loan is untouched.
func RecordFailure(b *Book, inst domain.Installment, in PaymentInput) (*domain.Payment, error) {
	if _, ok := b.installmentOn(inst.DueDate); !ok {
		return nil, customError.WrapUnknownOrAlreadyPaidInstallment(inst.DueDateISO())
	}
	return newPayment(b.Loan, inst, in, domain.PaymentStatusFailed), nil
}

// WaiveInstallment satisfies inst without money changing hands.
func WaiveInstallment(b *Book, inst domain.Installment, note string, policy WaivePolicy, now time.Time) (*domain.Payment, *domain.Loan, error) {
	if b.Loan.IsClosed() {
		return nil, nil, customError.WrapLoanAlreadyClosed(b.loanID())
	}
	if err := checkPayable(b, inst); err != nil {
		return nil, nil, err
	}

	in := PaymentInput{
		Amount: decimal.Zero,
		Method: domain.PaymentMethodWaived,
		Mode:   domain.PaymentModeManual,
		Note:   &note,
		Now:    now,
	}

	switch policy {
	case WaivePolicyDefer:
		if b.deferred(inst.DueDate) {
			return nil, nil, customError.WrapAlreadyPaid(inst.DueDateISO())
		}
		loan := *b.Loan
		loan.UpdatedAt = now
		return newPayment(b.Loan, inst, in, PaymentStatusDeferred), &loan, nil
	default:
		loan, err := decrement(b.Loan, inst.Amount, now)
		if err != nil {
			return nil, nil, err
		}
		return newPayment(b.Loan, inst, in, domain.PaymentStatusCompleted), loan, nil
	}
}

// ReconcilePaymentStatus applies an admin status change to a recorded payment.
// failed -> completed settles the installment like ApplyPayment; a completed payment
// cannot be reverted because closure is terminal.
func ReconcilePaymentStatus(b *Book, paymentID uuid.UUID, status string, now time.Time) (*domain.Payment, *domain.Loan, error) {
	var current *domain.Payment
	for _, p := range b.Payments {
		if p.ID == paymentID {
			current = p
			break
		}
	}
	if current == nil {
		return nil, nil, customError.WrapPaymentNotFound(paymentID.String())
	}

	if current.Status == status {
		payment, loan := *current, *b.Loan
		return &payment, &loan, nil
	}
	if current.Status != domain.PaymentStatusFailed || status != domain.PaymentStatusCompleted {
		return nil, nil, customError.WrapInvalidStatusTransition(current.Status, status)
	}
	if b.Loan.IsClosed() {
		return nil, nil, customError.WrapLoanAlreadyClosed(b.loanID())
	}

	due := utils.DateOnly(current.DueDate)
	inst, ok := b.installmentOn(due)
	if !ok {
		return nil, nil, customError.WrapUnknownOrAlreadyPaidInstallment(due.Format(time.DateOnly))
	}
	if err := checkPayable(b, inst); err != nil {
		return nil, nil, err
	}

	loan, err := decrement(b.Loan, inst.Amount, now)
	if err != nil {
		return nil, nil, err
	}

	payment := *current
	payment.Status = domain.PaymentStatusCompleted
	payment.UpdatedAt = now
	return &payment, loan, nil
}

func checkPayable(b *Book, inst domain.Installment) error {
	scheduled, ok := b.installmentOn(utils.DateOnly(inst.DueDate))
	if !ok || scheduled.Sequence != inst.Sequence {
		return customError.WrapUnknownOrAlreadyPaidInstallment(inst.DueDateISO())
	}
	if b.completed(scheduled.DueDate) != nil {
		return customError.WrapAlreadyPaid(inst.DueDateISO())
	}
	return nil
}

// decrement returns a copy of loan with amount taken off. Going below zero means the
// schedule and the balance disagree, which is surfaced instead of clamped.
func decrement(loan *domain.Loan, amount decimal.Decimal, now time.Time) (*domain.Loan, error) {
	remaining := loan.AmountFinanced.Sub(amount)
	if remaining.IsNegative() {
		return nil, customError.WrapBalanceUnderflow(loan.ID.String(), loan.AmountFinanced.StringFixed(2), amount.StringFixed(2))
	}

	updated := *loan
	updated.AmountFinanced = remaining
	updated.UpdatedAt = now
	if remaining.IsZero() {
		updated.Status = domain.LoanStatusClosed
	}
	return &updated, nil
}

func newPayment(loan *domain.Loan, inst domain.Installment, in PaymentInput, status string) *domain.Payment {
	mode := in.Mode
	if mode == "" {
		mode = domain.PaymentModeInstallment
	}
	return &domain.Payment{
		ID:             uuid.New(),
		LoanID:         loan.ID,
		CustomerID:     loan.CustomerID,
		DueDate:        inst.DueDate,
		Amount:         in.Amount,
		ExpectedAmount: inst.Amount,
		Method:         in.Method,
		Mode:           mode,
		Status:         status,
		Note:           in.Note,
		ProcessorRef:   in.ProcessorRef,
		PaymentDate:    in.Now,
		CreatedAt:      in.Now,
		UpdatedAt:      in.Now,
	}
}
