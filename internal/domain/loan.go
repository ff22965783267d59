package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive = "active"
	LoanStatusClosed = "closed"
)

// Payment frequencies a lease can be billed at
const (
	FrequencyBiWeekly    = "bi_weekly"
	FrequencyMonthly     = "monthly"
	FrequencySemiMonthly = "semi_monthly"
)

// Loan represents the financing attached to one customer-vehicle lease
type Loan struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	CustomerID          uuid.UUID       `json:"customer_id" db:"customer_id"`
	VehicleID           uuid.UUID       `json:"vehicle_id" db:"vehicle_id"`
	LeaseAmount         decimal.Decimal `json:"lease_amount" db:"lease_amount"`
	DownPayment         decimal.Decimal `json:"down_payment" db:"down_payment"`
	AmountFinanced      decimal.Decimal `json:"amount_financed" db:"amount_financed"`
	PerDuePaymentAmount decimal.Decimal `json:"per_due_payment_amount" db:"per_due_payment_amount"`
	TermMonths          int             `json:"term_months" db:"term_months"`
	PaymentFrequency    string          `json:"payment_frequency" db:"payment_frequency"`
	StartDate           time.Time       `json:"start_date" db:"start_date"`
	Status              string          `json:"status" db:"status"` // active, closed
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Terms rebuilds the lease terms the loan was created from.
func (l *Loan) Terms() LoanTerms {
	return LoanTerms{
		LeaseAmount: l.LeaseAmount,
		DownPayment: l.DownPayment,
		TermMonths:  l.TermMonths,
		Frequency:   l.PaymentFrequency,
		StartDate:   l.StartDate,
	}
}

func (l *Loan) IsClosed() bool {
	return l.Status == LoanStatusClosed
}

// LoanTerms are the immutable inputs of schedule generation
type LoanTerms struct {
	LeaseAmount decimal.Decimal
	DownPayment decimal.Decimal
	TermMonths  int
	Frequency   string
	StartDate   time.Time
}

// AmountFinanced is the part of the lease left to be paid in installments.
func (t LoanTerms) AmountFinanced() decimal.Decimal {
	return t.LeaseAmount.Sub(t.DownPayment)
}

// DTOs for requests and responses

type VehicleLeaseRequest struct {
	VehicleID        uuid.UUID       `json:"vehicle_id" validate:"required"`
	LeaseAmount      decimal.Decimal `json:"lease_amount" validate:"decimal_gt0,money"`
	DownPayment      decimal.Decimal `json:"down_payment" validate:"decimal_gte0,money"`
	TermMonths       int             `json:"term_months" validate:"gte=0"`
	PaymentFrequency string          `json:"payment_frequency" validate:"required,oneof=bi_weekly monthly semi_monthly"`
	StartDate        string          `json:"start_date,omitempty"` // ISO date, defaults to today
}

type CreateCustomerRequest struct {
	FirstName string                `json:"first_name" validate:"required"`
	LastName  string                `json:"last_name" validate:"required"`
	Email     string                `json:"email" validate:"required,email"`
	Phone     string                `json:"phone"`
	Leases    []VehicleLeaseRequest `json:"leases" validate:"dive"`
}

type CreateCustomerResponse struct {
	Customer          *Customer      `json:"customer"`
	TemporaryPassword string         `json:"temporary_password"`
	Loans             []*LoanWithDue `json:"loans"`
}

// LoanWithDue is a loan plus its generated schedule
type LoanWithDue struct {
	Loan     *Loan         `json:"loan"`
	Schedule []Installment `json:"schedule"`
}
