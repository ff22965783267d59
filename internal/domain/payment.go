package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentMethodCard   = "card"
	PaymentMethodManual = "manual"
	PaymentMethodCash   = "cash"
	PaymentMethodCheck  = "check"
	PaymentMethodWaived = "waived"
)

const (
	PaymentModeInstallment = "installment"
	PaymentModeManual      = "manual"
	PaymentModeCheckout    = "checkout"
)

// Payment types a customer can request
const (
	PaymentTypeNext = "next"
	PaymentTypeDue  = "due"
)

// Payment satisfies exactly one installment of a loan
type Payment struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	LoanID         uuid.UUID       `json:"loan_id" db:"loan_id"`
	CustomerID     uuid.UUID       `json:"customer_id" db:"customer_id"`
	DueDate        time.Time       `json:"due_date" db:"due_date"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	ExpectedAmount decimal.Decimal `json:"expected_amount" db:"expected_amount"`
	Method         string          `json:"payment_method" db:"payment_method"`
	Mode           string          `json:"payment_mode" db:"payment_mode"`
	Status         string          `json:"status" db:"status"`
	Note           *string         `json:"note,omitempty" db:"note"`
	ProcessorRef   *string         `json:"processor_ref,omitempty" db:"processor_ref"`
	PaymentDate    time.Time       `json:"payment_date" db:"payment_date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// Requests

type MakePaymentRequest struct {
	LoanID      uuid.UUID `json:"loan_id" validate:"required"`
	CardToken   string    `json:"card_token" validate:"required"`
	PaymentType string    `json:"payment_type" validate:"required,oneof=next due"`
	DueDateISO  string    `json:"due_date_iso" validate:"required_if=PaymentType due"`
}

type LinkPaymentRequest struct {
	LinkToken   string `json:"link_token" validate:"required"`
	CardToken   string `json:"card_token" validate:"required"`
	PaymentType string `json:"payment_type" validate:"required,oneof=next due"`
	DueDateISO  string `json:"due_date_iso" validate:"required_if=PaymentType due"`
}

type ManualPaymentRequest struct {
	LoanID     uuid.UUID       `json:"loan_id" validate:"required"`
	DueDateISO string          `json:"due_date_iso" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"decimal_gt0,money"`
	Method     string          `json:"payment_method" validate:"required,oneof=manual cash check card"`
	Note       *string         `json:"note,omitempty" validate:"omitempty,max=500"`
}

type WaiveInstallmentRequest struct {
	LoanID     uuid.UUID `json:"loan_id" validate:"required"`
	DueDateISO string    `json:"due_date_iso" validate:"required"`
	Note       string    `json:"note" validate:"required,max=500"`
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed failed"`
}

// Responses

type PaymentResult struct {
	Payment *Payment `json:"payment"`
	Loan    *Loan    `json:"loan"`
}

type PaymentListResponse struct {
	Items          []*Payment      `json:"items"`
	Total          int             `json:"total"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CompletedCount int             `json:"completed_count"`
	FailedCount    int             `json:"failed_count"`
}

// PaymentFilter narrows admin transaction listings
type PaymentFilter struct {
	CustomerID *uuid.UUID
	LoanID     *uuid.UUID
	From       *time.Time
	To         *time.Time
	Offset     int
	Limit      int
}

// OverdueItem is an unpaid installment whose due date has passed
type OverdueItem struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	DueDate     time.Time       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	DaysOverdue int             `json:"days_overdue"`
}

type OverdueResponse struct {
	Items            []OverdueItem   `json:"items"`
	Total            int             `json:"total"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	AvgDaysOverdue   float64         `json:"avg_days_overdue"`
}

// CalendarItem is one installment due on, or before, a calendar day
type CalendarItem struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	VehicleID   uuid.UUID       `json:"vehicle_id"`
	DueDate     time.Time       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentID   *uuid.UUID      `json:"payment_id,omitempty"`
	DaysOverdue int             `json:"days_overdue,omitempty"`
}

// PaymentCalendar groups installments around one day: paid and pending are due that
// day, overdue were due before it and are still unpaid.
type PaymentCalendar struct {
	Date          string          `json:"date"`
	Paid          []CalendarItem  `json:"paid"`
	Pending       []CalendarItem  `json:"pending"`
	Overdue       []CalendarItem  `json:"overdue"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}
