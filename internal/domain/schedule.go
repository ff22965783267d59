package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Schedule entry statuses
const (
	ScheduleStatusPaid     = "paid"
	ScheduleStatusUpcoming = "upcoming"
	ScheduleStatusOverdue  = "overdue"
)

// Installment is one scheduled due of a loan. It is derived from LoanTerms, never stored.
type Installment struct {
	Sequence int             `json:"sequence"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
}

// DueDateISO renders the due date the way clients send it back.
func (i Installment) DueDateISO() string {
	return i.DueDate.Format(time.DateOnly)
}

// ScheduleEntry is an installment with its payment state at a point in time
type ScheduleEntry struct {
	Installment
	Status    string     `json:"status"` // paid, upcoming, overdue
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

// LedgerSummary partitions a loan schedule into paid, unpaid and overdue installments
type LedgerSummary struct {
	LoanID         uuid.UUID       `json:"loan_id"`
	Paid           []Installment   `json:"paid"`
	Unpaid         []Installment   `json:"unpaid"`
	Overdue        []Installment   `json:"overdue"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	OverdueAmount  decimal.Decimal `json:"overdue_amount"`
	AmountFinanced decimal.Decimal `json:"amount_financed"`
	Status         string          `json:"status"`
}

type ScheduleResponse struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	PaymentFrequency string          `json:"payment_frequency"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	Entries          []ScheduleEntry `json:"entries"`
}
