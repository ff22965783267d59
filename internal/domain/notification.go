package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	NotificationDueTomorrow      = "due_tomorrow"
	NotificationOverdue          = "overdue"
	NotificationPaymentReceived  = "payment_received"
	NotificationPaymentConfirmed = "payment_confirmed"
)

// NotificationLog records a sent notification; (type, scope_key) is unique
type NotificationLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Type       string    `json:"notification_type" db:"notification_type"`
	ScopeKey   string    `json:"scope_key" db:"scope_key"`
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"body" db:"body"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
}

// ScopeKeyForLoanDue scopes due_tomorrow notifications.
func ScopeKeyForLoanDue(loanID uuid.UUID, dueDate time.Time) string {
	return fmt.Sprintf("loan:%s:due:%s", loanID, dueDate.Format(time.DateOnly))
}

// ScopeKeyForOverdue scopes overdue notifications to one per installment and run day,
// so an unpaid due is reminded daily while it stays in the overdue window.
func ScopeKeyForOverdue(loanID uuid.UUID, dueDate, runDate time.Time) string {
	return ScopeKeyForLoanDue(loanID, dueDate) + ":overdue:" + runDate.Format(time.DateOnly)
}

// ScopeKeyForPayment scopes payment_received and payment_confirmed notifications.
func ScopeKeyForPayment(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:%s", paymentID)
}
