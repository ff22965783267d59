package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/lease-billing/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// ListByCustomer retrieves the loans of a customer, newest first
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error)

	// ListActive retrieves every loan that still has a balance
	ListActive(ctx context.Context) ([]*domain.Loan, error)

	// List retrieves every loan, closed ones included
	List(ctx context.Context) ([]*domain.Loan, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// ListByLoan retrieves all payments for a loan ordered by due date
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// ListByLoans retrieves the payments of several loans keyed by loan ID
	ListByLoans(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Payment, error)

	// List retrieves a page of payments and the totals of the whole filtered set
	List(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentListResponse, error)
}

// CustomerRepository defines the interface for customer data operations
type CustomerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

// AdminRepository defines the interface for admin data operations
type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	Create(ctx context.Context, admin *domain.Admin) error
}

// VehicleRepository defines the interface for vehicle data operations
type VehicleRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Vehicle, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error)
	GetByVIN(ctx context.Context, vin string) (*domain.Vehicle, error)
	List(ctx context.Context, filter domain.VehicleFilter) (*domain.VehicleListResponse, error)
	Create(ctx context.Context, vehicle *domain.Vehicle) error
	Update(ctx context.Context, vehicle *domain.Vehicle) error

	// Delete removes a vehicle that no loan references
	Delete(ctx context.Context, id uuid.UUID) error
}

// NotificationRepository records sent notifications
type NotificationRepository interface {
	// Record stores the log entry and reports false when (type, scope_key) was already sent
	Record(ctx context.Context, log *domain.NotificationLog) (bool, error)
}

// OnboardingStore creates a customer and their leases atomically
type OnboardingStore interface {
	Onboard(ctx context.Context, customer *domain.Customer, loans []*domain.Loan) error
}

// LedgerTx is the view of one locked loan inside a transaction
type LedgerTx interface {
	Loan() *domain.Loan
	Payments() []*domain.Payment
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, payment *domain.Payment) error
	SaveLoan(ctx context.Context, loan *domain.Loan) error
}

// LedgerStore serializes writers of a loan. fn runs with the loan row locked; its writes
// commit when it returns nil and roll back otherwise.
type LedgerStore interface {
	WithLoanLock(ctx context.Context, loanID uuid.UUID, fn func(tx LedgerTx) error) error
}
