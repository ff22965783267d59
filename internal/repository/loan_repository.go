package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

const loanColumns = `id, customer_id, vehicle_id, lease_amount, down_payment, amount_financed,
	per_due_payment_amount, term_months, payment_frequency, start_date, status, created_at, updated_at`

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return &loan, nil
}

func (r *loanRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY created_at DESC`

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query, customerID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return loans, nil
}

func (r *loanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY created_at`

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query, domain.LoanStatusActive); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return loans, nil
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, `SELECT `+loanColumns+` FROM loans ORDER BY created_at`); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

type onboardingStore struct {
	db *sqlx.DB
}

func NewOnboardingStore(db *sqlx.DB) OnboardingStore {
	return &onboardingStore{db: db}
}

// Onboard inserts the customer, claims every leased vehicle and inserts the loans in one
// transaction. A vehicle leased concurrently fails the whole onboarding.
func (s *onboardingStore) Onboard(ctx context.Context, customer *domain.Customer, loans []*domain.Loan) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO customers (id, first_name, last_name, email, phone, password_hash, device_token, status, created_at, updated_at)
		VALUES (:id, :first_name, :last_name, :email, :phone, :password_hash, :device_token, :status, :created_at, :updated_at)
	`, customer)
	if err != nil {
		if isUniqueViolation(err) {
			return customError.WrapCustomerAlreadyExists(customer.Email)
		}
		return customError.WrapDatabaseError(err)
	}

	for _, loan := range loans {
		res, err := tx.ExecContext(ctx, `
			UPDATE vehicles SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
		`, loan.VehicleID, domain.VehicleStatusLeased, loan.CreatedAt, domain.VehicleStatusAvailable)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return customError.WrapVehicleUnavailable(loan.VehicleID.String(), "is already leased")
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO loans (`+loanColumns+`)
			VALUES (:id, :customer_id, :vehicle_id, :lease_amount, :down_payment, :amount_financed,
				:per_due_payment_amount, :term_months, :payment_frequency, :start_date, :status, :created_at, :updated_at)
		`, loan)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
