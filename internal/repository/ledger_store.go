package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

type ledgerStore struct {
	db *sqlx.DB
}

func NewLedgerStore(db *sqlx.DB) LedgerStore {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) WithLoanLock(ctx context.Context, loanID uuid.UUID, fn func(tx LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	var loan domain.Loan
	if err := tx.GetContext(ctx, &loan, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapLoanNotFound(loanID.String())
		}
		return customError.WrapDatabaseError(err)
	}

	payments := []*domain.Payment{}
	if err := tx.SelectContext(ctx, &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY due_date, created_at`, loanID); err != nil {
		return customError.WrapDatabaseError(err)
	}

	if err := fn(&ledgerTx{tx: tx, loan: &loan, payments: payments}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

type ledgerTx struct {
	tx       *sqlx.Tx
	loan     *domain.Loan
	payments []*domain.Payment
}

func (t *ledgerTx) Loan() *domain.Loan {
	return t.loan
}

func (t *ledgerTx) Payments() []*domain.Payment {
	return t.payments
}

func (t *ledgerTx) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (:id, :loan_id, :customer_id, :due_date, :amount, :expected_amount, :payment_method,
			:payment_mode, :status, :note, :processor_ref, :payment_date, :created_at, :updated_at)
	`, payment)
	if err != nil {
		if isUniqueViolation(err) {
			return customError.WrapAlreadyPaid(payment.DueDate.Format("2006-01-02"))
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (t *ledgerTx) UpdatePaymentStatus(ctx context.Context, payment *domain.Payment) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = $3
		WHERE id = $1 AND loan_id = $4
	`, payment.ID, payment.Status, payment.UpdatedAt, t.loan.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return customError.WrapAlreadyPaid(payment.DueDate.Format("2006-01-02"))
		}
		return customError.WrapDatabaseError(err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return customError.WrapPaymentNotFound(payment.ID.String())
	}
	return nil
}

func (t *ledgerTx) SaveLoan(ctx context.Context, loan *domain.Loan) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE loans SET amount_financed = $2, status = $3, updated_at = $4
		WHERE id = $1
	`, loan.ID, loan.AmountFinanced, loan.Status, loan.UpdatedAt)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
