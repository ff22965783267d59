package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

const paymentColumns = `id, loan_id, customer_id, due_date, amount, expected_amount, payment_method,
	payment_mode, status, note, processor_ref, payment_date, created_at, updated_at`

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return &payment, nil
}

func (r *paymentRepository) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1 ORDER BY due_date, created_at`

	payments := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return payments, nil
}

func (r *paymentRepository) ListByLoans(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Payment, error) {
	byLoan := make(map[uuid.UUID][]*domain.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return byLoan, nil
	}

	ids := make([]string, len(loanIDs))
	for i, id := range loanIDs {
		ids[i] = id.String()
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = ANY($1::uuid[]) ORDER BY due_date, created_at`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, pq.Array(ids)); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, p := range payments {
		byLoan[p.LoanID] = append(byLoan[p.LoanID], p)
	}
	return byLoan, nil
}

type paymentTotals struct {
	Total          int             `db:"total"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	CompletedCount int             `db:"completed_count"`
	FailedCount    int             `db:"failed_count"`
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentListResponse, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.LoanID != nil {
		add("loan_id = $%d", *filter.LoanID)
	}
	if filter.From != nil {
		add("payment_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("payment_date < $%d", *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totals paymentTotals
	totalsQuery := `
		SELECT COUNT(*) AS total,
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0) AS total_amount,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_count,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_count
		FROM payments` + where
	if err := r.db.GetContext(ctx, &totals, totalsQuery, args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	pageArgs := append(append([]interface{}{}, args...), limit, offset)
	pageQuery := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY payment_date DESC, id LIMIT $%d OFFSET $%d`,
		paymentColumns, where, len(args)+1, len(args)+2)

	items := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &items, pageQuery, pageArgs...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.PaymentListResponse{
		Items:          items,
		Total:          totals.Total,
		TotalAmount:    totals.TotalAmount,
		CompletedCount: totals.CompletedCount,
		FailedCount:    totals.FailedCount,
	}, nil
}
