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

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

const customerColumns = `id, first_name, last_name, email, phone, password_hash, device_token, status, created_at, updated_at`

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.GetContext(ctx, &customer, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCustomerNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return &customer, nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.GetContext(ctx, &customer,
		`SELECT `+customerColumns+` FROM customers WHERE lower(email) = $1`, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCustomerNotFound(email)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return &customer, nil
}

type adminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) AdminRepository {
	return &adminRepository{db: db}
}

// GetByEmail returns ErrInvalidCredentials for unknown admins so logins do not reveal accounts
func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	var admin domain.Admin
	err := r.db.GetContext(ctx, &admin,
		`SELECT id, name, email, password_hash, created_at FROM admins WHERE lower(email) = $1`, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvalidCredentials()
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return &admin, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO admins (id, name, email, password_hash, created_at)
		VALUES (:id, :name, :email, :password_hash, :created_at)
	`, admin)
	if err != nil {
		if isUniqueViolation(err) {
			return customError.WrapAdminAlreadyExists(admin.Email)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

const vehicleColumns = `id, vin, make, model, year, lease_price, status, created_at, updated_at`

type vehicleRepository struct {
	db *sqlx.DB
}

func NewVehicleRepository(db *sqlx.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Vehicle, error) {
	vehicles := make(map[uuid.UUID]*domain.Vehicle, len(ids))
	if len(ids) == 0 {
		return vehicles, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	var rows []*domain.Vehicle
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	for _, v := range rows {
		vehicles[v.ID] = v
	}
	return vehicles, nil
}

func (r *vehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	return r.get(ctx, id.String(), `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
}

func (r *vehicleRepository) GetByVIN(ctx context.Context, vin string) (*domain.Vehicle, error) {
	vin = strings.ToUpper(vin)
	return r.get(ctx, vin, `SELECT `+vehicleColumns+` FROM vehicles WHERE vin = $1`, vin)
}

func (r *vehicleRepository) get(ctx context.Context, key, query string, arg interface{}) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	if err := r.db.GetContext(ctx, &vehicle, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapVehicleNotFound(key)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return &vehicle, nil
}

func (r *vehicleRepository) List(ctx context.Context, filter domain.VehicleFilter) (*domain.VehicleListResponse, error) {
	where, args := "", []interface{}{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filter.Status)
	}

	resp := &domain.VehicleListResponse{Items: []*domain.Vehicle{}}
	if err := r.db.GetContext(ctx, &resp.Total, `SELECT COUNT(*) FROM vehicles`+where, args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	pageQuery := fmt.Sprintf(`SELECT %s FROM vehicles%s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		vehicleColumns, where, len(args)+1, len(args)+2)
	if err := r.db.SelectContext(ctx, &resp.Items, pageQuery, append(args, limit, filter.Offset)...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return resp, nil
}

func (r *vehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES (:id, :vin, :make, :model, :year, :lease_price, :status, :created_at, :updated_at)
	`, vehicle)
	if err != nil {
		if isUniqueViolation(err) {
			return customError.WrapVehicleAlreadyExists(vehicle.VIN)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *vehicleRepository) Update(ctx context.Context, vehicle *domain.Vehicle) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE vehicles
		SET make = :make, model = :model, year = :year, lease_price = :lease_price, updated_at = :updated_at
		WHERE id = :id
	`, vehicle)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return vehicleAffected(res, vehicle.ID)
}

// Delete fails with ErrVehicleUnavailable while any loan, closed or not, references the vehicle
func (r *vehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return customError.WrapVehicleUnavailable(id.String(), "has leases and cannot be deleted")
		}
		return customError.WrapDatabaseError(err)
	}
	return vehicleAffected(res, id)
}

func vehicleAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n == 0 {
		return customError.WrapVehicleNotFound(id.String())
	}
	return nil
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Record(ctx context.Context, log *domain.NotificationLog) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notification_logs (id, notification_type, scope_key, customer_id, title, body, sent_at)
		VALUES (:id, :notification_type, :scope_key, :customer_id, :title, :body, :sent_at)
		ON CONFLICT (notification_type, scope_key) DO NOTHING
	`, log)
	if err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	return n == 1, nil
}
