package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

const (
	VehicleStatusAvailable = "available"
	VehicleStatusLeased    = "leased"
)

type Customer struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	DeviceToken  *string   `json:"-" db:"device_token"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Admin struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Vehicle struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	VIN        string          `json:"vin" db:"vin"`
	Make       string          `json:"make" db:"make"`
	Model      string          `json:"model" db:"model"`
	Year       int             `json:"year" db:"year"`
	LeasePrice decimal.Decimal `json:"lease_price" db:"lease_price"`
	Status     string          `json:"status" db:"status"` // available, leased
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

func (v *Vehicle) Display() string {
	return v.Make + " " + v.Model
}

// Vehicle DTOs

type CreateVehicleRequest struct {
	VIN        string          `json:"vin" validate:"required,len=17,alphanum"`
	Make       string          `json:"make" validate:"required,max=100"`
	Model      string          `json:"model" validate:"required,max=100"`
	Year       int             `json:"year" validate:"gte=1900,lte=2100"`
	LeasePrice decimal.Decimal `json:"lease_price" validate:"decimal_gt0,money"`
}

// UpdateVehicleRequest replaces the descriptive fields of a vehicle. VIN and status are
// not editable.
type UpdateVehicleRequest struct {
	Make       string          `json:"make" validate:"required,max=100"`
	Model      string          `json:"model" validate:"required,max=100"`
	Year       int             `json:"year" validate:"gte=1900,lte=2100"`
	LeasePrice decimal.Decimal `json:"lease_price" validate:"decimal_gt0,money"`
}

// VehicleFilter narrows vehicle listings
type VehicleFilter struct {
	Status string
	Offset int
	Limit  int
}

type VehicleListResponse struct {
	Items []*Vehicle `json:"items"`
	Total int        `json:"total"`
}

// Admin DTOs

type CreateAdminRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Auth DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PaymentLinkResponse struct {
	LinkToken string    `json:"link_token"`
	ExpiresAt time.Time `json:"expires_at"`
}
