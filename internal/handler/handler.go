package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
	"github.com/segyhp/lease-billing/pkg/utils"
)

const maxBodyBytes = 1 << 20

// AuthService is what the auth endpoints need
type AuthService interface {
	AdminLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	CustomerLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
}

// LeaseService is what the lease and schedule endpoints need
type LeaseService interface {
	CreateCustomerWithLeases(ctx context.Context, req *domain.CreateCustomerRequest) (*domain.CreateCustomerResponse, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID, viewer *auth.Principal) (*domain.ScheduleResponse, error)
	GetSummary(ctx context.Context, loanID uuid.UUID) (*domain.LedgerSummary, error)
	ListCustomerLoans(ctx context.Context, customerID uuid.UUID) ([]*domain.LoanWithDue, error)
}

// PaymentService is what the payment endpoints need
type PaymentService interface {
	Pay(ctx context.Context, customerID uuid.UUID, req *domain.MakePaymentRequest) (*domain.PaymentResult, error)
	PayByLink(ctx context.Context, req *domain.LinkPaymentRequest) (*domain.PaymentResult, error)
	CreatePaymentLink(ctx context.Context, loanID uuid.UUID) (*domain.PaymentLinkResponse, error)
	RecordManual(ctx context.Context, req *domain.ManualPaymentRequest) (*domain.PaymentResult, error)
	Waive(ctx context.Context, req *domain.WaiveInstallmentRequest) (*domain.PaymentResult, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, status string) (*domain.PaymentResult, error)
	ListMine(ctx context.Context, customerID uuid.UUID, offset, limit int) (*domain.PaymentListResponse, error)
	ListAdmin(ctx context.Context, filter domain.PaymentFilter) (*domain.PaymentListResponse, error)
	Overdue(ctx context.Context) (*domain.OverdueResponse, error)
	Calendar(ctx context.Context, dateISO string) (*domain.PaymentCalendar, error)
}

// AdminService is what the admin account endpoints need
type AdminService interface {
	CreateAdmin(ctx context.Context, req *domain.CreateAdminRequest) (*domain.Admin, error)
}

// VehicleService is what the fleet endpoints need
type VehicleService interface {
	Create(ctx context.Context, req *domain.CreateVehicleRequest) (*domain.Vehicle, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error)
	GetByVIN(ctx context.Context, vin string) (*domain.Vehicle, error)
	List(ctx context.Context, filter domain.VehicleFilter) (*domain.VehicleListResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.UpdateVehicleRequest) (*domain.Vehicle, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// newValidator registers the decimal tags used by the request DTOs
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gt0", validateDecimal(func(d decimal.Decimal) bool { return d.IsPositive() }))
	_ = v.RegisterValidation("decimal_gte0", validateDecimal(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = v.RegisterValidation("money", validateDecimal(utils.IsMoney))
	return v
}

func validateDecimal(check func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && check(d)
	}
}

// decode reads a JSON body into dst and validates it. It answers the request itself
// and returns false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	if err := v.Struct(dst); err != nil {
		response.BadRequest(w, validationMessage(err), nil)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid %s: %q", name, raw), nil)
		return uuid.Nil, false
	}
	return id, true
}

func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return nil, false
	}
	return p, true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
