package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/metrics"
	"github.com/segyhp/lease-billing/pkg/response"
)

// RouterDeps are the pieces the API router is assembled from
type RouterDeps struct {
	Auth     *AuthHandler
	Leases   *LeaseHandler
	Payments *PaymentHandler
	Admins   *AdminHandler
	Vehicles *VehicleHandler
	Health   *HealthHandler
	Issuer   *auth.Issuer
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
}

func NewRouter(d RouterDeps) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, response.LoggingMiddleware(d.Log), d.Metrics.Middleware)

	// Health check
	router.HandleFunc("/health", d.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", d.Health.Ready).Methods(http.MethodGet)
	router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(response.JSONMiddleware)

	api.HandleFunc("/auth/admin/login", d.Auth.AdminLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/customer/login", d.Auth.CustomerLogin).Methods(http.MethodPost)
	api.HandleFunc("/payments/pay", d.Payments.PayByLink).Methods(http.MethodPost)

	customer := auth.Middleware(d.Issuer, auth.RoleCustomer)
	anyone := auth.Middleware(d.Issuer, auth.RoleCustomer, auth.RoleAdmin)

	api.Handle("/payments", customer(http.HandlerFunc(d.Payments.Pay))).Methods(http.MethodPost)
	api.Handle("/payments/", customer(http.HandlerFunc(d.Payments.Pay))).Methods(http.MethodPost)
	api.Handle("/payments/me", customer(http.HandlerFunc(d.Payments.ListMine))).Methods(http.MethodGet)
	api.Handle("/loans/me", customer(http.HandlerFunc(d.Leases.MyLoans))).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}/schedule", anyone(http.HandlerFunc(d.Leases.GetSchedule))).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.Middleware(d.Issuer, auth.RoleAdmin))

	admin.HandleFunc("/admins", d.Admins.Create).Methods(http.MethodPost)
	admin.HandleFunc("/customers", d.Leases.CreateCustomer).Methods(http.MethodPost)
	admin.HandleFunc("/vehicles", d.Vehicles.Create).Methods(http.MethodPost)
	admin.HandleFunc("/vehicles", d.Vehicles.List).Methods(http.MethodGet)
	admin.HandleFunc("/vehicles/vin/{vin}", d.Vehicles.GetByVIN).Methods(http.MethodGet)
	admin.HandleFunc("/vehicles/{vehicleId}", d.Vehicles.Get).Methods(http.MethodGet)
	admin.HandleFunc("/vehicles/{vehicleId}", d.Vehicles.Update).Methods(http.MethodPut)
	admin.HandleFunc("/vehicles/{vehicleId}", d.Vehicles.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/calendar/payment", d.Payments.Calendar).Methods(http.MethodGet)
	admin.HandleFunc("/loans/{loanId}/summary", d.Leases.GetSummary).Methods(http.MethodGet)
	admin.HandleFunc("/loans/{loanId}/payment-link", d.Payments.CreatePaymentLink).Methods(http.MethodPost)
	admin.HandleFunc("/payments", d.Payments.ListAdmin).Methods(http.MethodGet)
	admin.HandleFunc("/payments/overdue", d.Payments.Overdue).Methods(http.MethodGet)
	admin.HandleFunc("/payments/manual", d.Payments.RecordManual).Methods(http.MethodPost)
	admin.HandleFunc("/payments/waive", d.Payments.Waive).Methods(http.MethodPost)
	admin.HandleFunc("/payments/{paymentId}/status", d.Payments.UpdateStatus).Methods(http.MethodPatch)

	return router
}
