package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
	"github.com/segyhp/lease-billing/pkg/utils"
)

const defaultPageSize = 50

type PaymentHandler struct {
	service   PaymentService
	validator *validator.Validate
}

func NewPaymentHandler(service PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Pay handles POST /payments/ for the logged in customer
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req domain.MakePaymentRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Pay(r.Context(), p.ID, &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, result)
}

// PayByLink handles POST /payments/pay; the link token is the only credential
func (h *PaymentHandler) PayByLink(w http.ResponseWriter, r *http.Request) {
	var req domain.LinkPaymentRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.PayByLink(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, result)
}

// CreatePaymentLink handles POST /admin/loans/{loanId}/payment-link
func (h *PaymentHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	link, err := h.service.CreatePaymentLink(r.Context(), loanID)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, link)
}

// RecordManual handles POST /admin/payments/manual
func (h *PaymentHandler) RecordManual(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualPaymentRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.RecordManual(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, result)
}

// Waive handles POST /admin/payments/waive
func (h *PaymentHandler) Waive(w http.ResponseWriter, r *http.Request) {
	var req domain.WaiveInstallmentRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Waive(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, result)
}

// UpdateStatus handles PATCH /admin/payments/{paymentId}/status
func (h *PaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}
	var req domain.UpdatePaymentStatusRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.UpdateStatus(r.Context(), paymentID, req.Status)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, result)
}

// ListMine handles GET /payments/me
func (h *PaymentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	offset, limit, ok := page(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListMine(r.Context(), p.ID, offset, limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, list)
}

// ListAdmin handles GET /admin/payments?customer_id=&loan_id=&from=&to=&offset=&limit=
func (h *PaymentHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := page(w, r)
	if !ok {
		return
	}
	filter := domain.PaymentFilter{Offset: offset, Limit: limit}

	q := r.URL.Query()
	for name, dst := range map[string]**uuid.UUID{"customer_id": &filter.CustomerID, "loan_id": &filter.LoanID} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid "+name, nil)
			return
		}
		*dst = &id
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		day, err := utils.ParseDueDateISO(raw)
		if err != nil {
			response.BadRequest(w, "Invalid "+name, err)
			return
		}
		*dst = &day
	}

	list, err := h.service.ListAdmin(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, list)
}

// Calendar handles GET /admin/calendar/payment?date=YYYY-MM-DD
func (h *PaymentHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		response.BadRequest(w, "date is required", nil)
		return
	}

	cal, err := h.service.Calendar(r.Context(), date)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, cal)
}

// Overdue handles GET /admin/payments/overdue
func (h *PaymentHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Overdue(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, report)
}

func page(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		response.BadRequest(w, err.Error(), nil)
		return 0, 0, false
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		response.BadRequest(w, err.Error(), nil)
		return 0, 0, false
	}
	return offset, limit, true
}
