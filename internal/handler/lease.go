package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
)

type LeaseHandler struct {
	service   LeaseService
	validator *validator.Validate
}

func NewLeaseHandler(service LeaseService) *LeaseHandler {
	return &LeaseHandler{
		service:   service,
		validator: newValidator(),
	}
}

// CreateCustomer handles POST /admin/customers
func (h *LeaseHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCustomerRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.CreateCustomerWithLeases(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, resp)
}

// GetSchedule handles GET /loans/{loanId}/schedule
func (h *LeaseHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	viewer, ok := principal(w, r)
	if !ok {
		return
	}
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), loanID, viewer)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, schedule)
}

// GetSummary handles GET /admin/loans/{loanId}/summary
func (h *LeaseHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(r.Context(), loanID)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, summary)
}

// MyLoans handles GET /loans/me
func (h *LeaseHandler) MyLoans(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	loans, err := h.service.ListCustomerLoans(r.Context(), p.ID)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, loans)
}
