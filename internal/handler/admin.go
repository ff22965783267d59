package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
)

type AdminHandler struct {
	service   AdminService
	validator *validator.Validate
}

func NewAdminHandler(service AdminService) *AdminHandler {
	return &AdminHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Create handles POST /admin/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAdminRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	admin, err := h.service.CreateAdmin(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, admin)
}
