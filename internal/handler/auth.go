package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
)

type AuthHandler struct {
	service   AuthService
	validator *validator.Validate
}

func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: newValidator(),
	}
}

// AdminLogin handles POST /auth/admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.AdminLogin(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, resp)
}

// CustomerLogin handles POST /auth/customer/login
func (h *AuthHandler) CustomerLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.CustomerLogin(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, resp)
}
