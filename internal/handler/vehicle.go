package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/pkg/response"
)

type VehicleHandler struct {
	service   VehicleService
	validator *validator.Validate
}

func NewVehicleHandler(service VehicleService) *VehicleHandler {
	return &VehicleHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Create handles POST /admin/vehicles
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateVehicleRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	vehicle, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, vehicle)
}

// List handles GET /admin/vehicles?status=&offset=&limit=
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := page(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", domain.VehicleStatusAvailable, domain.VehicleStatusLeased:
	default:
		response.BadRequest(w, "status must be available or leased", nil)
		return
	}

	list, err := h.service.List(r.Context(), domain.VehicleFilter{Status: status, Offset: offset, Limit: limit})
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, list)
}

// Get handles GET /admin/vehicles/{vehicleId}
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "vehicleId")
	if !ok {
		return
	}

	vehicle, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, vehicle)
}

// GetByVIN handles GET /admin/vehicles/vin/{vin}
func (h *VehicleHandler) GetByVIN(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.GetByVIN(r.Context(), mux.Vars(r)["vin"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, vehicle)
}

// Update handles PUT /admin/vehicles/{vehicleId}
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "vehicleId")
	if !ok {
		return
	}
	var req domain.UpdateVehicleRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	vehicle, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, vehicle)
}

// Delete handles DELETE /admin/vehicles/{vehicleId}
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "vehicleId")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
