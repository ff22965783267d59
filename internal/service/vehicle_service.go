package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/repository"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/utils"
)

// VehicleService manages the fleet that leases are written against
type VehicleService struct {
	vehicles repository.VehicleRepository
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewVehicleService(vehicles repository.VehicleRepository, log logrus.FieldLogger) *VehicleService {
	return &VehicleService{vehicles: vehicles, log: log, now: time.Now}
}

// Create adds an available vehicle. VINs are stored upper case.
func (s *VehicleService) Create(ctx context.Context, req *domain.CreateVehicleRequest) (*domain.Vehicle, error) {
	if err := checkLeasePrice(req.LeasePrice); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	vehicle := &domain.Vehicle{
		ID:         uuid.New(),
		VIN:        strings.ToUpper(strings.TrimSpace(req.VIN)),
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		LeasePrice: req.LeasePrice,
		Status:     domain.VehicleStatusAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"vehicle_id": vehicle.ID, "vin": vehicle.VIN}).Info("Vehicle created")
	return vehicle, nil
}

func (s *VehicleService) Get(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	return s.vehicles.GetByID(ctx, id)
}

func (s *VehicleService) GetByVIN(ctx context.Context, vin string) (*domain.Vehicle, error) {
	return s.vehicles.GetByVIN(ctx, strings.TrimSpace(vin))
}

func (s *VehicleService) List(ctx context.Context, filter domain.VehicleFilter) (*domain.VehicleListResponse, error) {
	return s.vehicles.List(ctx, filter)
}

// Update replaces the descriptive fields of a vehicle
func (s *VehicleService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateVehicleRequest) (*domain.Vehicle, error) {
	if err := checkLeasePrice(req.LeasePrice); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	vehicle.Make = req.Make
	vehicle.Model = req.Model
	vehicle.Year = req.Year
	vehicle.LeasePrice = req.LeasePrice
	vehicle.UpdatedAt = s.now().UTC()

	if err := s.vehicles.Update(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// Delete removes a vehicle that was never leased
func (s *VehicleService) Delete(ctx context.Context, id uuid.UUID) error {
	vehicle, err := s.vehicles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if vehicle.Status == domain.VehicleStatusLeased {
		return customError.WrapVehicleUnavailable(id.String(), "is leased and cannot be deleted")
	}
	if err := s.vehicles.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithField("vehicle_id", id).Info("Vehicle deleted")
	return nil
}

func checkLeasePrice(price decimal.Decimal) error {
	if !price.IsPositive() || !utils.IsMoney(price) {
		return customError.WrapInvalidAmount(price.String())
	}
	return nil
}
