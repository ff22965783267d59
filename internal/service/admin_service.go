package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/repository"
)

type AdminService struct {
	admins     repository.AdminRepository
	bcryptCost int
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewAdminService(admins repository.AdminRepository, bcryptCost int, log logrus.FieldLogger) *AdminService {
	return &AdminService{
		admins:     admins,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// CreateAdmin stores a new admin account. The seed command uses it for the first admin.
func (s *AdminService) CreateAdmin(ctx context.Context, req *domain.CreateAdminRequest) (*domain.Admin, error) {
	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}

	s.log.WithField("admin_id", admin.ID).Info("Admin created")
	return admin, nil
}
