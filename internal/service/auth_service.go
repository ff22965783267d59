package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/repository"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

type AuthService struct {
	admins    repository.AdminRepository
	customers repository.CustomerRepository
	issuer    *auth.Issuer
	log       logrus.FieldLogger
}

func NewAuthService(admins repository.AdminRepository, customers repository.CustomerRepository, issuer *auth.Issuer, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		admins:    admins,
		customers: customers,
		issuer:    issuer,
		log:       log,
	}
}

// AdminLogin exchanges admin credentials for a session token
func (s *AuthService) AdminLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		return nil, customError.WrapInvalidCredentials()
	}

	token, expiresAt, err := s.issuer.Issue(admin.ID, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.WithField("admin_id", admin.ID).Info("Admin logged in")
	return &domain.LoginResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// CustomerLogin exchanges customer credentials for a session token
func (s *AuthService) CustomerLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	customer, err := s.customers.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, customError.ErrCustomerNotFound) {
		return nil, customError.WrapInvalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if customer.Status != domain.AccountStatusActive || !auth.CheckPassword(customer.PasswordHash, req.Password) {
		return nil, customError.WrapInvalidCredentials()
	}

	token, expiresAt, err := s.issuer.Issue(customer.ID, auth.RoleCustomer)
	if err != nil {
		return nil, err
	}
	s.log.WithField("customer_id", customer.ID).Info("Customer logged in")
	return &domain.LoginResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
