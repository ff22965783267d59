// Package auth issues and verifies the JWTs of admins, customers and payment links.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/response"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	paymentLinkAudience = "payment-link"
	issuerName          = "lease-billing"
)

// Claims are the JWT claims of session and payment link tokens
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request
type Principal struct {
	ID   uuid.UUID
	Role string
}

type Issuer struct {
	secret  []byte
	ttl     time.Duration
	linkTTL time.Duration
	now     func() time.Time
}

func NewIssuer(secret string, ttl, linkTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, linkTTL: linkTTL, now: time.Now}
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Issue creates a session token for subject
func (i *Issuer) Issue(subject uuid.UUID, role string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	token, err := i.sign(Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	return token, expiresAt, err
}

// IssuePaymentLink creates a token that lets anyone holding it pay installments of loanID
func (i *Issuer) IssuePaymentLink(loanID uuid.UUID) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.linkTTL)

	token, err := i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   loanID.String(),
			Audience:  jwt.ClaimStrings{paymentLinkAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	return token, expiresAt, err
}

func (i *Issuer) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, customError.NewBusinessError(customError.ErrCodeInvalidCredentials, "Invalid or expired token", customError.ErrInvalidCredentials)
	}
	return claims, nil
}

// Parse verifies a session token
func (i *Issuer) Parse(raw string) (*Principal, error) {
	claims, err := i.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin && claims.Role != RoleCustomer {
		return nil, customError.WrapInvalidCredentials()
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, customError.WrapInvalidCredentials()
	}
	return &Principal{ID: id, Role: claims.Role}, nil
}

// ParsePaymentLink verifies a payment link token and returns its loan
func (i *Issuer) ParsePaymentLink(raw string) (uuid.UUID, error) {
	claims, err := i.parse(raw, jwt.WithAudience(paymentLinkAudience))
	if err != nil {
		return uuid.Nil, err
	}
	loanID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, customError.WrapInvalidCredentials()
	}
	return loanID, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal the middleware stored in ctx
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Middleware rejects requests without a valid bearer token of one of roles
func Middleware(issuer *Issuer, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				response.Unauthorized(w, "Missing bearer token")
				return
			}

			principal, err := issuer.Parse(raw)
			if err != nil {
				response.Fail(w, err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, principal.Role) {
				response.Fail(w, customError.WrapForbidden("This endpoint requires role "+strings.Join(roles, " or ")))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// HashPassword hashes password with bcrypt at cost
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TemporaryPassword returns a random password handed out once at onboarding
func TemporaryPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
