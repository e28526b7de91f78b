package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stockpost/internal/core/tenant"
)

// TokenConfig holds JWT configuration.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims carried by access tokens. The subject is the acting user.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tid"`
	Permissions []string `json:"perms,omitempty"`
	IsAdmin     bool     `json:"adm,omitempty"`
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService creates a token service. An empty issuer defaults to "stockpost".
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "stockpost"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for the tenant scope.
func (s *TokenService) Issue(tc tenant.Context) (string, time.Time, error) {
	if err := tc.Validate(); err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   tc.ActorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:    tc.TenantID,
		Permissions: tc.Permissions,
		IsAdmin:     tc.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry and returns the tenant scope of the token.
func (s *TokenService) Verify(token string) (tenant.Context, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("parse token: %w", err)
	}

	tc := tenant.Context{
		TenantID:    strings.TrimSpace(claims.TenantID),
		ActorID:     claims.Subject,
		Permissions: claims.Permissions,
		IsAdmin:     claims.IsAdmin,
	}
	if err := tc.Validate(); err != nil {
		return tenant.Context{}, err
	}
	return tc, nil
}
