// Package service provides supporting business logic for the ingestion API.
package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims are the JWT claims for the admin/termination surface
// (SPEC_FULL §B "JWT-adjacent internal auth"). There is no tenant or user
// model in this service, so the only claim beyond the registered set is
// the identity of whoever requested the token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// AdminAuthService signs and verifies the bearer tokens that gate the
// admin/termination HTTP surface (spec §4.9, SPEC_FULL §C). Tokens are
// minted out of band by an operator, not issued through a login endpoint --
// this service has no user/credential store to authenticate against.
type AdminAuthService struct {
	jwtSecret  []byte
	jwtExpiryH int
}

// NewAdminAuthService creates a new AdminAuthService.
// jwtSecret is the HMAC-SHA256 signing key; expiryHours is the token
// lifetime.
func NewAdminAuthService(jwtSecret string, expiryHours int) *AdminAuthService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &AdminAuthService{
		jwtSecret:  []byte(jwtSecret),
		jwtExpiryH: expiryHours,
	}
}

// SignToken mints a token for subject, valid for the configured expiry.
func (s *AdminAuthService) SignToken(subject string) (string, error) {
	now := time.Now().UTC()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.jwtExpiryH) * time.Hour)),
			Issuer:    "docingest-admin",
		},
		Subject: subject,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign admin JWT: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a JWT string, returning its claims.
func (s *AdminAuthService) VerifyToken(tokenStr string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid admin token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("admin token missing sub")
	}

	return claims, nil
}
