// Package auth validates JWT session tokens and exposes the caller's
// identity to handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cargodesk/cargodesk/pkg/observability/logger"
)

// Claims represents the extracted claims from a validated token.
type Claims struct {
	// Subject is the user id
	Subject string
	// Role is the user's role (ADMIN, DISPATCHER, DRIVER)
	Role string
	// Issuer is the token issuer
	Issuer string
	// Audience lists the intended recipients
	Audience []string
	// ExpiresAt is the expiration time
	ExpiresAt time.Time
	// IssuedAt is the issue time
	IssuedAt time.Time
}

// JWTValidator validates JWT tokens and extracts claims.
type JWTValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// HS256Validator validates tokens signed with a shared HMAC secret.
// It verifies the signature, expiration, and, when configured, the
// issuer and audience.
type HS256Validator struct {
	secret   []byte
	issuer   string
	audience string
	logger   logger.Logger
}

// NewHS256Validator creates a shared-secret JWT validator.
func NewHS256Validator(secret, issuer, audience string, log logger.Logger) (*HS256Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &HS256Validator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		logger:   log,
	}, nil
}

// Validate verifies the token and extracts its claims.
func (v *HS256Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, err := extractClaims(token)
	if err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", v.issuer, claims.Issuer)
	}
	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return nil, fmt.Errorf("invalid audience: token not intended for %s", v.audience)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	v.logger.Debug("token validated", "subject", claims.Subject, "role", claims.Role)
	return claims, nil
}

func extractClaims(token *jwt.Token) (*Claims, error) {
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to parse claims")
	}

	claims := &Claims{}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if iss, err := mapClaims.GetIssuer(); err == nil {
		claims.Issuer = iss
	}
	if aud, err := mapClaims.GetAudience(); err == nil {
		claims.Audience = aud
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = strings.ToUpper(strings.TrimSpace(role))
	}

	return claims, nil
}

func containsAudience(audiences []string, expected string) bool {
	for _, aud := range audiences {
		if aud == expected {
			return true
		}
	}
	return false
}
