package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"school-admin/internal/ports/auth"
)

var (
	ErrTokenEmpty   = errors.New("token is empty")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims es la estructura de claims que emite el proveedor de identidad.
type Claims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email,omitempty"`
	InstitutionID string `json:"iid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier implementa auth.AuthVerifier validando JWT firmados con HMAC.
// Solo extrae la identidad opaca del llamador; la emisión del token es
// del proveedor de identidad externo.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return auth.Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	return auth.Claims{
		UserID:        strings.TrimSpace(claims.UserID),
		Email:         claims.Email,
		InstitutionID: claims.InstitutionID,
	}, nil
}
