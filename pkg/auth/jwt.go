// Package auth validates the bearer tokens that identify tenants.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

// Validator verifies HS256 bearer tokens. The subject claim is the
// tenant id.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a token validator
func NewValidator(secret, issuer string) *Validator {
	return &Validator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// ValidateToken parses and verifies a token, returning the tenant id.
func (v *Validator) ValidateToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", pkgerrors.NewUnauthorizedError("invalid token").WithCause(err)
	}
	if !token.Valid {
		return "", pkgerrors.NewUnauthorizedError("invalid token")
	}

	if v.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != v.issuer {
			return "", pkgerrors.NewUnauthorizedError("invalid token issuer")
		}
	}

	if claims.Subject == "" {
		return "", pkgerrors.NewUnauthorizedError("token has no subject")
	}
	return claims.Subject, nil
}
