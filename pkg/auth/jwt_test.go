package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	validator := NewValidator("test-secret", "f-system")

	token := signToken(t, "test-secret", jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "f-system",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	userID, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestValidateTokenFailures(t *testing.T) {
	validator := NewValidator("test-secret", "f-system")

	tests := []struct {
		name  string
		token string
	}{
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "f-system",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name: "expired",
			token: signToken(t, "test-secret", jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "f-system",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
		},
		{
			name: "wrong issuer",
			token: signToken(t, "test-secret", jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name: "missing subject",
			token: signToken(t, "test-secret", jwt.RegisteredClaims{
				Issuer:    "f-system",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateToken(tt.token)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
		})
	}
}

func TestValidateTokenWithoutIssuerCheck(t *testing.T) {
	validator := NewValidator("test-secret", "")

	token := signToken(t, "test-secret", jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "anyone",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	userID, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}
