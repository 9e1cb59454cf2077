// Package jwttest выпускает токены шлюза для тестов.
package jwttest

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/lib/jwt"
)

// Token подписывает HS256-токен аккаунта так же, как это делает шлюз.
// Отрицательный ttl даёт уже истёкший токен.
func Token(t testing.TB, secret, userUID, username string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.CustomClaims{
		UserUID:  userUID,
		Username: username,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userUID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
