package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/jwt/jwttest"
)

const testSecret = "test_secret_key_1234567890"

func TestParser_ParseToken(t *testing.T) {
	parser := jwt.NewParser(testSecret)

	tests := []struct {
		name     string
		userUID  string
		username string
	}{
		{name: "regular account", userUID: "uid-1", username: "jane"},
		{name: "phone as username", userUID: "uid-2", username: "254712345678"},
		{name: "email as username", userUID: "uid-3", username: "user@domain.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := jwttest.Token(t, testSecret, tt.userUID, tt.username, 15*time.Minute)

			claims, err := parser.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userUID, claims.UserUID)
			assert.Equal(t, tt.username, claims.Username)
			assert.Equal(t, tt.userUID, claims.Subject)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestParser_ParseToken_InvalidTokens(t *testing.T) {
	parser := jwt.NewParser(testSecret)

	valid := jwttest.Token(t, testSecret, "uid", "user", 15*time.Minute)
	expired := jwttest.Token(t, testSecret, "uid", "user", -time.Hour)
	foreign := jwttest.Token(t, "other_secret", "uid", "user", time.Hour)

	noneAlg, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, jwt.CustomClaims{UserUID: "uid"}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: foreign},
		{name: "tampered token", token: valid + "tampered"},
		{name: "alg none", token: noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := parser.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
