package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "test-issuer",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func signClaims(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGenerateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.GenerateAccessToken(GenerateTokenInput{TenantID: "t1", UserID: "u1", Username: "chef"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "chef", claims.Username)
	assert.Equal(t, "u1", claims.Subject)
	assert.Greater(t, claims.GetRemainingTTL(), 14*time.Minute)
}

func TestValidateAccessToken_AllowsMissingTenant(t *testing.T) {
	svc := newTestJWTService()
	token, _, err := svc.GenerateAccessToken(GenerateTokenInput{UserID: "u1"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.TenantID)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	registered := func(exp, nbf time.Time) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(nbf),
			IssuedAt:  jwt.NewNumericDate(now),
		}
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", signClaims(t, &Claims{RegisteredClaims: registered(now.Add(time.Hour), now), UserID: "u1", TokenType: TokenTypeAccess}, "another-secret-of-at-least-32-chars"), ErrInvalidToken},
		{"expired", signClaims(t, &Claims{RegisteredClaims: registered(now.Add(-time.Minute), now.Add(-time.Hour)), UserID: "u1", TokenType: TokenTypeAccess}, testSecret), ErrExpiredToken},
		{"not yet valid", signClaims(t, &Claims{RegisteredClaims: registered(now.Add(2*time.Hour), now.Add(time.Hour)), UserID: "u1", TokenType: TokenTypeAccess}, testSecret), ErrTokenNotYetValid},
		{"refresh token", signClaims(t, &Claims{RegisteredClaims: registered(now.Add(time.Hour), now), UserID: "u1", TokenType: "refresh"}, testSecret), ErrInvalidTokenType},
		{"no user", signClaims(t, &Claims{RegisteredClaims: registered(now.Add(time.Hour), now), TenantID: "t1", TokenType: TokenTypeAccess}, testSecret), ErrMissingUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateAccessToken_RejectsForeignIssuer(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "someone-else", AccessTokenExpiration: time.Minute})
	token, _, err := other.GenerateAccessToken(GenerateTokenInput{TenantID: "t1", UserID: "u1"})
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TenantID:         "t1",
		UserID:           "u1",
		TokenType:        TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
