package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"signet/internal/config"
	"signet/internal/domain"
)

func newTestAuth(t *testing.T) AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	inactiveHash, err := bcrypt.GenerateFromPassword([]byte("other"), bcrypt.MinCost)
	require.NoError(t, err)

	clients := map[string]*domain.APIClient{
		"client-a": {ID: "client-a", Organization: "org-a", SecretHash: string(hash), Role: domain.RoleIssuer, IsActive: true},
		"client-x": {ID: "client-x", Organization: "org-x", SecretHash: string(inactiveHash), Role: domain.RoleIssuer, IsActive: false},
	}
	return NewAuthService(clients, config.JWTConfig{
		Secret:             "unit-test-secret",
		Issuer:             "signet",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func TestToken(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := svc.Token(ctx, TokenInput{ClientID: "client-a", ClientSecret: "s3cret"})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.True(t, pair.ExpiresAt.After(time.Now()))

		claims, err := svc.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "client-a", claims.ClientID)
		assert.Equal(t, "org-a", claims.Organization)
		assert.Equal(t, domain.RoleIssuer, claims.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.Token(ctx, TokenInput{ClientID: "client-a", ClientSecret: "wrong"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.Token(ctx, TokenInput{ClientID: "ghost", ClientSecret: "s3cret"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("inactive client", func(t *testing.T) {
		_, err := svc.Token(ctx, TokenInput{ClientID: "client-x", ClientSecret: "other"})
		require.ErrorIs(t, err, domain.ErrClientInactive)
	})
}

func TestRefreshToken(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	pair, err := svc.Token(ctx, TokenInput{ClientID: "client-a", ClientSecret: "s3cret"})
	require.NoError(t, err)

	t.Run("refresh yields a new pair", func(t *testing.T) {
		refreshed, err := svc.RefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(refreshed.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "client-a", claims.ClientID)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, "not.a.token")
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	pair, err := svc.Token(ctx, TokenInput{ClientID: "client-a", ClientSecret: "s3cret"})
	require.NoError(t, err)

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		_, err := svc.ValidateToken(pair.RefreshToken)
		require.Error(t, err)
	})

	t.Run("token signed with another secret rejected", func(t *testing.T) {
		foreign := NewAuthService(nil, config.JWTConfig{
			Secret:            "different-secret",
			Issuer:            "signet",
			AccessTokenExpiry: time.Minute,
		})
		_, err = foreign.ValidateToken(pair.AccessToken)
		require.Error(t, err)
	})
}
