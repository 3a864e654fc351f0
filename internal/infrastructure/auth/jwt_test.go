package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService(t *testing.T) {
	service := NewJWTService("test-secret-at-least-32-characters!!", time.Hour, "finbooks-test")

	t.Run("round trip", func(t *testing.T) {
		userID := uuid.New()
		tenantID := uuid.New()

		token, err := service.GenerateToken(userID, tenantID)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, tenantID.String(), claims.TenantID)
		assert.Equal(t, "finbooks-test", claims.Issuer)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := NewJWTService("another-secret-also-32-characters!!!", time.Hour, "finbooks-test")
		token, err := other.GenerateToken(uuid.New(), uuid.New())
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired := NewJWTService("test-secret-at-least-32-characters!!", -time.Minute, "finbooks-test")
		token, err := expired.GenerateToken(uuid.New(), uuid.New())
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
