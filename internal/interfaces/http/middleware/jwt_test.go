package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbooks/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestRouter(t *testing.T, jwtService *auth.JWTService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", JWTAuthMiddleware(jwtService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetJWTUserID(c),
			"tenant_id": GetJWTTenantID(c),
		})
	})
	return engine
}

func TestJWTAuthMiddleware(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret-key-with-enough-length", time.Hour, "finbooks-test")
	router := authTestRouter(t, jwtService)

	userID := uuid.New()
	tenantID := uuid.New()
	token, err := jwtService.GenerateToken(userID, tenantID)
	require.NoError(t, err)

	t.Run("valid token passes and exposes identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), userID.String())
		assert.Contains(t, rec.Body.String(), tenantID.String())
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty bearer token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other := auth.NewJWTService("another-secret-key-with-enough-length", time.Hour, "finbooks-test")
		forged, err := other.GenerateToken(userID, tenantID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+forged)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		shortLived := auth.NewJWTService("test-secret-key-with-enough-length", -time.Minute, "finbooks-test")
		expired, err := shortLived.GenerateToken(userID, tenantID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+expired)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
