package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alure/alure-api/internal/config"
	"github.com/alure/alure-api/internal/service"
	"github.com/alure/alure-api/internal/storage/memstorage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func authRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := service.NewAuthService(
		memstorage.NewUserRepository("admin", "hunter2"),
		&config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
		zap.NewNop(),
	)
	token, err := auth.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	protected := router.Group("/", AuthRequired(auth, zap.NewNop()), AdminRequired())
	protected.GET("/secret", func(c *gin.Context) {
		claims, ok := GetClaims(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})
	return router, token
}

func TestAuthRequiredAcceptsBearerToken(t *testing.T) {
	router, token := authRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequiredRejectsMissingOrMalformedHeader(t *testing.T) {
	router, token := authRouter(t)

	for _, header := range []string{
		"",
		"Bearer",
		"Basic " + token,
		"Bearer not-a-token",
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secret", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
