package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/session-auth-api/pkg/config"
	"github.com/noah-isme/session-auth-api/pkg/middleware/requestid"
)

func TestNewHonoursLevel(t *testing.T) {
	cfg := &config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "json"}}
	l, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path, err := dailyFile(dir, time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app-2024-05-01.log"), path)
	assert.DirExists(t, dir)
}

func TestFromContextFallback(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	scoped := zap.NewExample()
	assert.Same(t, scoped, FromContext(WithContext(context.Background(), scoped), fallback))
}

func TestGinMiddlewareScopesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) {
		FromContext(c.Request.Context(), nil).Info("inside handler", zap.String("op", "test.ping"))
		c.Status(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)

	entries := logs.All()
	require.Len(t, entries, 2)

	inner := entries[0].ContextMap()
	assert.Equal(t, "inside handler", entries[0].Message)
	assert.Equal(t, "abc-123", inner["request_id"])
	assert.Equal(t, "test.ping", inner["op"])

	access := entries[1].ContextMap()
	assert.Equal(t, "http_request", entries[1].Message)
	assert.Equal(t, "abc-123", access["request_id"])
	assert.Equal(t, int64(http.StatusTeapot), access["status"])
	assert.Equal(t, "/ping", access["path"])
}
