package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(level zapcore.Level) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func accessLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", "recon-test/1.0")
	router.ServeHTTP(w, req)
	return w
}

func TestGinMiddleware_AccessLogLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"2xx logs info", http.StatusOK, zapcore.InfoLevel},
		{"4xx logs warn", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"5xx logs error", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, recorded := newObservedRouter(zapcore.InfoLevel)
			router.GET("/payments", func(c *gin.Context) {
				c.JSON(tt.status, gin.H{})
			})

			w := serve(router, "GET", "/payments")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.level, accessLog(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_AccessLogFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	// Request ID middleware runs first, matching the order main wires them
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-789")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/payments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	serve(router, "GET", "/payments?status=UNRECONCILED&page=2")

	entry := accessLog(t, recorded)
	fields := make(map[string]zapcore.Field, len(entry.Context))
	for _, f := range entry.Context {
		fields[f.Key] = f
	}

	for _, key := range []string{"status", "latency", "client_ip", "user_agent", "body_size", "method", "path", "request_id"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "req-789", fields["request_id"].String)
	assert.Contains(t, fields["query"].String, "status=UNRECONCILED")
	assert.Equal(t, "recon-test/1.0", fields["user_agent"].String)
}

func TestGinMiddleware_StoresRequestLogger(t *testing.T) {
	router, _ := newObservedRouter(zapcore.InfoLevel)

	var handlerLogger *zap.Logger
	router.GET("/payments", func(c *gin.Context) {
		handlerLogger = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{})
	})

	serve(router, "GET", "/payments")

	assert.NotNil(t, handlerLogger)
}

func TestGetGinLogger_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var handlerLogger *zap.Logger
	router := gin.New()
	router.GET("/payments", func(c *gin.Context) {
		handlerLogger = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{})
	})

	serve(router, "GET", "/payments")

	require.NotNil(t, handlerLogger)
	assert.NotPanics(t, func() { handlerLogger.Info("noop") })
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) {
		panic("allocation ledger corrupted")
	})

	var w *httptest.ResponseRecorder
	assert.NotPanics(t, func() {
		w = serve(router, "GET", "/boom")
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
}
