package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRegistrar struct {
	path string
}

func (s *stubRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(s.path, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

func TestNewRouter_DefaultVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.Equal(t, "v1", r.apiVersion)
}

func TestNewRouter_WithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouter_RegisterAndSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(&stubRegistrar{path: "/payments"})
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/payments", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_VersionedPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))
	r.Register(&stubRegistrar{path: "/payments"})
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v2/payments", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/payments", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RegisterRoot(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.RegisterRoot(&stubRegistrar{path: "/health"})
	r.Register(&stubRegistrar{path: "/payments"})
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/payments", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Chaining(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine).
		Register(&stubRegistrar{path: "/a"}).
		Register(&stubRegistrar{path: "/b"})
	r.Setup()

	for _, path := range []string{"/api/v1/a", "/api/v1/b"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
