package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newReportRouter() *gin.Engine {
	router := gin.New()
	h := NewReportHandler(nil)
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestReportRoutes_Registered(t *testing.T) {
	router := newReportRouter()

	registered := make(map[string]bool)
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	assert.True(t, registered["GET /api/v1/reports/aging"])
}

func TestAging_InvalidAsOfDate(t *testing.T) {
	router := newReportRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/reports/aging?as_of_date=someday", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAging_InvalidPayerID(t *testing.T) {
	router := newReportRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/reports/aging?payer_id=abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAging_InvalidProgramID(t *testing.T) {
	router := newReportRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/reports/aging?program_id=abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
