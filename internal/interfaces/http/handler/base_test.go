package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performError(t *testing.T, err error) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	h := &BaseHandler{}
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		c.Set(RequestIDKey, "req-test")
		h.HandleError(c, err)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandleError_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		domainCode     string
		expectedStatus int
		expectedCode   string
	}{
		{"not found", "NOT_FOUND", http.StatusNotFound, dto.ErrCodeNotFound},
		{"validation", "VALIDATION", http.StatusBadRequest, dto.ErrCodeValidation},
		{"duplicate import", "DUPLICATE_IMPORT", http.StatusConflict, dto.ErrCodeDuplicateImport},
		{"concurrency conflict", "CONCURRENCY_CONFLICT", http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"over allocation", "OVER_ALLOCATION", http.StatusUnprocessableEntity, dto.ErrCodeOverAllocation},
		{"invalid claim payer", "INVALID_CLAIM_PAYER", http.StatusUnprocessableEntity, dto.ErrCodeInvalidClaimPayer},
		{"payment has allocations", "PAYMENT_HAS_ALLOCATIONS", http.StatusUnprocessableEntity, dto.ErrCodePaymentHasAllocations},
		{"invalid state", "INVALID_STATE", http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"remittance parse", "REMITTANCE_PARSE", http.StatusUnprocessableEntity, dto.ErrCodeRemittanceParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := performError(t, shared.NewDomainError(tt.domainCode, "boom"))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Equal(t, "boom", resp.Error.Message)
			assert.Equal(t, "req-test", resp.Error.RequestID)
		})
	}
}

func TestHandleError_UnknownError(t *testing.T) {
	w, resp := performError(t, errors.New("database exploded"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	// Internal details must not leak to the client
	assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
}

func TestHandleError_NilError(t *testing.T) {
	h := &BaseHandler{}
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		h.HandleError(c, nil)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSuccessResponses(t *testing.T) {
	h := &BaseHandler{}
	router := gin.New()
	router.GET("/ok", func(c *gin.Context) {
		h.Success(c, gin.H{"value": 1})
	})
	router.POST("/created", func(c *gin.Context) {
		h.Created(c, gin.H{"id": "abc"})
	})
	router.DELETE("/gone", func(c *gin.Context) {
		h.NoContent(c)
	})
	router.GET("/list", func(c *gin.Context) {
		h.SuccessWithMeta(c, []int{1, 2}, 42, 1, 20)
	})

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("created", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/created", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("no content", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("DELETE", "/gone", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("paginated meta", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/list", nil))

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(42), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})
}
