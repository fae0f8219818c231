package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/remitflow/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilePayload struct {
	PaymentAmount string `json:"payment_amount" binding:"required"`
	PayerID       string `json:"payer_id" binding:"required,uuid"`
	Status        string `json:"status" binding:"omitempty,oneof=OPEN RECONCILED"`
}

func TestFormatValidationErrors(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	err := v.Struct(reconcilePayload{PayerID: "not-a-uuid", Status: "OPEN"})
	require.Error(t, err)

	resp := FormatValidationErrors(err, "req-1")

	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)

	// Tag name func maps struct fields to their JSON names
	fields := []string{resp.Error.Details[0].Field, resp.Error.Details[1].Field}
	assert.Contains(t, fields, "payment_amount")
	assert.Contains(t, fields, "payer_id")
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-2")

	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

func TestGetValidationMessage(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	err := v.Struct(reconcilePayload{PaymentAmount: "100.00", PayerID: "550e8400-e29b-41d4-a716-446655440000", Status: "BOGUS"})
	require.Error(t, err)

	resp := FormatValidationErrors(err, "")
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "Must be one of: OPEN RECONCILED", resp.Error.Details[0].Message)
}
