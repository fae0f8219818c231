package remitfile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParser_Parse(t *testing.T) {
	parser := NewCSVParser()

	t.Run("parses claim lines with metadata and adjustments", func(t *testing.T) {
		content := []byte(
			"payer_code,payer_name,check_number,remittance_number,remittance_date,claim_number,patient_name,service_date,billed_amount,paid_amount,adjustment_codes\n" +
				"BCBS-TX,Blue Cross TX,CHK-9001,RA-77001,2026-08-01,CLM-1001,Jane Roe,2026-06-15,300.00,250.00,CO-45:40.00;PR-1:10.00\n" +
				"BCBS-TX,Blue Cross TX,CHK-9001,RA-77001,2026-08-01,CLM-1002,John Doe,2026-06-20,150.00,150.00,\n")

		parsed, err := parser.Parse(context.Background(), content)

		require.NoError(t, err)
		assert.Equal(t, "BCBS-TX", parsed.PayerCode)
		assert.Equal(t, "Blue Cross TX", parsed.PayerName)
		assert.Equal(t, "CHK-9001", parsed.CheckNumber)
		assert.Equal(t, "RA-77001", parsed.RemittanceNumber)
		assert.Equal(t, 2026, parsed.RemittanceDate.Year())
		require.Len(t, parsed.Lines, 2)
		assert.Empty(t, parsed.LineErrors)

		first := parsed.Lines[0]
		assert.Equal(t, 1, first.LineNumber)
		assert.Equal(t, "CLM-1001", first.ClaimNumber)
		assert.Equal(t, "Jane Roe", first.PatientName)
		require.NotNil(t, first.ServiceDate)
		assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), *first.ServiceDate)
		assert.True(t, first.BilledAmount.Equal(decimal.NewFromFloat(300.00)))
		assert.True(t, first.PaidAmount.Equal(decimal.NewFromFloat(250.00)))
		require.Len(t, first.AdjustmentCodes, 2)
		assert.True(t, first.AdjustmentCodes["CO-45"].Equal(decimal.NewFromFloat(40.00)))

		second := parsed.Lines[1]
		assert.Equal(t, 2, second.LineNumber)
		assert.Nil(t, second.AdjustmentCodes)
	})

	t.Run("reports malformed lines without failing the parse", func(t *testing.T) {
		content := []byte(
			"claim_number,billed_amount,paid_amount\n" +
				"CLM-1,100.00,80.00\n" +
				"CLM-2,not-a-number,50.00\n" +
				",100.00,50.00\n" +
				"CLM-4,100.00,-5.00\n" +
				"CLM-5,200.00,200.00\n")

		parsed, err := parser.Parse(context.Background(), content)

		require.NoError(t, err)
		require.Len(t, parsed.Lines, 2)
		assert.Equal(t, "CLM-1", parsed.Lines[0].ClaimNumber)
		assert.Equal(t, "CLM-5", parsed.Lines[1].ClaimNumber)
		require.Len(t, parsed.LineErrors, 3)
		assert.Contains(t, parsed.LineErrors[0].Message, "billed_amount")
		assert.Contains(t, parsed.LineErrors[1].Message, "claim_number")
		assert.Contains(t, parsed.LineErrors[2].Message, "negative")
	})

	t.Run("fails when required columns are missing", func(t *testing.T) {
		content := []byte("claim_number,amount\nCLM-1,100.00\n")

		_, err := parser.Parse(context.Background(), content)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required columns")
	})

	t.Run("fails on empty file", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), []byte(""))
		require.Error(t, err)
	})

	t.Run("invalid service date becomes a line error", func(t *testing.T) {
		content := []byte(
			"claim_number,service_date,billed_amount,paid_amount\n" +
				"CLM-1,15/06/2026,100.00,80.00\n" +
				"CLM-2,2026-06-15,100.00,80.00\n")

		parsed, err := parser.Parse(context.Background(), content)

		require.NoError(t, err)
		require.Len(t, parsed.Lines, 1)
		require.Len(t, parsed.LineErrors, 1)
		assert.Contains(t, parsed.LineErrors[0].Message, "service_date")
	})
}

func TestParseAdjustmentCodes(t *testing.T) {
	t.Run("parses multiple pairs", func(t *testing.T) {
		codes, err := parseAdjustmentCodes("CO-45:40.00; PR-1:10.50")
		require.NoError(t, err)
		require.Len(t, codes, 2)
		assert.True(t, codes["PR-1"].Equal(decimal.NewFromFloat(10.50)))
	})

	t.Run("rejects entry without amount", func(t *testing.T) {
		_, err := parseAdjustmentCodes("CO-45")
		require.Error(t, err)
	})

	t.Run("rejects non-numeric amount", func(t *testing.T) {
		_, err := parseAdjustmentCodes("CO-45:abc")
		require.Error(t, err)
	})
}
