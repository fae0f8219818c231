package claims

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(config.ClaimsConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client, server
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": status < 400,
		"data":    data,
	})
}

func sampleClaim(payerID uuid.UUID) acl.ClaimRef {
	return acl.ClaimRef{
		ClaimID:           uuid.New(),
		ClaimNumber:       "CLM-1001",
		PayerID:           payerID,
		PayerName:         "Acme Health Plan",
		ProgramID:         uuid.New(),
		ProgramName:       "Outpatient",
		PatientName:       "Jane Roe",
		ServiceDate:       time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		BilledAmount:      decimal.NewFromFloat(300.00),
		PaidAmount:        decimal.Zero,
		OutstandingAmount: decimal.NewFromFloat(300.00),
		Status:            acl.ClaimStatusSubmitted,
	}
}

func TestHTTPClient_GetClaim(t *testing.T) {
	t.Run("returns claim on success", func(t *testing.T) {
		claim := sampleClaim(uuid.New())
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v1/claims/"+claim.ClaimID.String(), r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, claim)
		}))

		got, err := client.GetClaim(context.Background(), claim.ClaimID)

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, claim.ClaimID, got.ClaimID)
		assert.Equal(t, "CLM-1001", got.ClaimNumber)
		assert.True(t, got.OutstandingAmount.Equal(decimal.NewFromFloat(300.00)))
	})

	t.Run("returns nil on 404", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusNotFound, nil)
		}))

		got, err := client.GetClaim(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.GetClaim(context.Background(), uuid.New())

		require.ErrorIs(t, err, ErrClaimsRequestFailed)
	})

	t.Run("wraps transport failures", func(t *testing.T) {
		client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := client.GetClaim(context.Background(), uuid.New())

		require.ErrorIs(t, err, ErrClaimsUnavailable)
	})
}

func TestHTTPClient_GetClaims(t *testing.T) {
	payerID := uuid.New()
	claims := []acl.ClaimRef{sampleClaim(payerID), sampleClaim(payerID)}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/claims/batch-get", r.URL.Path)

		var payload struct {
			ClaimIDs []string `json:"claim_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Len(t, payload.ClaimIDs, 2)

		writeEnvelope(w, http.StatusOK, claims)
	}))

	got, err := client.GetClaims(context.Background(), []uuid.UUID{claims[0].ClaimID, claims[1].ClaimID})

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHTTPClient_GetClaims_EmptyInput(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	}))

	got, err := client.GetClaims(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHTTPClient_FindClaims(t *testing.T) {
	payerID := uuid.New()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, payerID.String(), r.URL.Query().Get("payer_id"))
		assert.Equal(t, "true", r.URL.Query().Get("outstanding_only"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		writeEnvelope(w, http.StatusOK, []acl.ClaimRef{sampleClaim(payerID)})
	}))

	got, err := client.FindClaims(context.Background(), acl.ClaimQuery{
		PayerID:         &payerID,
		OutstandingOnly: true,
		Limit:           50,
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, payerID, got[0].PayerID)
}

func TestHTTPClient_FindClaimsByNumbers(t *testing.T) {
	payerID := uuid.New()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/claims/lookup", r.URL.Path)

		var payload struct {
			ClaimNumbers []string `json:"claim_numbers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"CLM-1001", "CLM-9999"}, payload.ClaimNumbers)

		// Only CLM-1001 resolves
		writeEnvelope(w, http.StatusOK, []acl.ClaimRef{sampleClaim(payerID)})
	}))

	got, err := client.FindClaimsByNumbers(context.Background(), []string{"CLM-1001", "CLM-9999"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CLM-1001", got[0].ClaimNumber)
}

func TestHTTPClient_NotifyClaimPaid(t *testing.T) {
	claimID := uuid.New()

	t.Run("posts the status", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/claims/"+claimID.String()+"/payment-status", r.URL.Path)

			var payload struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "PAID", payload.Status)

			writeEnvelope(w, http.StatusOK, nil)
		}))

		err := client.NotifyClaimPaid(context.Background(), claimID, acl.ClaimStatusPaid)
		assert.NoError(t, err)
	})

	t.Run("surfaces the service error message", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"ERR_CLAIM_CLOSED","message":"claim is closed"}}`))
		}))

		err := client.NotifyClaimPaid(context.Background(), claimID, acl.ClaimStatusPaid)

		require.ErrorIs(t, err, ErrClaimsRequestFailed)
		assert.Contains(t, err.Error(), "claim is closed")
		assert.Contains(t, err.Error(), "ERR_CLAIM_CLOSED")
	})
}

func TestHTTPClient_RevertClaimPayment(t *testing.T) {
	claimID := uuid.New()
	paymentID := uuid.New()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/claims/"+claimID.String()+"/payments/"+paymentID.String(), r.URL.Path)
		writeEnvelope(w, http.StatusOK, nil)
	}))

	err := client.RevertClaimPayment(context.Background(), claimID, paymentID)
	assert.NoError(t, err)
}

func TestHTTPClient_Payers(t *testing.T) {
	payer := acl.PayerRef{
		PayerID:   uuid.New(),
		Name:      "Acme Health Plan",
		PayerCode: "ACME-01",
		Active:    true,
	}

	t.Run("gets payer by id", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/payers/"+payer.PayerID.String(), r.URL.Path)
			writeEnvelope(w, http.StatusOK, payer)
		}))

		got, err := client.GetPayer(context.Background(), payer.PayerID)

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ACME-01", got.PayerCode)
	})

	t.Run("finds payer by code", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/payers/by-code/ACME-01", r.URL.Path)
			writeEnvelope(w, http.StatusOK, payer)
		}))

		got, err := client.FindPayerByCode(context.Background(), "ACME-01")

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, payer.PayerID, got.PayerID)
	})

	t.Run("unknown payer code resolves to nil", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusNotFound, nil)
		}))

		got, err := client.FindPayerByCode(context.Background(), "NOPE")

		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(config.ClaimsConfig{})
	require.Error(t, err)
}
