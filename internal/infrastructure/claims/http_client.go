// Package claims provides adapters for the external Claims system and payer
// registry: an HTTP client for production and an in-memory stub for tests and
// local development.
package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/infrastructure/config"
)

// maxResponseSize caps responses read from the Claims service (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrClaimsUnavailable indicates the Claims service could not be reached
var ErrClaimsUnavailable = errors.New("claims: service unavailable")

// ErrClaimsRequestFailed indicates the Claims service rejected the request
var ErrClaimsRequestFailed = errors.New("claims: request failed")

// HTTPClient talks to the Claims service REST API. It implements the
// reconciliation context's claim query, status notification and payer
// registry ports.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a client from the claims service configuration
func NewHTTPClient(cfg config.ClaimsConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("claims: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// envelope is the Claims service response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetClaim returns a single claim by ID, nil if it does not exist
func (c *HTTPClient) GetClaim(ctx context.Context, claimID uuid.UUID) (*acl.ClaimRef, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/api/v1/claims/"+claimID.String(), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var claim acl.ClaimRef
	if err := decodeData(body, status, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// GetClaims returns claims by IDs; unknown IDs are absent from the result
func (c *HTTPClient) GetClaims(ctx context.Context, claimIDs []uuid.UUID) ([]acl.ClaimRef, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(claimIDs))
	for _, id := range claimIDs {
		ids = append(ids, id.String())
	}
	payload := map[string]any{"claim_ids": ids}
	body, status, err := c.doRequest(ctx, http.MethodPost, "/api/v1/claims/batch-get", payload)
	if err != nil {
		return nil, err
	}
	var claims []acl.ClaimRef
	if err := decodeData(body, status, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// FindClaims returns claims matching the query
func (c *HTTPClient) FindClaims(ctx context.Context, query acl.ClaimQuery) ([]acl.ClaimRef, error) {
	values := url.Values{}
	if query.PayerID != nil {
		values.Set("payer_id", query.PayerID.String())
	}
	if query.ProgramID != nil {
		values.Set("program_id", query.ProgramID.String())
	}
	if query.OutstandingOnly {
		values.Set("outstanding_only", "true")
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	for _, id := range query.ClaimIDs {
		values.Add("claim_id", id.String())
	}

	path := "/api/v1/claims"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	body, status, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var claims []acl.ClaimRef
	if err := decodeData(body, status, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// FindClaimsByNumbers resolves claim numbers to claims; unknown numbers are
// absent from the result
func (c *HTTPClient) FindClaimsByNumbers(ctx context.Context, claimNumbers []string) ([]acl.ClaimRef, error) {
	if len(claimNumbers) == 0 {
		return nil, nil
	}
	payload := map[string]any{"claim_numbers": claimNumbers}
	body, status, err := c.doRequest(ctx, http.MethodPost, "/api/v1/claims/lookup", payload)
	if err != nil {
		return nil, err
	}
	var claims []acl.ClaimRef
	if err := decodeData(body, status, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// NotifyClaimPaid reports a new payment status for a claim
func (c *HTTPClient) NotifyClaimPaid(ctx context.Context, claimID uuid.UUID, status acl.ClaimPaymentStatus) error {
	payload := map[string]any{"status": string(status)}
	body, code, err := c.doRequest(ctx, http.MethodPost, "/api/v1/claims/"+claimID.String()+"/payment-status", payload)
	if err != nil {
		return err
	}
	return checkStatus(body, code)
}

// RevertClaimPayment asks the Claims system to roll back the status change
// produced by the given payment
func (c *HTTPClient) RevertClaimPayment(ctx context.Context, claimID, paymentID uuid.UUID) error {
	path := "/api/v1/claims/" + claimID.String() + "/payments/" + paymentID.String()
	body, code, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return checkStatus(body, code)
}

// GetPayer returns a payer by ID, nil if it does not exist
func (c *HTTPClient) GetPayer(ctx context.Context, payerID uuid.UUID) (*acl.PayerRef, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/api/v1/payers/"+payerID.String(), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var payer acl.PayerRef
	if err := decodeData(body, status, &payer); err != nil {
		return nil, err
	}
	return &payer, nil
}

// FindPayerByCode resolves a payer identifier found in a remittance file,
// nil if no payer carries the code
func (c *HTTPClient) FindPayerByCode(ctx context.Context, code string) (*acl.PayerRef, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/api/v1/payers/by-code/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var payer acl.PayerRef
	if err := decodeData(body, status, &payer); err != nil {
		return nil, err
	}
	return &payer, nil
}

// doRequest performs an HTTP request against the Claims service and returns
// the raw body with the status code. Transport errors are wrapped in
// ErrClaimsUnavailable; HTTP-level failures are left to the caller so 404
// can mean "absent" where that is the contract.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("claims: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("claims: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrClaimsUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("claims: failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// decodeData unwraps the response envelope into target
func decodeData(body []byte, status int, target any) error {
	if err := checkStatus(body, status); err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("claims: invalid response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("claims: invalid response payload: %w", err)
	}
	return nil
}

// checkStatus converts HTTP-level failures into errors, surfacing the
// service's error message when the envelope carries one
func checkStatus(body []byte, status int) error {
	if status < 400 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return fmt.Errorf("%w: HTTP %d: %s (%s)", ErrClaimsRequestFailed, status, env.Error.Message, env.Error.Code)
	}
	return fmt.Errorf("%w: HTTP %d", ErrClaimsRequestFailed, status)
}

// Interface assertions
var (
	_ acl.ClaimQueryService   = (*HTTPClient)(nil)
	_ acl.ClaimStatusNotifier = (*HTTPClient)(nil)
	_ acl.PayerRegistry       = (*HTTPClient)(nil)
)
