// Package escrow implements domain.Escrow against the external custody
// service's REST API. Requests are HMAC-signed. The escrow keeps its own
// index-based bookkeeping, so every operation is idempotent and safe to
// retry with identical arguments.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielokoye/vestpool/internal/crypto"
	"github.com/danielokoye/vestpool/internal/domain"
)

// Client is the REST client for the escrow service.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
}

// New creates an escrow client. baseURL is the escrow API root; auth carries
// the HMAC credentials.
func New(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ReleaseFraction mints/releases fractional tokens to the investor.
func (c *Client) ReleaseFraction(ctx context.Context, investorAccount, tokenID string, units int64) (string, error) {
	resp, err := c.doPost(ctx, "/v1/fractions/release", releaseRequest{
		InvestorAccount: investorAccount,
		TokenID:         tokenID,
		Units:           units,
	})
	if err != nil {
		return "", fmt.Errorf("escrow: release fraction: %w", err)
	}
	return resp.Receipt, nil
}

// RecordInvestment registers the investment on the escrow ledger and returns
// the contract index the settlement path uses to address it.
func (c *Client) RecordInvestment(ctx context.Context, investorAccount, escrowAccount string, principalUnits int64) (string, int64, error) {
	resp, err := c.doPost(ctx, "/v1/investments", recordRequest{
		InvestorAccount: investorAccount,
		EscrowAccount:   escrowAccount,
		PrincipalUnits:  principalUnits,
	})
	if err != nil {
		return "", 0, fmt.Errorf("escrow: record investment: %w", err)
	}
	if resp.ContractIndex == nil {
		return "", 0, fmt.Errorf("escrow: record investment: response missing contract index: %w", domain.ErrEscrowFailure)
	}
	return resp.Receipt, *resp.ContractIndex, nil
}

// Settle pays out yield for the investment at the given contract index.
func (c *Client) Settle(ctx context.Context, investorAccount string, contractIndex int64, yieldUnits int64) (string, error) {
	resp, err := c.doPost(ctx, "/v1/settlements", settleRequest{
		InvestorAccount: investorAccount,
		ContractIndex:   contractIndex,
		YieldUnits:      yieldUnits,
	})
	if err != nil {
		return "", fmt.Errorf("escrow: settle: %w", err)
	}
	return resp.Receipt, nil
}

// doPost sends a signed JSON POST and decodes the receipt. Non-2xx responses
// map to domain.ErrEscrowFailure with the escrow's error detail attached.
func (c *Client) doPost(ctx context.Context, path string, payload any) (*receiptResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(http.MethodPost, path, string(body)) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrEscrowFailure)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = string(respBody)
		}
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, apiErr.Error, domain.ErrEscrowFailure)
	}

	var receipt receiptResponse
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &receipt, nil
}

// Compile-time interface check.
var _ domain.Escrow = (*Client)(nil)
