// Package mirror implements domain.LedgerMirror against the ledger's REST
// mirror API. The mirror is read-only and eventually consistent: a
// transaction submitted moments ago may 404 for a few seconds before it
// appears.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

// Client is the REST client for the ledger mirror.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a mirror client. baseURL is the mirror API root, e.g.
// "https://mirror.vestpool-ledger.net".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// QueryTransaction fetches a transaction by its canonical id. It returns
// domain.ErrTransactionNotFound for a 404 or an empty result set; any other
// failure is transient and safe to retry.
func (c *Client) QueryTransaction(ctx context.Context, txID string) (*domain.LedgerTransaction, error) {
	path := fmt.Sprintf("/api/v1/transactions/%s", url.PathEscape(txID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("mirror: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror: query transaction %s: %w", txID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("mirror: transaction %s: %w", txID, domain.ErrTransactionNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mirror: query transaction %s: status %d: %s", txID, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mirror: read body: %w", err)
	}

	var payload transactionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mirror: decode transaction %s: %w", txID, err)
	}
	if len(payload.Transactions) == 0 {
		return nil, fmt.Errorf("mirror: transaction %s: %w", txID, domain.ErrTransactionNotFound)
	}

	return payload.Transactions[0].toDomain(), nil
}

// Compile-time interface check.
var _ domain.LedgerMirror = (*Client)(nil)
