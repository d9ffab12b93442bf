// Package dexapi queries a DEX aggregator's price API for tokens that have
// graduated from bonding-curve pricing to open-market trading.
package dexapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// Client fetches market prices from the aggregator's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a DEX aggregator price client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Price returns the aggregator's SOL-denominated price for a mint. A mint
// unknown to the aggregator (no pools indexed yet) returns
// domain.ErrNoLiquidity, which is an expected state shortly after graduation
// and not a transport failure.
func (c *Client) Price(ctx context.Context, mint string) (float64, error) {
	u := fmt.Sprintf("%s?ids=%s", c.baseURL, url.QueryEscape(mint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("dexapi: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("dexapi: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("dexapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Data map[string]*struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, fmt.Errorf("dexapi: decode response: %w", err)
	}

	entry, ok := envelope.Data[mint]
	if !ok || entry == nil || entry.Price == "" {
		return 0, fmt.Errorf("dexapi: %s: %w", mint, domain.ErrNoLiquidity)
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("dexapi: parse price for %s: %w", mint, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("dexapi: %s: %w", mint, domain.ErrNoLiquidity)
	}
	return price, nil
}
