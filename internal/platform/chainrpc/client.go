// Package chainrpc is a minimal JSON-RPC client for reading bonding-curve
// account state from the chain. It retries a bounded number of times against
// a primary endpoint with a fixed delay, then makes a single attempt against
// an optional fallback endpoint.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ClientConfig holds endpoints and retry parameters.
type ClientConfig struct {
	PrimaryURL  string
	FallbackURL string
	Retries     int           // attempts against the primary endpoint
	RetryDelay  time.Duration // fixed delay between attempts
	Timeout     time.Duration
}

// Client performs getAccountInfo reads over HTTP JSON-RPC.
type Client struct {
	primaryURL  string
	fallbackURL string
	retries     int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a chain RPC client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		primaryURL:  cfg.PrimaryURL,
		fallbackURL: cfg.FallbackURL,
		retries:     retries,
		retryDelay:  delay,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With(slog.String("component", "chainrpc")),
	}
}

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetAccountData fetches the raw data bytes of an on-chain account. It
// exhausts the primary retry budget before the single fallback attempt; the
// returned error wraps the last failure from each endpoint tried.
func (c *Client) GetAccountData(ctx context.Context, account string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		data, err := c.fetchAccountData(ctx, c.primaryURL, account)
		if err == nil {
			return data, nil
		}
		lastErr = err
		c.logger.Warn("primary rpc fetch failed",
			slog.String("account", account),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	if c.fallbackURL != "" {
		data, err := c.fetchAccountData(ctx, c.fallbackURL, account)
		if err == nil {
			c.logger.Info("fallback rpc served account read",
				slog.String("account", account),
			)
			return data, nil
		}
		c.logger.Warn("fallback rpc fetch failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		lastErr = errors.Join(lastErr, err)
	}

	return nil, fmt.Errorf("chainrpc: account %s: all endpoints failed: %w", account, lastErr)
}

func (c *Client) fetchAccountData(ctx context.Context, url, account string) ([]byte, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []any{
			account,
			map[string]string{"encoding": "base64", "commitment": "processed"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chainrpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("chainrpc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chainrpc: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chainrpc: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("chainrpc: decode response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("chainrpc: rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	var result struct {
		Value *struct {
			Data []string `json:"data"`
		} `json:"value"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("chainrpc: decode result: %w", err)
	}
	if result.Value == nil || len(result.Value.Data) == 0 {
		return nil, fmt.Errorf("chainrpc: account %s not found", account)
	}

	data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("chainrpc: decode account data: %w", err)
	}
	return data, nil
}

// FetchCurve reads and decodes the bonding-curve account at the given address.
func (c *Client) FetchCurve(ctx context.Context, account string) (CurveState, error) {
	data, err := c.GetAccountData(ctx, account)
	if err != nil {
		return CurveState{}, err
	}
	return DecodeCurveState(data)
}
