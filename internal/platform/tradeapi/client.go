// Package tradeapi is the client for the third-party trade execution API.
// Transaction construction, signing, and chain submission all happen on the
// API side; the bot only states intent (buy/sell, mint, amount) and reads
// back the outcome.
package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// ClientConfig holds execution API parameters.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	SlippageBps int
	PriorityFee float64
	Timeout     time.Duration
	// SubmitRetries bounds transport-level retries per trade submission.
	// An answered-but-rejected trade is never retried here; that decision
	// belongs to the caller.
	SubmitRetries int
}

// Client submits buy and sell orders over HTTP.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an execution API client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.SubmitRetries <= 0 {
		cfg.SubmitRetries = 2
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "tradeapi")),
	}
}

// tradeRequest is the API's order envelope. Amounts are denominated in SOL
// for buys and in tokens for sells.
type tradeRequest struct {
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	Amount           float64 `json:"amount"`
	DenominatedInSol bool    `json:"denominatedInSol"`
	SlippageBps      int     `json:"slippageBps"`
	PriorityFee      float64 `json:"priorityFee"`
}

// tradeResponse is the API's order outcome.
type tradeResponse struct {
	Success        bool    `json:"success"`
	Signature      string  `json:"signature"`
	TokensReceived float64 `json:"tokensReceived"`
	SolReceived    float64 `json:"solReceived"`
	Error          string  `json:"error"`
}

// Buy submits a buy of solAmount SOL worth of the mint.
func (c *Client) Buy(ctx context.Context, mint string, solAmount float64) (domain.BuyResult, error) {
	resp, err := c.submit(ctx, tradeRequest{
		Action:           "buy",
		Mint:             mint,
		Amount:           solAmount,
		DenominatedInSol: true,
		SlippageBps:      c.cfg.SlippageBps,
		PriorityFee:      c.cfg.PriorityFee,
	})
	if err != nil {
		return domain.BuyResult{}, err
	}
	return domain.BuyResult{
		Success:        resp.Success,
		TokensReceived: resp.TokensReceived,
		TxRef:          resp.Signature,
		Message:        resp.Error,
	}, nil
}

// Sell submits a sell of tokenAmount tokens of the mint.
func (c *Client) Sell(ctx context.Context, mint string, tokenAmount float64) (domain.SellResult, error) {
	resp, err := c.submit(ctx, tradeRequest{
		Action:           "sell",
		Mint:             mint,
		Amount:           tokenAmount,
		DenominatedInSol: false,
		SlippageBps:      c.cfg.SlippageBps,
		PriorityFee:      c.cfg.PriorityFee,
	})
	if err != nil {
		return domain.SellResult{}, err
	}
	return domain.SellResult{
		Success:     resp.Success,
		SolReceived: resp.SolReceived,
		TxRef:       resp.Signature,
		Message:     resp.Error,
	}, nil
}

// submit posts the trade, retrying transport failures within the configured
// budget. A 2xx response ends the retry loop regardless of the Success flag:
// once the API has accepted the request the trade may have executed, and
// resubmitting could double-trade.
func (c *Client) submit(ctx context.Context, treq tradeRequest) (tradeResponse, error) {
	body, err := json.Marshal(treq)
	if err != nil {
		return tradeResponse{}, fmt.Errorf("tradeapi: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.SubmitRetries; attempt++ {
		resp, err := c.doSubmit(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("trade submission failed",
			slog.String("action", treq.Action),
			slog.String("mint", treq.Mint),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < c.cfg.SubmitRetries {
			select {
			case <-ctx.Done():
				return tradeResponse{}, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return tradeResponse{}, fmt.Errorf("tradeapi: %s %s: %w", treq.Action, treq.Mint, lastErr)
}

func (c *Client) doSubmit(ctx context.Context, body []byte) (tradeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/trade", bytes.NewReader(body))
	if err != nil {
		return tradeResponse{}, fmt.Errorf("tradeapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tradeResponse{}, fmt.Errorf("tradeapi: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tradeResponse{}, fmt.Errorf("tradeapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out tradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tradeResponse{}, fmt.Errorf("tradeapi: decode response: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.ExecutionClient = (*Client)(nil)
