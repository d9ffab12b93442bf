// Package feed consumes the launchpad's real-time WebSocket stream: new token
// launches and the trade activity of tracked wallets. It dispatches decoded
// events to registered handlers and reconnects on disconnect.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// LaunchHandler is called for every new token launch event.
type LaunchHandler func(ctx context.Context, ev domain.LaunchEvent)

// WalletTradeHandler is called for every trade made by a tracked wallet.
type WalletTradeHandler func(ctx context.Context, ev domain.WalletTradeEvent)

// subscribeCommand is the wire format for stream subscriptions.
type subscribeCommand struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// streamMessage is the single envelope the launchpad stream uses for both
// launch and trade events; TxType discriminates.
type streamMessage struct {
	TxType          string  `json:"txType"` // "create", "buy", "sell"
	Mint            string  `json:"mint"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	TraderPublicKey string  `json:"traderPublicKey"`
	BondingCurveKey string  `json:"bondingCurveKey"`
	SolAmount       float64 `json:"solAmount"`
	TokenAmount     float64 `json:"tokenAmount"`
	Timestamp       int64   `json:"timestamp"` // unix millis, 0 if absent
}

// LaunchFeed subscribes to new-token launches and, when wallet addresses are
// configured, to the trade stream of those wallets. It runs until its context
// is cancelled, reconnecting with exponential backoff on disconnect.
type LaunchFeed struct {
	wsURL    string
	wallets  []string
	onLaunch LaunchHandler
	onTrade  WalletTradeHandler
	logger   *slog.Logger
}

// NewLaunchFeed creates a feed for the given stream endpoint. wallets may be
// empty; either handler may be nil.
func NewLaunchFeed(wsURL string, wallets []string, onLaunch LaunchHandler, onTrade WalletTradeHandler, logger *slog.Logger) *LaunchFeed {
	return &LaunchFeed{
		wsURL:    wsURL,
		wallets:  wallets,
		onLaunch: onLaunch,
		onTrade:  onTrade,
		logger:   logger.With(slog.String("component", "launch_feed")),
	}
}

// Run connects, subscribes, and dispatches events until ctx is cancelled.
func (f *LaunchFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection performs one dial/subscribe/read cycle. It returns when the
// connection drops or ctx is cancelled. A successful subscription resets the
// caller's backoff implicitly by running for longer than the delay.
func (f *LaunchFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("stream subscribed",
		slog.Int("tracked_wallets", len(f.wallets)),
	)

	// Drop the connection when ctx is cancelled so ReadMessage unblocks,
	// and keep it alive with periodic pings meanwhile.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go f.keepAlive(pingCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, raw)
	}
}

func (f *LaunchFeed) subscribe(conn *websocket.Conn) error {
	cmds := []subscribeCommand{{Method: "subscribeNewToken"}}
	if len(f.wallets) > 0 {
		cmds = append(cmds, subscribeCommand{Method: "subscribeAccountTrade", Keys: f.wallets})
	}
	for _, cmd := range cmds {
		data, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("feed: marshal %s: %w", cmd.Method, err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("feed: subscribe %s: %w", cmd.Method, err)
		}
	}
	return nil
}

func (f *LaunchFeed) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a raw stream message and routes it by txType.
// Unparseable and unknown messages are dropped silently; the stream carries
// acknowledgement chatter that is not worth logging per message.
func (f *LaunchFeed) handleMessage(ctx context.Context, raw []byte) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Mint == "" {
		return
	}

	ts := time.Now()
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp)
	}

	switch msg.TxType {
	case "create":
		if f.onLaunch == nil {
			return
		}
		f.onLaunch(ctx, domain.LaunchEvent{
			Mint:         msg.Mint,
			Name:         msg.Name,
			Symbol:       msg.Symbol,
			Creator:      msg.TraderPublicKey,
			CurveAccount: msg.BondingCurveKey,
			Timestamp:    ts,
		})
	case "buy", "sell":
		if f.onTrade == nil {
			return
		}
		f.onTrade(ctx, domain.WalletTradeEvent{
			Wallet:      msg.TraderPublicKey,
			Mint:        msg.Mint,
			Side:        domain.TradeSide(msg.TxType),
			SolAmount:   msg.SolAmount,
			TokenAmount: msg.TokenAmount,
			Timestamp:   ts,
		})
	}
}
