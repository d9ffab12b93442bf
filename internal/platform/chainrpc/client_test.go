package chainrpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func accountInfoBody(data []byte) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"data":["%s","base64"],"lamports":1}}}`,
		base64.StdEncoding.EncodeToString(data))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetAccountData(t *testing.T) {
	account := curveAccountBytes(CurveState{VirtualSolReserves: 1, VirtualTokenReserves: 2})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, accountInfoBody(account))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{PrimaryURL: srv.URL, Retries: 1}, discardLogger())
	data, err := c.GetAccountData(context.Background(), "acct")
	if err != nil {
		t.Fatalf("GetAccountData: %v", err)
	}
	if string(data) != string(account) {
		t.Error("GetAccountData returned different bytes than the server sent")
	}
}

func TestGetAccountDataFallsBack(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	account := curveAccountBytes(CurveState{VirtualSolReserves: 5, VirtualTokenReserves: 7})
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls.Add(1)
		fmt.Fprint(w, accountInfoBody(account))
	}))
	defer fallback.Close()

	c := NewClient(ClientConfig{
		PrimaryURL:  primary.URL,
		FallbackURL: fallback.URL,
		Retries:     3,
		RetryDelay:  time.Millisecond,
	}, discardLogger())

	data, err := c.GetAccountData(context.Background(), "acct")
	if err != nil {
		t.Fatalf("GetAccountData: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("GetAccountData returned empty data")
	}
	if got := primaryCalls.Load(); got != 3 {
		t.Errorf("primary attempts = %d, want 3", got)
	}
	if got := fallbackCalls.Load(); got != 1 {
		t.Errorf("fallback attempts = %d, want 1", got)
	}
}

func TestGetAccountDataAllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{PrimaryURL: srv.URL, Retries: 2, RetryDelay: time.Millisecond}, discardLogger())
	if _, err := c.GetAccountData(context.Background(), "acct"); err == nil {
		t.Fatal("GetAccountData succeeded with a failing endpoint")
	}
}

func TestGetAccountDataMissingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":null}}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{PrimaryURL: srv.URL, Retries: 1}, discardLogger())
	if _, err := c.GetAccountData(context.Background(), "missing"); err == nil {
		t.Fatal("GetAccountData succeeded for a missing account")
	}
}

func TestFetchCurve(t *testing.T) {
	want := CurveState{
		VirtualTokenReserves: 4_000_000_000_000,
		VirtualSolReserves:   2_000_000_000,
		Complete:             false,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, accountInfoBody(curveAccountBytes(want)))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{PrimaryURL: srv.URL, Retries: 1}, discardLogger())
	got, err := c.FetchCurve(context.Background(), "curve-acct")
	if err != nil {
		t.Fatalf("FetchCurve: %v", err)
	}
	if got != want {
		t.Errorf("FetchCurve = %+v, want %+v", got, want)
	}
}
