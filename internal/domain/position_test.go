package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validPosition() Position {
	return Position{
		Mint:        "mintA",
		Strategy:    StrategySniper,
		EntryPrice:  1e-6,
		SolAmount:   0.5,
		TokenAmount: 500000,
		MaxPrice:    1e-6,
		EntryTime:   time.Now(),
		Status:      PositionStatusOpen,
	}
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Position)
		wantErr bool
	}{
		{"valid sniper", func(*Position) {}, false},
		{"valid copy", func(p *Position) {
			p.Strategy = StrategyCopy
			p.SourceWallet = "walletA"
		}, false},
		{"empty mint", func(p *Position) { p.Mint = "" }, true},
		{"unknown strategy", func(p *Position) { p.Strategy = "arb" }, true},
		{"zero entry price", func(p *Position) { p.EntryPrice = 0 }, true},
		{"negative sol amount", func(p *Position) { p.SolAmount = -1 }, true},
		{"zero token amount", func(p *Position) { p.TokenAmount = 0 }, true},
		{"copy without source wallet", func(p *Position) { p.Strategy = StrategyCopy }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := validPosition()
			tt.mutate(&pos)
			err := pos.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate accepted an invalid position")
				}
				if !errors.Is(err, ErrInvalidPosition) {
					t.Errorf("error = %v, want wrapped %v", err, ErrInvalidPosition)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestPositionPnLPercentAt(t *testing.T) {
	pos := Position{EntryPrice: 2.0}

	if got := pos.PnLPercentAt(5.0); math.Abs(got-150) > 1e-9 {
		t.Errorf("PnLPercentAt(5.0) = %v, want 150", got)
	}
	if got := pos.PnLPercentAt(1.0); math.Abs(got-(-50)) > 1e-9 {
		t.Errorf("PnLPercentAt(1.0) = %v, want -50", got)
	}
	if got := (Position{}).PnLPercentAt(1.0); got != 0 {
		t.Errorf("PnLPercentAt with zero entry = %v, want 0", got)
	}
}

func TestPositionDrawdownPercentAt(t *testing.T) {
	pos := Position{EntryPrice: 1.0, MaxPrice: 4.0}

	if got := pos.DrawdownPercentAt(3.0); math.Abs(got-(-25)) > 1e-9 {
		t.Errorf("DrawdownPercentAt(3.0) = %v, want -25", got)
	}
	if got := pos.DrawdownPercentAt(4.0); got != 0 {
		t.Errorf("DrawdownPercentAt at the peak = %v, want 0", got)
	}
	if got := (Position{}).DrawdownPercentAt(1.0); got != 0 {
		t.Errorf("DrawdownPercentAt with no peak = %v, want 0", got)
	}
}

func TestJournalDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// Day keys are always UTC: 23:30 June 1 at UTC+9 is 14:30 June 1 UTC.
	ts := time.Date(2025, 6, 1, 23, 30, 0, 0, loc)
	if got := JournalDay(ts); got != "2025-06-01" {
		t.Errorf("JournalDay = %q, want 2025-06-01", got)
	}

	ts = time.Date(2025, 6, 1, 1, 30, 0, 0, loc) // 16:30 May 31 UTC
	if got := JournalDay(ts); got != "2025-05-31" {
		t.Errorf("JournalDay = %q, want 2025-05-31", got)
	}
}
