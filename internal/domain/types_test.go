package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestCandleValid(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		c    Candle
		want bool
	}{
		{"ok", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}, true},
		{"flat", Candle{Timestamp: ts, Open: 10, High: 10, Low: 10, Close: 10}, true},
		{"zero price", Candle{Timestamp: ts, Open: 0, High: 12, Low: 9, Close: 11}, false},
		{"nan close", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: math.NaN()}, false},
		{"high below close", Candle{Timestamp: ts, Open: 10, High: 10.5, Low: 9, Close: 11}, false},
		{"low above open", Candle{Timestamp: ts, Open: 10, High: 12, Low: 10.5, Close: 11}, false},
		{"negative volume", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewTrade(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := entry.Add(48 * time.Hour)
	pos := Position{Side: SideLong, EntryPrice: 200, EntryTime: entry}

	tr := NewTrade(pos, exit, 150, true)
	if tr.Profit != -50 {
		t.Errorf("Profit = %v, want -50", tr.Profit)
	}
	if tr.ProfitPercent != -0.25 {
		t.Errorf("ProfitPercent = %v, want -0.25", tr.ProfitPercent)
	}
	if tr.Direction != DirectionLong {
		t.Errorf("Direction = %q, want %q", tr.Direction, DirectionLong)
	}
	if !tr.EntryTime.Equal(entry) || !tr.ExitTime.Equal(exit) {
		t.Error("trade timestamps do not match position and exit")
	}
	if !tr.Forced {
		t.Error("Forced = false, want true")
	}
}

func TestPositionOpen(t *testing.T) {
	if (Position{}).Open() {
		t.Error("zero-value Position reported open")
	}
	if !(Position{Side: SideLong}).Open() {
		t.Error("long Position reported closed")
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("loading BTC/USD: %w", ErrRateLimited)
	if got := ErrorCode(wrapped); got != "rate_limited" {
		t.Errorf("ErrorCode(wrapped) = %q, want %q", got, "rate_limited")
	}
	if got := ErrorCode(errors.New("boom")); got != "internal" {
		t.Errorf("ErrorCode(other) = %q, want %q", got, "internal")
	}
	if got := ErrorCode(nil); got != "" {
		t.Errorf("ErrorCode(nil) = %q, want empty", got)
	}
}
