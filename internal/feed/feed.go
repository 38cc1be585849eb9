// Package feed defines the boundary through which historical candle series
// enter the backtester, and the loaders that implement it.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"coinsignal/internal/domain"
)

// Loader returns the candles for symbol within [start, end], oldest first.
// Implementations report failures as domain.ErrDataUnavailable or
// domain.ErrRateLimited; callers do not retry.
type Loader interface {
	LoadCandles(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error)

// LoadCandles calls f.
func (f LoaderFunc) LoadCandles(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error) {
	return f(ctx, symbol, start, end, tf)
}

// Normalize returns a chronologically ordered copy of candles with strictly
// increasing timestamps. Timestamps are truncated to milliseconds; for
// duplicates the later entry wins. Invalid candles are dropped.
func Normalize(candles []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, 0, len(candles))
	dropped := 0
	for _, c := range candles {
		if !c.Valid() {
			dropped++
			continue
		}
		c.Timestamp = time.UnixMilli(c.Timestamp.UnixMilli()).UTC()
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp.Equal(c.Timestamp) {
			dedup[n-1] = c
			dropped++
			continue
		}
		dedup = append(dedup, c)
	}
	if dropped > 0 {
		slog.Debug("normalized candle series", "kept", len(dedup), "dropped", dropped)
	}
	return dedup
}
