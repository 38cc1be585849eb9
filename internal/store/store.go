// Package store defines storage interfaces for the candle archive and for
// finished backtest runs.
package store

import (
	"context"
	"time"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"
)

// CandleStore persists and retrieves OHLCV candles.
type CandleStore interface {
	// WriteCandles merges a batch of candles for one symbol and timeframe
	// into storage. Newer values replace stored ones with the same timestamp.
	WriteCandles(ctx context.Context, symbol string, tf domain.Timeframe, candles []domain.Candle) error

	// LoadCandles returns candles for symbol within [start, end], oldest first.
	LoadCandles(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error)

	// ListSymbols returns all distinct symbols archived for a timeframe.
	ListSymbols(ctx context.Context, tf domain.Timeframe) ([]string, error)
}

// RunStore persists finished backtest results.
type RunStore interface {
	// SaveRun stores res and assigns res.ID when it is empty.
	SaveRun(ctx context.Context, res *backtest.Result) error

	// GetRun returns a stored result. Missing IDs yield domain.ErrNotFound.
	GetRun(ctx context.Context, id string) (*backtest.Result, error)

	// ListRuns returns up to limit results, newest first, without trades.
	ListRuns(ctx context.Context, limit int) ([]backtest.Result, error)
}
