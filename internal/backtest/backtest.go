package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/feed"
	"coinsignal/internal/strategy"
	"coinsignal/internal/strategy/builtins"
)

// DefaultMinCandles is the shortest loaded series a run accepts.
const DefaultMinCandles = 30

// Observer receives one notification per finished run. Outcome is the
// domain error code, or "ok".
type Observer interface {
	ObserveRun(strategy, outcome string, elapsed time.Duration, trades int)
}

// Options tunes a Backtester. Zero fields take defaults.
type Options struct {
	MinCandles     int
	TradeSample    int
	InitialCapital float64
	Observer       Observer
	Logger         *slog.Logger
}

// Backtester replays historical candles through a strategy and computes
// performance metrics. It holds no state between runs and is safe for
// concurrent use when its loader is.
type Backtester struct {
	loader      feed.Loader
	minCandles  int
	tradeSample int
	capital     float64
	observer    Observer
	log         *slog.Logger
	now         func() time.Time
}

// NewBacktester creates a Backtester that reads candles from loader.
func NewBacktester(loader feed.Loader, opts Options) *Backtester {
	if opts.MinCandles <= 0 {
		opts.MinCandles = DefaultMinCandles
	}
	if opts.TradeSample <= 0 {
		opts.TradeSample = DefaultTradeSample
	}
	if opts.InitialCapital <= 0 {
		opts.InitialCapital = DefaultInitialCapital
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Backtester{
		loader:      loader,
		minCandles:  opts.MinCandles,
		tradeSample: opts.TradeSample,
		capital:     opts.InitialCapital,
		observer:    opts.Observer,
		log:         opts.Logger.With("component", "backtest"),
		now:         time.Now,
	}
}

// Run executes one backtest. Invalid input is rejected before any data is
// fetched. Loader failures are returned as-is and never retried. A run that
// produces no trades is a successful Result with zero metrics.
func (bt *Backtester) Run(ctx context.Context, p Params) (*Result, error) {
	started := bt.now()
	res, err := bt.run(ctx, p)
	elapsed := bt.now().Sub(started)

	outcome, trades := "ok", 0
	if err != nil {
		outcome = domain.ErrorCode(err)
		bt.log.Warn("backtest failed", "symbol", p.Symbol, "strategy", p.Strategy, "code", outcome, "error", err)
	} else {
		trades = res.TotalTrades
		bt.log.Info("backtest complete",
			"symbol", res.Symbol,
			"strategy", res.Strategy,
			"candles", res.Candles,
			"trades", res.TotalTrades,
			"winRate", res.WinRate,
			"elapsed", elapsed,
		)
	}
	if bt.observer != nil {
		bt.observer.ObserveRun(strategyLabel(p.Strategy), outcome, elapsed, trades)
	}
	return res, err
}

func (bt *Backtester) run(ctx context.Context, p Params) (*Result, error) {
	kind, err := strategy.ParseKind(p.Strategy)
	if err != nil {
		return nil, err
	}
	strat, err := builtins.New(kind, p.Settings)
	if err != nil {
		return nil, err
	}
	tf, err := domain.ParseTimeframe(p.Timeframe)
	if err != nil {
		return nil, err
	}
	symbol := strings.TrimSpace(p.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameter)
	}
	capital := p.InitialCapital
	if capital == 0 {
		capital = bt.capital
	}
	if capital < 0 || math.IsNaN(capital) || math.IsInf(capital, 0) {
		return nil, fmt.Errorf("%w: initial capital %g", domain.ErrInvalidParameter, p.InitialCapital)
	}
	if !p.Start.Before(p.End) {
		return nil, fmt.Errorf("%w: start %s is not before end %s",
			domain.ErrInvalidDateRange, p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
	}

	raw, err := bt.loader.LoadCandles(ctx, symbol, p.Start, p.End, tf)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("loading %s: %w", symbol, err)
		}
		return nil, fmt.Errorf("loading %s: %w: %w", symbol, domain.ErrDataUnavailable, err)
	}
	candles := feed.Normalize(raw)
	if len(candles) < bt.minCandles {
		return nil, fmt.Errorf("%w: %d candles for %s, need %d",
			domain.ErrInsufficientHistory, len(candles), symbol, bt.minCandles)
	}

	trades, err := strategy.Execute(candles, strat)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", kind, err)
	}

	res := Evaluate(trades, capital, bt.tradeSample)
	res.Symbol = symbol
	res.Strategy = kind.String()
	res.Timeframe = string(tf)
	res.Start = p.Start
	res.End = p.End
	res.Candles = len(candles)
	res.CreatedAt = bt.now().UTC()
	return res, nil
}

// strategyLabel keeps metric label cardinality bounded to the closed set.
func strategyLabel(name string) string {
	if k, err := strategy.ParseKind(name); err == nil {
		return k.Slug()
	}
	return "unknown"
}
