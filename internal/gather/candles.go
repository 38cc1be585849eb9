package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/feed"
	"coinsignal/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*CandleGatherer)(nil)

// barsPerRequest bounds one upstream request window.
const barsPerRequest = 1000

// CandleGathererConfig configures a CandleGatherer.
type CandleGathererConfig struct {
	Symbols    []string
	Timeframe  domain.Timeframe
	Range      DateRange
	MaxWorkers int
	// ProgressDir holds the .tried-empty and .last-completed files. Empty
	// disables progress tracking.
	ProgressDir string
}

// CandleGatherer copies candles for a list of symbols from an upstream
// Loader into the candle archive. It is resumable and idempotent for a
// given range.
type CandleGatherer struct {
	loader feed.Loader
	store  store.CandleStore
	cfg    CandleGathererConfig
	log    *slog.Logger
}

// NewCandleGatherer creates a CandleGatherer that reads through loader and
// writes to s.
func NewCandleGatherer(loader feed.Loader, s store.CandleStore, cfg CandleGathererConfig) *CandleGatherer {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = domain.Timeframe1d
	}
	return &CandleGatherer{
		loader: loader,
		store:  s,
		cfg:    cfg,
		log:    slog.Default().With("gatherer", "crypto-"+string(cfg.Timeframe)),
	}
}

// ProgressDir returns the conventional progress directory for a timeframe
// under the archive root.
func ProgressDir(dataDir string, tf domain.Timeframe) string {
	return filepath.Join(dataDir, "crypto", string(tf))
}

// Name returns the gatherer identifier.
func (g *CandleGatherer) Name() string { return "crypto-" + string(g.cfg.Timeframe) }

// Run fetches every configured symbol over the configured range and merges
// the candles into the archive. Symbols that fail are logged and counted;
// the others still complete.
func (g *CandleGatherer) Run(ctx context.Context) error {
	if !g.cfg.Range.Valid() {
		return fmt.Errorf("%w: gather range %s", domain.ErrInvalidDateRange, g.cfg.Range.Key())
	}
	key := g.cfg.Range.Key()

	var tracker *progressTracker
	if g.cfg.ProgressDir != "" {
		var err error
		tracker, err = newProgressTracker(g.cfg.ProgressDir)
		if err != nil {
			return fmt.Errorf("creating progress tracker: %w", err)
		}
		defer tracker.Close()

		if tracker.IsCompleted(key) {
			g.log.Info("already completed", "range", key)
			return nil
		}
		if last := tracker.LastCompleted(); last != "" && last != key {
			if err := tracker.Reset(); err != nil {
				return fmt.Errorf("resetting tracker: %w", err)
			}
		}
	}

	var remaining []string
	for _, sym := range g.cfg.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if tracker != nil && tracker.IsTriedEmpty(sym) {
			continue
		}
		remaining = append(remaining, sym)
	}

	g.log.Info("starting gather",
		"range", key,
		"total", len(g.cfg.Symbols),
		"remaining", len(remaining),
	)

	symCh := make(chan string, len(remaining))
	for _, sym := range remaining {
		symCh <- sym
	}
	close(symCh)

	var (
		wg          sync.WaitGroup
		totalBars   atomic.Int64
		totalEmpty  atomic.Int64
		totalFailed atomic.Int64
		runStart    = time.Now()
	)

	workers := min(g.cfg.MaxWorkers, len(remaining))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherSymbol(ctx, sym)
				if err != nil {
					totalFailed.Add(1)
					g.log.Error("gathering symbol failed", "symbol", sym, "code", domain.ErrorCode(err), "err", err)
					continue
				}
				if n == 0 {
					totalEmpty.Add(1)
					if tracker != nil {
						if err := tracker.MarkEmpty(sym); err != nil {
							g.log.Error("marking empty failed", "err", err)
						}
					}
				}
				totalBars.Add(int64(n))
				g.log.Info("symbol done", "symbol", sym, "candles", n,
					"elapsed", time.Since(runStart).Round(time.Second))
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed := totalFailed.Load(); failed > 0 {
		return fmt.Errorf("gather %s: %d of %d symbols failed", key, failed, len(remaining))
	}
	if tracker != nil {
		if err := tracker.MarkCompleted(key); err != nil {
			return fmt.Errorf("marking completed: %w", err)
		}
	}

	g.log.Info("complete",
		"candles", totalBars.Load(),
		"empty", totalEmpty.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// gatherSymbol walks the range in request-sized windows and returns the
// number of candles written.
func (g *CandleGatherer) gatherSymbol(ctx context.Context, symbol string) (int, error) {
	step := g.cfg.Timeframe.Duration() * barsPerRequest
	written := 0
	for _, w := range g.cfg.Range.Split(step) {
		raw, err := g.loader.LoadCandles(ctx, symbol, w.Start, w.End, g.cfg.Timeframe)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return written, err
			}
			return written, fmt.Errorf("loading %s %s: %w", symbol, w.Key(), err)
		}
		candles := feed.Normalize(raw)
		if len(candles) == 0 {
			continue
		}
		if err := g.store.WriteCandles(ctx, symbol, g.cfg.Timeframe, candles); err != nil {
			return written, fmt.Errorf("writing %s: %w", symbol, err)
		}
		written += len(candles)
	}
	return written, nil
}
