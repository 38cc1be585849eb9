package store

import (
	"context"
	"log/slog"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/feed"
)

// Compile-time interface check.
var _ feed.Loader = (*ArchiveLoader)(nil)

// ArchiveLoader serves candles from a CandleStore and falls back to an
// upstream Loader when the archive holds fewer than minCandles valid candles
// for the requested range. Upstream candles are written back to the archive.
type ArchiveLoader struct {
	archive    CandleStore
	upstream   feed.Loader
	minCandles int
	log        *slog.Logger
}

// NewArchiveLoader creates an ArchiveLoader. A nil upstream makes it
// archive-only.
func NewArchiveLoader(archive CandleStore, upstream feed.Loader) *ArchiveLoader {
	return &ArchiveLoader{
		archive:    archive,
		upstream:   upstream,
		minCandles: 1,
		log:        slog.Default().With("loader", "archive"),
	}
}

// SetMinCandles sets how many valid archived candles a range needs before
// the archive is trusted over upstream. Values below 1 mean 1.
func (l *ArchiveLoader) SetMinCandles(n int) *ArchiveLoader {
	if n < 1 {
		n = 1
	}
	l.minCandles = n
	return l
}

// LoadCandles implements feed.Loader.
func (l *ArchiveLoader) LoadCandles(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error) {
	candles, err := l.archive.LoadCandles(ctx, symbol, start, end, tf)
	if err != nil {
		return nil, err
	}
	if l.upstream == nil || len(feed.Normalize(candles)) >= l.minCandles {
		return candles, nil
	}
	if len(candles) > 0 {
		l.log.Info("archive coverage short, fetching upstream",
			"symbol", symbol, "timeframe", string(tf), "archived", len(candles), "want", l.minCandles)
	}

	fetched, err := l.upstream.LoadCandles(ctx, symbol, start, end, tf)
	if err != nil {
		return nil, err
	}
	fetched = feed.Normalize(fetched)
	if err := l.archive.WriteCandles(ctx, symbol, tf, fetched); err != nil {
		// The run can still proceed on the fetched data.
		l.log.Warn("archiving candles failed", "symbol", symbol, "timeframe", string(tf), "error", err)
	}
	return fetched, nil
}
