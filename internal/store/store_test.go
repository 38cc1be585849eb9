package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"
	"coinsignal/internal/feed"
)

func candleAt(ts time.Time, c float64) domain.Candle {
	return domain.Candle{Timestamp: ts, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 2.5}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.candlePath(archiveSymbol("btc/usd"), domain.Timeframe1h, 2024)
	want := filepath.Join("/data", "crypto", "1h", "BTC-USD", "2024.parquet")
	if got != want {
		t.Errorf("candlePath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteLoadCandles(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	candles := []domain.Candle{
		candleAt(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 42000),
		candleAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 42500),
		candleAt(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 43000),
	}
	if err := ps.WriteCandles(ctx, "BTC/USD", domain.Timeframe1d, candles); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}

	// The range spans two year files and excludes the last candle.
	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ps.LoadCandles(ctx, "btc/usd", start, end, domain.Timeframe1d)
	if err != nil {
		t.Fatalf("LoadCandles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadCandles returned %d candles, want 2", len(got))
	}
	if got[0].Close != 42000 || got[1].Close != 42500 {
		t.Errorf("closes = %v, %v, want 42000, 42500", got[0].Close, got[1].Close)
	}
	if got[1].Volume != 2.5 || got[1].High != 42501 {
		t.Errorf("second candle = %+v", got[1])
	}
	if !got[1].Timestamp.Equal(end) {
		t.Errorf("second candle time = %v, want %v", got[1].Timestamp, end)
	}

	// Other timeframes are separate archives.
	other, err := ps.LoadCandles(ctx, "BTC/USD", start, end, domain.Timeframe1h)
	if err != nil {
		t.Fatalf("LoadCandles(1h): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("1h archive returned %d candles, want 0", len(other))
	}
}

func TestParquetStoreMergeCandles(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := ps.WriteCandles(ctx, "ETH/USD", domain.Timeframe1d, []domain.Candle{candleAt(d1, 3000)}); err != nil {
		t.Fatalf("WriteCandles (first): %v", err)
	}
	// Same year: merges, and the repeated timestamp is replaced.
	if err := ps.WriteCandles(ctx, "ETH/USD", domain.Timeframe1d, []domain.Candle{candleAt(d2, 3100), candleAt(d1, 3050)}); err != nil {
		t.Fatalf("WriteCandles (second): %v", err)
	}

	got, err := ps.LoadCandles(ctx, "ETH/USD", d1, d2, domain.Timeframe1d)
	if err != nil {
		t.Fatalf("LoadCandles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadCandles returned %d candles after merge, want 2", len(got))
	}
	if got[0].Close != 3050 {
		t.Errorf("merged close = %v, want 3050", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, sym := range []string{"SOL/USD", "BTC/USD"} {
		if err := ps.WriteCandles(ctx, sym, domain.Timeframe1d, []domain.Candle{candleAt(ts, 100)}); err != nil {
			t.Fatalf("WriteCandles(%s): %v", sym, err)
		}
	}

	symbols, err := ps.ListSymbols(ctx, domain.Timeframe1d)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTC-USD" || symbols[1] != "SOL-USD" {
		t.Errorf("ListSymbols = %v, want [BTC-USD SOL-USD]", symbols)
	}

	none, err := ps.ListSymbols(ctx, domain.Timeframe4h)
	if err != nil || len(none) != 0 {
		t.Errorf("ListSymbols(4h) = %v, %v; want empty", none, err)
	}
}

func TestArchiveLoaderFallsBackAndArchives(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	calls := 0
	upstream := feed.LoaderFunc(func(context.Context, string, time.Time, time.Time, domain.Timeframe) ([]domain.Candle, error) {
		calls++
		return []domain.Candle{candleAt(start.AddDate(0, 0, 1), 11), candleAt(start, 10)}, nil
	})
	l := NewArchiveLoader(ps, upstream)

	for i := 0; i < 2; i++ {
		got, err := l.LoadCandles(ctx, "DOGE/USD", start, end, domain.Timeframe1d)
		if err != nil {
			t.Fatalf("LoadCandles #%d: %v", i, err)
		}
		if len(got) != 2 || got[0].Close != 10 {
			t.Fatalf("LoadCandles #%d = %+v", i, got)
		}
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}

func TestArchiveLoaderShortCoverageFallsBack(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 9)

	// Three archived days out of a ten-day range.
	var partial []domain.Candle
	for i := 0; i < 3; i++ {
		partial = append(partial, candleAt(start.AddDate(0, 0, i), 10))
	}
	if err := ps.WriteCandles(ctx, "ETH/USD", domain.Timeframe1d, partial); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}

	calls := 0
	upstream := feed.LoaderFunc(func(_ context.Context, _ string, from, to time.Time, _ domain.Timeframe) ([]domain.Candle, error) {
		calls++
		var out []domain.Candle
		for ts := from; !ts.After(to); ts = ts.AddDate(0, 0, 1) {
			out = append(out, candleAt(ts, 20))
		}
		return out, nil
	})

	// Enough coverage for the threshold: the archive is served.
	got, err := NewArchiveLoader(ps, upstream).SetMinCandles(3).LoadCandles(ctx, "ETH/USD", start, end, domain.Timeframe1d)
	if err != nil {
		t.Fatalf("LoadCandles: %v", err)
	}
	if len(got) != 3 || calls != 0 {
		t.Fatalf("LoadCandles = %d candles with %d upstream calls, want 3 and 0", len(got), calls)
	}

	// Short coverage: upstream fills the range and the archive is completed.
	l := NewArchiveLoader(ps, upstream).SetMinCandles(5)
	got, err = l.LoadCandles(ctx, "ETH/USD", start, end, domain.Timeframe1d)
	if err != nil {
		t.Fatalf("LoadCandles: %v", err)
	}
	if len(got) != 10 || calls != 1 {
		t.Fatalf("LoadCandles = %d candles with %d upstream calls, want 10 and 1", len(got), calls)
	}
	archived, err := ps.LoadCandles(ctx, "ETH/USD", start, end, domain.Timeframe1d)
	if err != nil || len(archived) != 10 {
		t.Errorf("archive holds %d candles, %v; want 10", len(archived), err)
	}
	if _, err := l.LoadCandles(ctx, "ETH/USD", start, end, domain.Timeframe1d); err != nil || calls != 1 {
		t.Errorf("second LoadCandles: err %v, upstream calls %d; want nil and 1", err, calls)
	}
}

func TestArchiveLoaderPropagatesUpstreamError(t *testing.T) {
	l := NewArchiveLoader(NewParquetStore(t.TempDir()), feed.LoaderFunc(
		func(context.Context, string, time.Time, time.Time, domain.Timeframe) ([]domain.Candle, error) {
			return nil, domain.ErrRateLimited
		}))
	_, err := l.LoadCandles(context.Background(), "BTC", time.Now().Add(-time.Hour), time.Now(), domain.Timeframe1m)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("LoadCandles error = %v, want ErrRateLimited", err)
	}
}

// ---------------------------------------------------------------------------
// SQLiteStore
// ---------------------------------------------------------------------------

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return s
}

func sampleResult(created time.Time) *backtest.Result {
	t0 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		domain.NewTrade(domain.Position{Side: domain.SideLong, EntryPrice: 100, EntryTime: t0}, t0.AddDate(0, 0, 3), 110, false),
		domain.NewTrade(domain.Position{Side: domain.SideLong, EntryPrice: 110, EntryTime: t0.AddDate(0, 0, 5)}, t0.AddDate(0, 0, 9), 99, true),
	}
	res := backtest.Evaluate(trades, 10000, 0)
	res.Symbol = "BTC/USD"
	res.Strategy = "SMA Crossover"
	res.Timeframe = "1d"
	res.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res.End = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res.Candles = 60
	res.CreatedAt = created
	return res
}

func TestSQLiteStoreSaveGetRun(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	res := sampleResult(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if res.ID == "" {
		t.Fatal("SaveRun did not assign an ID")
	}

	got, err := s.GetRun(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Symbol != res.Symbol || got.Strategy != res.Strategy || got.TotalTrades != 2 {
		t.Errorf("GetRun = %+v", got)
	}
	if got.WinRate != 0.5 || got.ProfitFactor != res.ProfitFactor || got.Sharpe != res.Sharpe {
		t.Errorf("metrics = %v/%v/%v, want %v/%v/%v",
			got.WinRate, got.ProfitFactor, got.Sharpe, res.WinRate, res.ProfitFactor, res.Sharpe)
	}
	if !got.Start.Equal(res.Start) || !got.CreatedAt.Equal(res.CreatedAt) {
		t.Errorf("times = %v %v, want %v %v", got.Start, got.CreatedAt, res.Start, res.CreatedAt)
	}
	if len(got.Trades) != 2 {
		t.Fatalf("GetRun returned %d trades, want 2", len(got.Trades))
	}
	for i, tr := range got.Trades {
		want := res.Trades[i]
		if !tr.EntryTime.Equal(want.EntryTime) || !tr.ExitTime.Equal(want.ExitTime) ||
			tr.EntryPrice != want.EntryPrice || tr.ExitPrice != want.ExitPrice ||
			tr.Profit != want.Profit || tr.Direction != want.Direction {
			t.Errorf("trade %d = %+v, want %+v", i, tr, want)
		}
	}
	if !got.Trades[1].Forced {
		t.Error("forced flag was not persisted")
	}
}

func TestSQLiteStoreGetRunNotFound(t *testing.T) {
	s := openTestDB(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		res := sampleResult(base.Add(time.Duration(i) * time.Hour))
		if err := s.SaveRun(ctx, res); err != nil {
			t.Fatalf("SaveRun #%d: %v", i, err)
		}
		ids = append(ids, res.ID)
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("ListRuns order = [%s %s], want [%s %s]", runs[0].ID, runs[1].ID, ids[2], ids[1])
	}
	if len(runs[0].Trades) != 0 {
		t.Errorf("ListRuns included %d trades, want none", len(runs[0].Trades))
	}

	all, err := s.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("ListRuns(0) = %d runs, %v; want 3", len(all), err)
	}
}
