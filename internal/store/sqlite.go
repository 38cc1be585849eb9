package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// DefaultListLimit bounds ListRuns when the caller passes no limit.
const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id              TEXT PRIMARY KEY,
	symbol          TEXT    NOT NULL,
	strategy        TEXT    NOT NULL,
	timeframe       TEXT    NOT NULL,
	start_ms        INTEGER NOT NULL,
	end_ms          INTEGER NOT NULL,
	candles         INTEGER NOT NULL,
	initial_capital REAL    NOT NULL,
	final_capital   REAL    NOT NULL,
	total_return    REAL    NOT NULL,
	win_rate        REAL    NOT NULL,
	profit_factor   REAL    NOT NULL,
	max_drawdown    REAL    NOT NULL,
	sharpe          REAL    NOT NULL,
	total_trades    INTEGER NOT NULL,
	winning_trades  INTEGER NOT NULL,
	losing_trades   INTEGER NOT NULL,
	created_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs (created_ms DESC);

CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id         TEXT    NOT NULL,
	seq            INTEGER NOT NULL,
	entry_ms       INTEGER NOT NULL,
	exit_ms        INTEGER NOT NULL,
	entry_price    REAL    NOT NULL,
	exit_price     REAL    NOT NULL,
	direction      TEXT    NOT NULL,
	profit         REAL    NOT NULL,
	profit_percent REAL    NOT NULL,
	forced         INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// runRow is the backtest_runs row layout.
type runRow struct {
	ID             string  `db:"id"`
	Symbol         string  `db:"symbol"`
	Strategy       string  `db:"strategy"`
	Timeframe      string  `db:"timeframe"`
	StartMS        int64   `db:"start_ms"`
	EndMS          int64   `db:"end_ms"`
	Candles        int     `db:"candles"`
	InitialCapital float64 `db:"initial_capital"`
	FinalCapital   float64 `db:"final_capital"`
	TotalReturn    float64 `db:"total_return"`
	WinRate        float64 `db:"win_rate"`
	ProfitFactor   float64 `db:"profit_factor"`
	MaxDrawdown    float64 `db:"max_drawdown"`
	Sharpe         float64 `db:"sharpe"`
	TotalTrades    int     `db:"total_trades"`
	WinningTrades  int     `db:"winning_trades"`
	LosingTrades   int     `db:"losing_trades"`
	CreatedMS      int64   `db:"created_ms"`
}

// tradeRow is the backtest_trades row layout.
type tradeRow struct {
	RunID         string  `db:"run_id"`
	Seq           int     `db:"seq"`
	EntryMS       int64   `db:"entry_ms"`
	ExitMS        int64   `db:"exit_ms"`
	EntryPrice    float64 `db:"entry_price"`
	ExitPrice     float64 `db:"exit_price"`
	Direction     string  `db:"direction"`
	Profit        float64 `db:"profit"`
	ProfitPercent float64 `db:"profit_percent"`
	Forced        bool    `db:"forced"`
}

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts res and its trade sample in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *backtest.Result) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, symbol, strategy, timeframe, start_ms, end_ms, candles,
			initial_capital, final_capital, total_return, win_rate, profit_factor,
			max_drawdown, sharpe, total_trades, winning_trades, losing_trades, created_ms
		) VALUES (
			:id, :symbol, :strategy, :timeframe, :start_ms, :end_ms, :candles,
			:initial_capital, :final_capital, :total_return, :win_rate, :profit_factor,
			:max_drawdown, :sharpe, :total_trades, :winning_trades, :losing_trades, :created_ms
		)`, toRunRow(res))
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.ID, err)
	}

	for i, t := range res.Trades {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO backtest_trades (
				run_id, seq, entry_ms, exit_ms, entry_price, exit_price,
				direction, profit, profit_percent, forced
			) VALUES (
				:run_id, :seq, :entry_ms, :exit_ms, :entry_price, :exit_price,
				:direction, :profit, :profit_percent, :forced
			)`, toTradeRow(res.ID, i, t))
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, res.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun retrieves a single run by its ID, including its trade sample.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM backtest_runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}

	var trades []tradeRow
	err = s.db.SelectContext(ctx, &trades,
		`SELECT * FROM backtest_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying trades of run %s: %w", id, err)
	}

	res := row.result()
	res.Trades = make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		res.Trades = append(res.Trades, t.trade())
	}
	return &res, nil
}

// ListRuns returns the most recent runs, up to limit, without trades.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]backtest.Result, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM backtest_runs ORDER BY created_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	out := make([]backtest.Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.result())
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Row conversion
// ---------------------------------------------------------------------------

func toRunRow(res *backtest.Result) runRow {
	return runRow{
		ID:             res.ID,
		Symbol:         res.Symbol,
		Strategy:       res.Strategy,
		Timeframe:      res.Timeframe,
		StartMS:        res.Start.UnixMilli(),
		EndMS:          res.End.UnixMilli(),
		Candles:        res.Candles,
		InitialCapital: res.InitialCapital,
		FinalCapital:   res.FinalCapital,
		TotalReturn:    res.TotalReturn,
		WinRate:        res.WinRate,
		ProfitFactor:   res.ProfitFactor,
		MaxDrawdown:    res.MaxDrawdown,
		Sharpe:         res.Sharpe,
		TotalTrades:    res.TotalTrades,
		WinningTrades:  res.WinningTrades,
		LosingTrades:   res.LosingTrades,
		CreatedMS:      res.CreatedAt.UnixMilli(),
	}
}

func (r runRow) result() backtest.Result {
	return backtest.Result{
		ID:             r.ID,
		Symbol:         r.Symbol,
		Strategy:       r.Strategy,
		Timeframe:      r.Timeframe,
		Start:          time.UnixMilli(r.StartMS).UTC(),
		End:            time.UnixMilli(r.EndMS).UTC(),
		Candles:        r.Candles,
		InitialCapital: r.InitialCapital,
		FinalCapital:   r.FinalCapital,
		TotalReturn:    r.TotalReturn,
		WinRate:        r.WinRate,
		ProfitFactor:   r.ProfitFactor,
		MaxDrawdown:    r.MaxDrawdown,
		Sharpe:         r.Sharpe,
		TotalTrades:    r.TotalTrades,
		WinningTrades:  r.WinningTrades,
		LosingTrades:   r.LosingTrades,
		Trades:         []domain.Trade{},
		CreatedAt:      time.UnixMilli(r.CreatedMS).UTC(),
	}
}

func toTradeRow(runID string, seq int, t domain.Trade) tradeRow {
	return tradeRow{
		RunID:         runID,
		Seq:           seq,
		EntryMS:       t.EntryTime.UnixMilli(),
		ExitMS:        t.ExitTime.UnixMilli(),
		EntryPrice:    t.EntryPrice,
		ExitPrice:     t.ExitPrice,
		Direction:     string(t.Direction),
		Profit:        t.Profit,
		ProfitPercent: t.ProfitPercent,
		Forced:        t.Forced,
	}
}

func (r tradeRow) trade() domain.Trade {
	return domain.Trade{
		EntryTime:     time.UnixMilli(r.EntryMS).UTC(),
		ExitTime:      time.UnixMilli(r.ExitMS).UTC(),
		EntryPrice:    r.EntryPrice,
		ExitPrice:     r.ExitPrice,
		Direction:     domain.Direction(r.Direction),
		Profit:        r.Profit,
		ProfitPercent: r.ProfitPercent,
		Forced:        r.Forced,
	}
}
