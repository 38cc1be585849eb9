// Package backtest validates backtest requests, drives the load, execute
// and evaluate pipeline, and computes performance statistics.
package backtest

import (
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/strategy"
)

// DefaultInitialCapital is used when neither Params nor Options set a
// starting capital.
const DefaultInitialCapital = 10000.0

// Params configures one backtest run.
type Params struct {
	Symbol         string          `json:"cryptoId"`
	Strategy       string          `json:"strategyName"`
	Start          time.Time       `json:"startDate"`
	End            time.Time       `json:"endDate"`
	Timeframe      string          `json:"timeframe,omitempty"`
	Settings       strategy.Params `json:"parameters,omitempty"`
	InitialCapital float64         `json:"initialCapital,omitempty"`
}

// Result holds the summary metrics produced by a backtest run. Trades is a
// bounded, oldest-first sample; TotalTrades always counts every trade.
type Result struct {
	ID             string    `json:"id,omitempty"`
	Symbol         string    `json:"cryptoId,omitempty"`
	Strategy       string    `json:"strategyName,omitempty"`
	Timeframe      string    `json:"timeframe,omitempty"`
	Start          time.Time `json:"startDate"`
	End            time.Time `json:"endDate"`
	Candles        int       `json:"candles"`
	InitialCapital float64   `json:"initialCapital"`
	FinalCapital   float64   `json:"finalCapital"`
	TotalReturn    float64   `json:"totalReturn"`

	WinRate       float64 `json:"winRate"`
	ProfitFactor  float64 `json:"profitFactor"`
	MaxDrawdown   float64 `json:"maxDrawdown"`
	Sharpe        float64 `json:"sharpe"`
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`

	Trades    []domain.Trade `json:"trades"`
	CreatedAt time.Time      `json:"createdAt"`
}
