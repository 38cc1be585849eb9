// Package domain defines the core value types shared across coinsignal:
// candles, positions, and completed trades.
package domain

import (
	"math"
	"time"
)

// Candle is one OHLC observation. Timestamps are stored at millisecond
// precision and are strictly increasing within a normalized series.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Valid reports whether the candle has positive finite prices, a
// non-negative volume and a consistent OHLC envelope.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Volume < 0 || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
		return false
	}
	lo := math.Min(c.Open, c.Close)
	hi := math.Max(c.Open, c.Close)
	return c.Low <= lo && hi <= c.High
}

// Side is the state of a position.
type Side string

const (
	SideFlat Side = "flat"
	SideLong Side = "long"
)

// Direction is the direction of a completed trade. Only long trades exist.
type Direction string

const (
	DirectionLong Direction = "long"
)

// Position is the only mutable state of a strategy run. At most one open
// position exists per run.
type Position struct {
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
}

// Open reports whether the position is long.
func (p Position) Open() bool { return p.Side == SideLong }

// Trade is a completed long round trip.
type Trade struct {
	EntryTime     time.Time `json:"entryTime"`
	ExitTime      time.Time `json:"exitTime"`
	EntryPrice    float64   `json:"entryPrice"`
	ExitPrice     float64   `json:"exitPrice"`
	Direction     Direction `json:"direction"`
	Profit        float64   `json:"profit"`
	ProfitPercent float64   `json:"profitPercent"`
	// Forced is set when the trade was closed by the end of the series
	// rather than by an exit signal.
	Forced bool `json:"forced,omitempty"`
}

// NewTrade closes a long position at the given exit and computes its
// absolute and relative profit.
func NewTrade(pos Position, exitTime time.Time, exitPrice float64, forced bool) Trade {
	profit := exitPrice - pos.EntryPrice
	return Trade{
		EntryTime:     pos.EntryTime,
		ExitTime:      exitTime,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		Direction:     DirectionLong,
		Profit:        profit,
		ProfitPercent: profit / pos.EntryPrice,
		Forced:        forced,
	}
}
