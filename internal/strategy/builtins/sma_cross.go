// Package builtins provides the strategy implementations that ship with
// coinsignal and the closed-set constructor New.
package builtins

import (
	"fmt"

	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
	"coinsignal/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It enters
// long when the short-period SMA crosses above the long-period SMA, and
// exits when it crosses back below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Kind returns strategy.SMACrossover.
func (s *SMACross) Kind() strategy.Kind { return strategy.SMACrossover }

// MinCandles is one more than the long period: a cross needs both SMAs on
// the previous candle as well as the current one.
func (s *SMACross) MinCandles() int { return s.longPeriod + 1 }

// Prepare computes both SMAs over closes.
func (s *SMACross) Prepare(closes []float64) (strategy.Decider, error) {
	short, err := indicator.SMA(closes, s.shortPeriod)
	if err != nil {
		return nil, fmt.Errorf("short sma: %w", err)
	}
	long, err := indicator.SMA(closes, s.longPeriod)
	if err != nil {
		return nil, fmt.Errorf("long sma: %w", err)
	}

	return func(i int, side domain.Side) strategy.Action {
		prevShort, ok1 := short.At(i - 1)
		prevLong, ok2 := long.At(i - 1)
		curShort, ok3 := short.At(i)
		curLong, ok4 := long.At(i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return strategy.Hold
		}
		switch {
		case side == domain.SideFlat && prevShort <= prevLong && curShort > curLong:
			return strategy.EnterLong
		case side == domain.SideLong && prevShort >= prevLong && curShort < curLong:
			return strategy.ExitLong
		}
		return strategy.Hold
	}, nil
}
