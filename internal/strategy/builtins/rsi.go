package builtins

import (
	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
	"coinsignal/internal/strategy"
)

var _ strategy.Strategy = (*RSIReversion)(nil)

// RSIReversion buys when RSI drops below the oversold threshold and sells
// when it rises above the overbought threshold.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversion creates an RSI strategy with the given lookback and
// thresholds.
func NewRSIReversion(period int, oversold, overbought float64) *RSIReversion {
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought}
}

// Kind returns strategy.RSIReversion.
func (s *RSIReversion) Kind() strategy.Kind { return strategy.RSIReversion }

// MinCandles is period+1: RSI needs period differences.
func (s *RSIReversion) MinCandles() int { return s.period + 1 }

// Prepare computes RSI over closes.
func (s *RSIReversion) Prepare(closes []float64) (strategy.Decider, error) {
	rsi, err := indicator.RSI(closes, s.period)
	if err != nil {
		return nil, err
	}
	return func(i int, side domain.Side) strategy.Action {
		v, ok := rsi.At(i)
		if !ok {
			return strategy.Hold
		}
		if side == domain.SideFlat && v < s.oversold {
			return strategy.EnterLong
		}
		if side == domain.SideLong && v > s.overbought {
			return strategy.ExitLong
		}
		return strategy.Hold
	}, nil
}
