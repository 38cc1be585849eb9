package strategy

import (
	"fmt"

	"coinsignal/internal/domain"
)

// Default strategy parameters.
const (
	DefaultShortPeriod = 10
	DefaultLongPeriod  = 30
	DefaultRSIPeriod   = 14
	DefaultOversold    = 30.0
	DefaultOverbought  = 70.0
)

// Params holds the tunable numbers of every strategy. Zero fields take the
// defaults; each strategy reads only the fields it needs. Zero is therefore
// not a usable value for any field: an oversold threshold of 0 becomes
// DefaultOversold. Use a small positive value such as 0.01 instead.
type Params struct {
	ShortPeriod int     `json:"shortPeriod,omitempty" yaml:"short_period"`
	LongPeriod  int     `json:"longPeriod,omitempty" yaml:"long_period"`
	RSIPeriod   int     `json:"rsiPeriod,omitempty" yaml:"rsi_period"`
	Oversold    float64 `json:"oversold,omitempty" yaml:"oversold"`
	Overbought  float64 `json:"overbought,omitempty" yaml:"overbought"`
}

// WithDefaults returns a copy of p with zero fields filled in.
func (p Params) WithDefaults() Params {
	if p.ShortPeriod == 0 {
		p.ShortPeriod = DefaultShortPeriod
	}
	if p.LongPeriod == 0 {
		p.LongPeriod = DefaultLongPeriod
	}
	if p.RSIPeriod == 0 {
		p.RSIPeriod = DefaultRSIPeriod
	}
	if p.Oversold == 0 {
		p.Oversold = DefaultOversold
	}
	if p.Overbought == 0 {
		p.Overbought = DefaultOverbought
	}
	return p
}

// Validate checks the parameters used by kind. Call it on a defaulted copy.
func (p Params) Validate(kind Kind) error {
	switch kind {
	case SMACrossover:
		if p.ShortPeriod <= 0 || p.LongPeriod <= 0 {
			return fmt.Errorf("%w: sma periods must be positive (short=%d long=%d)",
				domain.ErrInvalidParameter, p.ShortPeriod, p.LongPeriod)
		}
		if p.ShortPeriod >= p.LongPeriod {
			return fmt.Errorf("%w: short period %d must be below long period %d",
				domain.ErrInvalidParameter, p.ShortPeriod, p.LongPeriod)
		}
	case RSIReversion:
		if p.RSIPeriod <= 0 {
			return fmt.Errorf("%w: rsi period %d", domain.ErrInvalidParameter, p.RSIPeriod)
		}
		if p.Oversold < 0 || p.Overbought > 100 || p.Oversold >= p.Overbought {
			return fmt.Errorf("%w: rsi thresholds oversold=%g overbought=%g",
				domain.ErrInvalidParameter, p.Oversold, p.Overbought)
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, kind)
	}
	return nil
}
