package builtins

import (
	"fmt"

	"coinsignal/internal/domain"
	"coinsignal/internal/strategy"
)

// New builds the strategy for kind after applying defaults to p and
// validating it.
func New(kind strategy.Kind, p strategy.Params) (strategy.Strategy, error) {
	p = p.WithDefaults()
	if err := p.Validate(kind); err != nil {
		return nil, err
	}
	switch kind {
	case strategy.SMACrossover:
		return NewSMACross(p.ShortPeriod, p.LongPeriod), nil
	case strategy.RSIReversion:
		return NewRSIReversion(p.RSIPeriod, p.Oversold, p.Overbought), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, kind)
	}
}
