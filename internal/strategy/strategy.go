// Package strategy defines the closed set of trading strategies, their
// parameters, and the FLAT/LONG state machine that turns a candle series
// into completed trades.
package strategy

import (
	"fmt"
	"strings"

	"coinsignal/internal/domain"
)

// Kind identifies one strategy of the closed set. New strategies are added
// as new Kind values and a new case in builtins.New.
type Kind int

const (
	SMACrossover Kind = iota + 1
	RSIReversion
)

var kindNames = map[Kind]struct{ name, slug string }{
	SMACrossover: {"SMA Crossover", "sma-cross"},
	RSIReversion: {"RSI Oversold/Overbought", "rsi"},
}

// Kinds returns every known strategy kind in declaration order.
func Kinds() []Kind {
	return []Kind{SMACrossover, RSIReversion}
}

// String returns the display name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Slug returns the short machine name of the kind.
func (k Kind) Slug() string {
	return kindNames[k].slug
}

// ParseKind resolves a display name or slug, case-insensitively.
func ParseKind(s string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		n := kindNames[k]
		if needle == strings.ToLower(n.name) || needle == n.slug {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, s)
}

// Action is the decision a strategy makes for one candle.
type Action int

const (
	Hold Action = iota
	EnterLong
	ExitLong
)

func (a Action) String() string {
	switch a {
	case EnterLong:
		return "enter-long"
	case ExitLong:
		return "exit-long"
	default:
		return "hold"
	}
}

// Decider returns the action for candle i given the current position side.
// It is only called for indices where the strategy's indicators are defined.
type Decider func(i int, side domain.Side) Action

// Strategy is implemented by every member of the closed set.
type Strategy interface {
	// Kind returns the strategy's identity.
	Kind() Kind

	// MinCandles is the shortest series on which the strategy can make at
	// least one decision.
	MinCandles() int

	// Prepare computes the strategy's indicators over closes and returns
	// the per-candle decision function.
	Prepare(closes []float64) (Decider, error)
}
