package strategy

import (
	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
)

// machine is the FLAT/LONG state of one run. It is mutated only inside
// Execute's loop.
type machine struct {
	pos    domain.Position
	trades []domain.Trade
}

func (m *machine) enter(c domain.Candle) {
	m.pos = domain.Position{Side: domain.SideLong, EntryPrice: c.Close, EntryTime: c.Timestamp}
}

func (m *machine) exit(c domain.Candle, forced bool) {
	m.trades = append(m.trades, domain.NewTrade(m.pos, c.Timestamp, c.Close, forced))
	m.pos = domain.Position{Side: domain.SideFlat}
}

// Execute replays candles through s and returns the completed trades in
// chronological order. A series shorter than s.MinCandles produces no
// trades. A position still open at the last candle is closed at its close.
func Execute(candles []domain.Candle, s Strategy) ([]domain.Trade, error) {
	if len(candles) < s.MinCandles() {
		return nil, nil
	}
	decide, err := s.Prepare(indicator.Closes(candles))
	if err != nil {
		return nil, err
	}

	m := &machine{pos: domain.Position{Side: domain.SideFlat}}
	last := len(candles) - 1
	for i := s.MinCandles() - 1; i <= last; i++ {
		switch decide(i, m.pos.Side) {
		case EnterLong:
			// An entry on the final candle could never exit after it.
			if !m.pos.Open() && i < last {
				m.enter(candles[i])
			}
		case ExitLong:
			if m.pos.Open() {
				m.exit(candles[i], false)
			}
		}
	}
	if m.pos.Open() {
		m.exit(candles[last], true)
	}
	return m.trades, nil
}
