package builtins

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsignal/internal/domain"
	"coinsignal/internal/strategy"
)

func series(closes []float64) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(strategy.Kind(42), strategy.Params{})
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestNewInvalidParams(t *testing.T) {
	_, err := New(strategy.SMACrossover, strategy.Params{ShortPeriod: 40, LongPeriod: 20})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestNewDefaults(t *testing.T) {
	s, err := New(strategy.SMACrossover, strategy.Params{})
	require.NoError(t, err)
	assert.Equal(t, strategy.SMACrossover, s.Kind())
	assert.Equal(t, 31, s.MinCandles())

	s, err = New(strategy.RSIReversion, strategy.Params{})
	require.NoError(t, err)
	assert.Equal(t, strategy.RSIReversion, s.Kind())
	assert.Equal(t, 15, s.MinCandles())
}

func TestSMACrossFlatSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	trades, err := strategy.Execute(series(closes), NewSMACross(10, 30))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

// Thirty flat closes followed by a monotonic climb to 134: the short SMA
// crosses above the long SMA exactly once, at index 30, and never back.
func TestSMACrossSingleUpwardCross(t *testing.T) {
	closes := make([]float64, 0, 35)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 110, 118, 125, 130, 134)
	candles := series(closes)

	trades, err := strategy.Execute(candles, NewSMACross(10, 30))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, 110.0, tr.EntryPrice)
	assert.Equal(t, candles[30].Timestamp, tr.EntryTime)
	assert.Equal(t, 134.0, tr.ExitPrice)
	assert.Equal(t, candles[34].Timestamp, tr.ExitTime)
	assert.True(t, tr.Forced)
	assert.InDelta(t, 24.0, tr.Profit, 1e-12)
}

func TestSMACrossRoundTrip(t *testing.T) {
	// Flat, up leg, then a down leg deep enough to cross back below.
	var closes []float64
	for i := 0; i < 30; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 100+float64(i)*2)
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 120-float64(i)*3)
	}

	trades, err := strategy.Execute(series(closes), NewSMACross(10, 30))
	require.NoError(t, err)
	require.NotEmpty(t, trades)
	assert.False(t, trades[0].Forced, "down leg should produce a signalled exit")
	assert.Equal(t, 102.0, trades[0].EntryPrice)
}

func TestRSIReversionTrades(t *testing.T) {
	// Sell-off drives RSI to 0, rally drives it to 100.
	var closes []float64
	for i := 0; i < 20; i++ {
		closes = append(closes, 200-float64(i)*5)
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 105+float64(i)*5)
	}

	trades, err := strategy.Execute(series(closes), NewRSIReversion(14, 30, 70))
	require.NoError(t, err)
	require.NotEmpty(t, trades)

	first := trades[0]
	// First RSI value (index 14) is 0, so the entry is at closes[14].
	assert.Equal(t, closes[14], first.EntryPrice)
	assert.Greater(t, first.ExitPrice, first.EntryPrice)
}

func TestSinglePositionInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		closes := make([]float64, 120+rng.Intn(200))
		price := 100.0
		for i := range closes {
			price *= 1 + (rng.Float64()-0.5)*0.08
			closes[i] = price
		}
		candles := series(closes)

		for _, kind := range strategy.Kinds() {
			s, err := New(kind, strategy.Params{})
			require.NoError(t, err)
			trades, err := strategy.Execute(candles, s)
			require.NoError(t, err)

			forced := 0
			for i, tr := range trades {
				assert.True(t, tr.ExitTime.After(tr.EntryTime), "trade %d exit not after entry", i)
				if i > 0 {
					assert.False(t, tr.EntryTime.Before(trades[i-1].ExitTime),
						"trade %d opened before trade %d closed", i, i-1)
				}
				if tr.Forced {
					forced++
					assert.Equal(t, len(trades)-1, i, "only the last trade may be forced")
				}
			}
			assert.LessOrEqual(t, forced, 1)
		}
	}
}
