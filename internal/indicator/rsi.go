package indicator

import (
	"fmt"

	"coinsignal/internal/domain"
)

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI returns the relative strength index of values over period.
//
// This is the rolling-window form: at index i the gains and losses of the
// last period successive differences are averaged, without Wilder
// smoothing. The first period positions are unavailable. When the average
// loss is zero the value is 100.
func RSI(values []float64, period int) (Series, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: rsi period %d", domain.ErrInvalidParameter, period)
	}
	out := unavailable(len(values))
	for i := period; i < len(values); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - values[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out, nil
}
