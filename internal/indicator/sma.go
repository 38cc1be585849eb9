package indicator

import (
	"fmt"

	"coinsignal/internal/domain"
)

// SMA returns the simple moving average of values over period. The first
// period-1 positions are unavailable. A period longer than the input yields
// an entirely unavailable series; an empty input yields an empty series.
func SMA(values []float64, period int) (Series, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: sma period %d", domain.ErrInvalidParameter, period)
	}
	out := unavailable(len(values))
	for i := period - 1; i < len(values); i++ {
		// Summing each window directly keeps results free of rolling drift.
		var sum float64
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out, nil
}
