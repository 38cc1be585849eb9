package backtest

import (
	"math"

	"coinsignal/internal/domain"
)

const (
	// ProfitFactorNoLosses stands in for an infinite profit factor when a
	// run has winning trades and no losing ones.
	ProfitFactorNoLosses = 999.0

	// AnnualizationFactor is the fixed number of periods per year used to
	// annualize the Sharpe-like ratio. It is not derived from the timeframe
	// so that results stay comparable across runs.
	AnnualizationFactor = 252.0

	// DefaultTradeSample is the number of trades kept in a Result.
	DefaultTradeSample = 20

	// stdDevEpsilon treats rounding noise in a constant return series as
	// zero dispersion.
	stdDevEpsilon = 1e-12
)

// Evaluate reduces a chronological trade list to performance metrics.
// All metrics are computed over the full list; only afterwards is the
// returned Trades field cut to the first sampleSize entries. A
// non-positive sampleSize selects DefaultTradeSample.
func Evaluate(trades []domain.Trade, initialCapital float64, sampleSize int) *Result {
	if sampleSize <= 0 {
		sampleSize = DefaultTradeSample
	}
	res := &Result{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		TotalTrades:    len(trades),
		Trades:         []domain.Trade{},
	}
	if len(trades) == 0 {
		return res
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		switch {
		case t.Profit > 0:
			res.WinningTrades++
			grossProfit += t.Profit
		case t.Profit < 0:
			res.LosingTrades++
			grossLoss -= t.Profit
		}
	}
	res.WinRate = float64(res.WinningTrades) / float64(len(trades))
	res.ProfitFactor = profitFactor(grossProfit, grossLoss)
	res.MaxDrawdown, res.FinalCapital = drawdown(trades, initialCapital)
	res.Sharpe = sharpe(trades)
	if initialCapital > 0 {
		res.TotalReturn = (res.FinalCapital - initialCapital) / initialCapital
	}

	n := min(sampleSize, len(trades))
	res.Trades = append(res.Trades, trades[:n]...)
	return res
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return ProfitFactorNoLosses
		}
		return 0
	}
	return grossProfit / grossLoss
}

// drawdown walks running capital through the trades' absolute profits and
// returns the largest peak-to-trough decline as a fraction of the peak,
// together with the final capital. Capital at or below zero counts as a
// full drawdown.
func drawdown(trades []domain.Trade, initialCapital float64) (maxDD, final float64) {
	capital := initialCapital
	peak := initialCapital
	for _, t := range trades {
		capital += t.Profit
		if capital > peak {
			peak = capital
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - capital) / peak
		if dd > 1 {
			dd = 1
		}
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD, capital
}

// sharpe returns mean/stddev of per-trade percent returns, annualized by
// AnnualizationFactor. Population standard deviation is used.
func sharpe(trades []domain.Trade) float64 {
	n := float64(len(trades))
	var sum float64
	for _, t := range trades {
		sum += t.ProfitPercent
	}
	mean := sum / n

	var sq float64
	for _, t := range trades {
		d := t.ProfitPercent - mean
		sq += d * d
	}
	std := math.Sqrt(sq / n)
	if std < stdDevEpsilon {
		return 0
	}
	return mean / std * math.Sqrt(AnnualizationFactor)
}
