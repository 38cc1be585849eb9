package backtest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Outcome pairs one batch entry with its result or failure.
type Outcome struct {
	Params Params
	Result *Result
	Err    error
}

// RunBatch runs independent backtests on at most workers goroutines and
// returns the outcomes in input order. A failed run does not stop the
// others. A non-positive workers uses GOMAXPROCS.
func (bt *Backtester) RunBatch(ctx context.Context, params []Params, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Outcome, len(params))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range params {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = Outcome{Params: p, Err: err}
				return nil
			}
			res, err := bt.Run(ctx, p)
			out[i] = Outcome{Params: p, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
