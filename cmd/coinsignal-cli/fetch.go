package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coinsignal/internal/domain"
	"coinsignal/internal/gather"
	"coinsignal/internal/store"
)

func fetchCmd(load loadFunc) *cobra.Command {
	var (
		symbols   string
		timeframe string
		startDate string
		endDate   string
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download candles from Alpaca into the local Parquet archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			syms := splitList(symbols)
			if len(syms) == 0 {
				syms = cfg.Gather.Symbols
			}
			if len(syms) == 0 {
				return fmt.Errorf("no symbols: pass --symbols or set gather.symbols")
			}
			if timeframe == "" {
				timeframe = cfg.Gather.Timeframe
			}
			tf, err := domain.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			if startDate == "" {
				startDate = cfg.Gather.StartDate
			}
			if startDate == "" {
				return fmt.Errorf("no start date: pass --start or set gather.start_date")
			}
			start, err := parseDate(startDate)
			if err != nil {
				return err
			}
			// Default end is today's UTC midnight so reruns on one day share a
			// progress key.
			end := time.Now().UTC().Truncate(24 * time.Hour)
			if endDate != "" {
				if end, err = parseDate(endDate); err != nil {
					return err
				}
			}
			if workers <= 0 {
				workers = cfg.Gather.MaxWorkers
			}

			archive := store.NewParquetStore(cfg.Storage.DataDir)
			g := gather.NewCandleGatherer(alpacaLoader(cfg, false), archive, gather.CandleGathererConfig{
				Symbols:     syms,
				Timeframe:   tf,
				Range:       gather.DateRange{Start: start, End: end},
				MaxWorkers:  workers,
				ProgressDir: gather.ProgressDir(cfg.Storage.DataDir, tf),
			})
			if err := g.Run(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", g.Name(), err)
			}

			stored, err := archive.ListSymbols(cmd.Context(), tf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archive %s holds %d symbols\n", tf, len(stored))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&symbols, "symbols", "", "comma-separated pairs (default gather.symbols)")
	f.StringVar(&timeframe, "timeframe", "", "candle timeframe (default gather.timeframe)")
	f.StringVar(&startDate, "start", "", "first day to fetch (default gather.start_date)")
	f.StringVar(&endDate, "end", "", "end of the range (default today, UTC)")
	f.IntVar(&workers, "workers", 0, "concurrent symbols (default gather.max_workers)")
	return cmd
}
