package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"coinsignal/internal/backtest"
	"coinsignal/internal/strategy"
	"coinsignal/pkg/coinsignal"
)

func backtestCmd(load loadFunc) *cobra.Command {
	var (
		symbol       string
		strategyName string
		startDate    string
		endDate      string
		timeframe    string
		capital      float64
		server       string
		archiveFirst bool
		asJSON       bool
		settings     strategy.Params
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one backtest locally or against a coinsignal-server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDate(startDate)
			if err != nil {
				return err
			}
			end, err := parseDate(endDate)
			if err != nil {
				return err
			}

			var res *coinsignal.Result
			if server != "" {
				res, err = coinsignal.NewClient(server).RunBacktest(cmd.Context(), coinsignal.RunRequest{
					CryptoID:       symbol,
					StrategyName:   strategyName,
					StartDate:      start,
					EndDate:        end,
					Timeframe:      timeframe,
					InitialCapital: capital,
					Parameters: coinsignal.Parameters{
						ShortPeriod: settings.ShortPeriod,
						LongPeriod:  settings.LongPeriod,
						RSIPeriod:   settings.RSIPeriod,
						Oversold:    settings.Oversold,
						Overbought:  settings.Overbought,
					},
				})
				if err != nil {
					return err
				}
			} else {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				bt := backtest.NewBacktester(alpacaLoader(cfg, archiveFirst || cfg.Backtest.ArchiveFirst), backtest.Options{
					MinCandles:     cfg.Backtest.MinCandles,
					TradeSample:    cfg.Backtest.TradeSample,
					InitialCapital: cfg.Backtest.InitialCapital,
					Logger:         logger,
				})
				local, err := bt.Run(cmd.Context(), backtest.Params{
					Symbol:         symbol,
					Strategy:       strategyName,
					Start:          start,
					End:            end,
					Timeframe:      timeframe,
					Settings:       settings,
					InitialCapital: capital,
				})
				if err != nil {
					return err
				}
				if res, err = toReport(local); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printReport(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&symbol, "symbol", "BTC/USD", "crypto pair, e.g. BTC/USD")
	f.StringVar(&strategyName, "strategy", strategy.SMACrossover.String(), "strategy name or slug")
	f.StringVar(&startDate, "start", "", "start date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&endDate, "end", "", "end date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&timeframe, "timeframe", "1d", "candle timeframe (1m, 5m, 15m, 1h, 4h, 1d)")
	f.Float64Var(&capital, "capital", 0, "initial capital (0 uses the configured default)")
	f.IntVar(&settings.ShortPeriod, "short", 0, "SMA crossover short period")
	f.IntVar(&settings.LongPeriod, "long", 0, "SMA crossover long period")
	f.IntVar(&settings.RSIPeriod, "rsi-period", 0, "RSI period")
	f.Float64Var(&settings.Oversold, "oversold", 0, "RSI oversold threshold (0 uses the default of 30)")
	f.Float64Var(&settings.Overbought, "overbought", 0, "RSI overbought threshold (0 uses the default of 70)")
	f.StringVar(&server, "server", "", "coinsignal-server base URL; empty runs locally")
	f.BoolVar(&archiveFirst, "archive-first", false, "read candles from the local archive before Alpaca")
	f.BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

// toReport converts a local result into the SDK report type, which shares
// its JSON shape.
func toReport(res *backtest.Result) (*coinsignal.Result, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var out coinsignal.Result
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printReport(w io.Writer, r *coinsignal.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if r.ID != "" {
		fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	}
	fmt.Fprintf(tw, "Symbol\t%s\n", r.CryptoID)
	fmt.Fprintf(tw, "Strategy\t%s\n", r.StrategyName)
	fmt.Fprintf(tw, "Range\t%s .. %s (%s, %d candles)\n",
		r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly), r.Timeframe, r.Candles)
	fmt.Fprintf(tw, "Capital\t%.2f -> %.2f\n", r.InitialCapital, r.FinalCapital)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", r.TotalReturn*100)
	fmt.Fprintf(tw, "Trades\t%d (%d won, %d lost)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", r.WinRate*100)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", r.ProfitFactor)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(tw, "Sharpe\t%.3f\n", r.Sharpe)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Trades) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ENTRY\tEXIT\tENTRY PX\tEXIT PX\tPROFIT\tPCT\t")
	for _, t := range r.Trades {
		forced := ""
		if t.Forced {
			forced = "*"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%.4f\t%.4f\t%.2f\t%.2f%%\t\n",
			t.EntryTime.Format(time.DateOnly), t.ExitTime.Format(time.DateOnly), forced,
			t.EntryPrice, t.ExitPrice, t.Profit, t.ProfitPercent*100)
	}
	return tw.Flush()
}
