package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coinsignal/internal/config"
	"coinsignal/internal/feed"
	"coinsignal/internal/store"
	"coinsignal/internal/util"
)

const version = "0.1.0"

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	var cfgPath string
	root := &cobra.Command{
		Use:           "coinsignal-cli",
		Short:         "Backtest crypto trading strategies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default $COINSIGNAL_CONFIG)")

	load := loadFunc(func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		logger := util.NewLogger(cfg.Logging.Level, "text")
		util.SetDefault(logger)
		return cfg, logger, nil
	})

	root.AddCommand(
		backtestCmd(load),
		fetchCmd(load),
		strategiesCmd(),
		versionCmd(),
	)
	return root.ExecuteContext(ctx)
}

type loadFunc func() (*config.Config, *slog.Logger, error)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coinsignal-cli %s\n", version)
		},
	}
}

// alpacaLoader builds the upstream loader from config. With archiveFirst the
// Parquet archive is consulted before Alpaca.
func alpacaLoader(cfg *config.Config, archiveFirst bool) feed.Loader {
	var loader feed.Loader = feed.NewAlpacaLoader(feed.OptionsFromConfig(cfg.Alpaca))
	if archiveFirst {
		loader = store.NewArchiveLoader(store.NewParquetStore(cfg.Storage.DataDir), loader).
			SetMinCandles(cfg.Backtest.MinCandles)
	}
	return loader
}

// parseDate accepts RFC 3339 timestamps or YYYY-MM-DD days in UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
