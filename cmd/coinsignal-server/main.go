package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"coinsignal/internal/api"
	"coinsignal/internal/backtest"
	"coinsignal/internal/config"
	"coinsignal/internal/feed"
	"coinsignal/internal/metrics"
	"coinsignal/internal/store"
	"coinsignal/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (default $COINSIGNAL_CONFIG)")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		log.Fatalf("coinsignal-server: %v", err)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var loader feed.Loader = feed.NewAlpacaLoader(feed.OptionsFromConfig(cfg.Alpaca))
	if cfg.Backtest.ArchiveFirst {
		loader = store.NewArchiveLoader(store.NewParquetStore(cfg.Storage.DataDir), loader).
			SetMinCandles(cfg.Backtest.MinCandles)
	}

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening sqlite store: %w", err)
	}
	defer runs.Close()

	rec := metrics.NewRecorder()
	bt := backtest.NewBacktester(loader, backtest.Options{
		MinCandles:     cfg.Backtest.MinCandles,
		TradeSample:    cfg.Backtest.TradeSample,
		InitialCapital: cfg.Backtest.InitialCapital,
		Observer:       rec,
		Logger:         logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("coinsignal-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"grpcPort", cfg.Server.GRPCPort,
		"archiveFirst", cfg.Backtest.ArchiveFirst,
	)
	return api.NewServer(cfg, bt, runs, rec, logger).ListenAndServe(ctx)
}
