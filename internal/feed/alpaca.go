package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sony/gobreaker"

	"coinsignal/internal/config"
	"coinsignal/internal/domain"
	"coinsignal/internal/util"
)

// Compile-time interface check.
var _ Loader = (*AlpacaLoader)(nil)

// cryptoBarsClient is the subset of the Alpaca market-data client used here.
type cryptoBarsClient interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// AlpacaOptions configures an AlpacaLoader.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	RateLimitPerMin int
	// MaxAttempts bounds retries of transient failures at this boundary.
	// Rate-limit responses are never retried.
	MaxAttempts int
	RetryDelay  time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// OptionsFromConfig maps the alpaca config section onto AlpacaOptions.
func OptionsFromConfig(c config.Alpaca) AlpacaOptions {
	return AlpacaOptions{
		APIKey:          c.APIKey,
		APISecret:       c.APISecret,
		DataURL:         c.DataURL,
		RateLimitPerMin: c.RateLimitPerMin,
		MaxAttempts:     c.MaxAttempts,
		RetryDelay:      c.RetryDelay,
		BreakerFailures: uint32(c.BreakerFailures),
		BreakerTimeout:  c.BreakerTimeout,
	}
}

// AlpacaLoader loads crypto bars from the Alpaca market-data API.
type AlpacaLoader struct {
	client  cryptoBarsClient
	limiter *util.RateLimiter
	breaker *gobreaker.CircuitBreaker
	opts    AlpacaOptions
	log     *slog.Logger
}

// NewAlpacaLoader creates an AlpacaLoader with the given credentials and
// pacing.
func NewAlpacaLoader(opts AlpacaOptions) *AlpacaLoader {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return newAlpacaLoader(marketdata.NewClient(clientOpts), opts)
}

func newAlpacaLoader(client cryptoBarsClient, opts AlpacaOptions) *AlpacaLoader {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 60 * time.Second
	}

	log := slog.Default().With("loader", "alpaca")
	st := gobreaker.Settings{
		Name:    "alpaca-crypto-bars",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &AlpacaLoader{
		client:  client,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin),
		breaker: gobreaker.NewCircuitBreaker(st),
		opts:    opts,
		log:     log,
	}
}

// LoadCandles fetches bars for symbol within [start, end]. A bare base asset
// such as "BTC" is quoted in USD.
func (l *AlpacaLoader) LoadCandles(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Candle, error) {
	pair := alpacaSymbol(symbol)
	timeFrame, err := alpacaTimeFrame(tf)
	if err != nil {
		return nil, err
	}

	var bars []marketdata.CryptoBar
	err = util.Retry(ctx, l.opts.MaxAttempts, l.opts.RetryDelay, func() error {
		if err := l.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		out, err := l.breaker.Execute(func() (any, error) {
			return l.client.GetCryptoBars(pair, marketdata.GetCryptoBarsRequest{
				TimeFrame: timeFrame,
				Start:     start,
				End:       end,
			})
		})
		if err != nil {
			if isRateLimited(err) || errors.Is(err, gobreaker.ErrOpenState) {
				return util.Permanent(err)
			}
			return err
		}
		bars = out.([]marketdata.CryptoBar)
		return nil
	})
	if err != nil {
		l.log.Warn("fetching crypto bars failed", "symbol", pair, "timeframe", string(tf), "error", err)
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: alpaca %s: %v", domain.ErrRateLimited, pair, err)
		}
		return nil, fmt.Errorf("%w: alpaca %s: %v", domain.ErrDataUnavailable, pair, err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	l.log.Debug("fetched crypto bars", "symbol", pair, "timeframe", string(tf), "bars", len(candles))
	return candles, nil
}

func isRateLimited(err error) bool {
	var apiErr *alpaca.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func alpacaSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.Contains(s, "/") {
		s += "/USD"
	}
	return s
}

func alpacaTimeFrame(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case domain.Timeframe1m:
		return marketdata.OneMin, nil
	case domain.Timeframe5m:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.Timeframe15m:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case domain.Timeframe1h:
		return marketdata.OneHour, nil
	case domain.Timeframe4h:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case domain.Timeframe1d, "":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidParameter, tf)
	}
}
