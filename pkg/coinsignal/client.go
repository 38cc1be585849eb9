// Package coinsignal is a Go SDK for the coinsignal-server HTTP API.
package coinsignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Errors returned (wrapped in *APIError) for the server's error codes.
var (
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotFound            = errors.New("not found")
)

var codeErrors = map[string]error{
	"invalid_date_range":   ErrInvalidDateRange,
	"insufficient_history": ErrInsufficientHistory,
	"unknown_strategy":     ErrUnknownStrategy,
	"invalid_parameter":    ErrInvalidParameter,
	"data_unavailable":     ErrDataUnavailable,
	"rate_limited":         ErrRateLimited,
	"not_found":            ErrNotFound,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coinsignal: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the error code onto the package's sentinel errors.
func (e *APIError) Unwrap() error { return codeErrors[e.Code] }

// Parameters are the optional strategy settings. Zero fields take server
// defaults, so a threshold of exactly 0 cannot be requested.
type Parameters struct {
	ShortPeriod int     `json:"shortPeriod,omitempty"`
	LongPeriod  int     `json:"longPeriod,omitempty"`
	RSIPeriod   int     `json:"rsiPeriod,omitempty"`
	Oversold    float64 `json:"oversold,omitempty"`
	Overbought  float64 `json:"overbought,omitempty"`
}

// RunRequest describes one backtest.
type RunRequest struct {
	CryptoID       string     `json:"cryptoId"`
	StrategyName   string     `json:"strategyName"`
	StartDate      time.Time  `json:"-"`
	EndDate        time.Time  `json:"-"`
	Timeframe      string     `json:"timeframe,omitempty"`
	Parameters     Parameters `json:"parameters"`
	InitialCapital float64    `json:"initialCapital,omitempty"`
}

// MarshalJSON renders the dates as RFC 3339 strings.
func (r RunRequest) MarshalJSON() ([]byte, error) {
	type plain RunRequest
	return json.Marshal(struct {
		plain
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}{plain(r), r.StartDate.UTC().Format(time.RFC3339), r.EndDate.UTC().Format(time.RFC3339)})
}

// Trade is one completed round trip.
type Trade struct {
	EntryTime     time.Time `json:"entryTime"`
	ExitTime      time.Time `json:"exitTime"`
	EntryPrice    float64   `json:"entryPrice"`
	ExitPrice     float64   `json:"exitPrice"`
	Direction     string    `json:"direction"`
	Profit        float64   `json:"profit"`
	ProfitPercent float64   `json:"profitPercent"`
	Forced        bool      `json:"forced,omitempty"`
}

// Result is a backtest performance report.
type Result struct {
	ID             string    `json:"id,omitempty"`
	CryptoID       string    `json:"cryptoId,omitempty"`
	StrategyName   string    `json:"strategyName,omitempty"`
	Timeframe      string    `json:"timeframe,omitempty"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	Candles        int       `json:"candles"`
	InitialCapital float64   `json:"initialCapital"`
	FinalCapital   float64   `json:"finalCapital"`
	TotalReturn    float64   `json:"totalReturn"`
	WinRate        float64   `json:"winRate"`
	ProfitFactor   float64   `json:"profitFactor"`
	MaxDrawdown    float64   `json:"maxDrawdown"`
	Sharpe         float64   `json:"sharpe"`
	TotalTrades    int       `json:"totalTrades"`
	WinningTrades  int       `json:"winningTrades"`
	LosingTrades   int       `json:"losingTrades"`
	Trades         []Trade   `json:"trades"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Strategy describes a strategy offered by the server.
type Strategy struct {
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	Defaults Parameters `json:"defaults"`
}

// Client provides a Go SDK for interacting with the coinsignal-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new coinsignal API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RunBacktest runs a backtest on the server and returns its report.
func (c *Client) RunBacktest(ctx context.Context, req RunRequest) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, "/api/backtests", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BatchItem is one outcome of RunBatch; exactly one of Result and Err is
// set.
type BatchItem struct {
	Result *Result
	Err    error
}

// RunBatch runs several backtests concurrently on the server. Outcomes keep
// the order of reqs; a failed run does not fail the batch. workers <= 0 uses
// the server default.
func (c *Client) RunBatch(ctx context.Context, reqs []RunRequest, workers int) ([]BatchItem, error) {
	in := struct {
		Runs    []RunRequest `json:"runs"`
		Workers int          `json:"workers,omitempty"`
	}{reqs, workers}
	var out struct {
		Results []struct {
			Result *Result   `json:"result"`
			Error  *APIError `json:"error"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/backtests/batch", in, &out); err != nil {
		return nil, err
	}
	items := make([]BatchItem, len(out.Results))
	for i, r := range out.Results {
		items[i].Result = r.Result
		if r.Error != nil {
			items[i].Err = r.Error
		}
	}
	return items, nil
}

// GetBacktest retrieves a stored backtest by ID.
func (c *Client) GetBacktest(ctx context.Context, id string) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListBacktests returns the most recent stored backtests without trades. A
// non-positive limit uses the server default.
func (c *Client) ListBacktests(ctx context.Context, limit int) ([]Result, error) {
	path := "/api/backtests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Runs []Result `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Strategies lists the strategies the server offers.
func (c *Client) Strategies(ctx context.Context) ([]Strategy, error) {
	var out struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
