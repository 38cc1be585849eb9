package api

import (
	"fmt"
	"strings"
	"time"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"
	"coinsignal/internal/strategy"
)

// RunRequest is the JSON body of a backtest request. Dates accept RFC 3339
// timestamps or plain YYYY-MM-DD days (UTC midnight).
type RunRequest struct {
	CryptoID       string          `json:"cryptoId"`
	StrategyName   string          `json:"strategyName"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	Timeframe      string          `json:"timeframe,omitempty"`
	Parameters     strategy.Params `json:"parameters,omitempty"`
	InitialCapital float64         `json:"initialCapital,omitempty"`
}

// BatchRequest runs several backtests at once.
type BatchRequest struct {
	Runs    []RunRequest `json:"runs"`
	Workers int          `json:"workers,omitempty"`
}

// BatchItem is one entry of a BatchResponse; exactly one of Result and
// Error is set.
type BatchItem struct {
	Result *backtest.Result `json:"result,omitempty"`
	Error  *ErrorBody       `json:"error,omitempty"`
}

// BatchResponse lists batch outcomes in request order.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// ListResponse wraps stored runs.
type ListResponse struct {
	Runs []backtest.Result `json:"runs"`
}

// StrategyInfo describes one available strategy.
type StrategyInfo struct {
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Defaults strategy.Params `json:"defaults"`
}

// StrategiesResponse lists the available strategies.
type StrategiesResponse struct {
	Strategies []StrategyInfo `json:"strategies"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// Params converts the request into backtest parameters.
func (r RunRequest) Params() (backtest.Params, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return backtest.Params{}, fmt.Errorf("%w: startDate: %v", domain.ErrInvalidParameter, err)
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return backtest.Params{}, fmt.Errorf("%w: endDate: %v", domain.ErrInvalidParameter, err)
	}
	return backtest.Params{
		Symbol:         r.CryptoID,
		Strategy:       r.StrategyName,
		Start:          start,
		End:            end,
		Timeframe:      r.Timeframe,
		Settings:       r.Parameters,
		InitialCapital: r.InitialCapital,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// strategyCatalog lists every strategy with its defaults.
func strategyCatalog() []StrategyInfo {
	defaults := strategy.Params{}.WithDefaults()
	kinds := strategy.Kinds()
	out := make([]StrategyInfo, 0, len(kinds))
	for _, k := range kinds {
		info := StrategyInfo{Name: k.String(), Slug: k.Slug()}
		switch k {
		case strategy.SMACrossover:
			info.Defaults = strategy.Params{ShortPeriod: defaults.ShortPeriod, LongPeriod: defaults.LongPeriod}
		case strategy.RSIReversion:
			info.Defaults = strategy.Params{RSIPeriod: defaults.RSIPeriod, Oversold: defaults.Oversold, Overbought: defaults.Overbought}
		}
		out = append(out, info)
	}
	return out
}
