package domain

import "errors"

// Backtest failure taxonomy. Every failure is terminal for a single run;
// callers match with errors.Is.
var (
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotFound            = errors.New("not found")
)

// ErrorCode returns a stable machine-readable code for err, or "internal"
// when err is not part of the taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidDateRange):
		return "invalid_date_range"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrUnknownStrategy):
		return "unknown_strategy"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
