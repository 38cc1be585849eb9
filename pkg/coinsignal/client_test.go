package coinsignal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8080")
	}
	if c.httpClient == nil {
		t.Fatal("httpClient is nil")
	}
}

func TestRunBacktest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/backtests" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"run-1","cryptoId":"BTC/USD","strategyName":"SMA Crossover","totalTrades":2,"trades":[{"direction":"long","profit":12.5}]}`))
	}))
	defer srv.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := NewClient(srv.URL).RunBacktest(context.Background(), RunRequest{
		CryptoID:     "BTC/USD",
		StrategyName: "SMA Crossover",
		StartDate:    start,
		EndDate:      start.AddDate(0, 3, 0),
		Parameters:   Parameters{ShortPeriod: 5},
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}

	if got["startDate"] != "2024-01-01T00:00:00Z" {
		t.Errorf("startDate = %v, want 2024-01-01T00:00:00Z", got["startDate"])
	}
	if got["endDate"] != "2024-04-01T00:00:00Z" {
		t.Errorf("endDate = %v, want 2024-04-01T00:00:00Z", got["endDate"])
	}
	if got["cryptoId"] != "BTC/USD" {
		t.Errorf("cryptoId = %v, want BTC/USD", got["cryptoId"])
	}
	params, _ := got["parameters"].(map[string]any)
	if params["shortPeriod"] != float64(5) {
		t.Errorf("parameters.shortPeriod = %v, want 5", params["shortPeriod"])
	}

	if res.ID != "run-1" || res.TotalTrades != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Trades) != 1 || res.Trades[0].Profit != 12.5 {
		t.Errorf("trades = %+v", res.Trades)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusBadRequest, `{"code":"unknown_strategy","error":"unknown strategy: \"x\""}`, ErrUnknownStrategy},
		{http.StatusUnprocessableEntity, `{"code":"insufficient_history","error":"insufficient history"}`, ErrInsufficientHistory},
		{http.StatusTooManyRequests, `{"code":"rate_limited","error":"rate limited"}`, ErrRateLimited},
		{http.StatusNotFound, `{"code":"not_found","error":"not found"}`, ErrNotFound},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		}))

		_, err := NewClient(srv.URL).GetBacktest(context.Background(), "abc")
		srv.Close()

		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
			t.Errorf("status %d: err = %#v, want *APIError with that status", tt.status, err)
		}
	}
}

func TestAPIErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Strategies(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "upstream exploded" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "upstream exploded")
	}
	if errors.Unwrap(apiErr) != nil {
		t.Errorf("Unwrap = %v, want nil", errors.Unwrap(apiErr))
	}
}

func TestListBacktestsLimit(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"runs":[{"id":"b"},{"id":"a"}]}`))
	}))
	defer srv.Close()

	runs, err := NewClient(srv.URL).ListBacktests(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListBacktests: %v", err)
	}
	if query != "limit=2" {
		t.Errorf("query = %q, want limit=2", query)
	}
	if len(runs) != 2 || runs[0].ID != "b" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/backtests/batch" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"result":{"id":"ok"}},{"error":{"code":"data_unavailable","error":"data unavailable"}}]}`))
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL).RunBatch(context.Background(), []RunRequest{{}, {}}, 2)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Err != nil || items[0].Result == nil || items[0].Result.ID != "ok" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if !errors.Is(items[1].Err, ErrDataUnavailable) {
		t.Errorf("items[1].Err = %v, want ErrDataUnavailable", items[1].Err)
	}
}
