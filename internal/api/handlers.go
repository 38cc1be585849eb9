package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"
	"coinsignal/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the backtest HTTP API.
type Handler struct {
	bt      *backtest.Backtester
	runs    store.RunStore
	metrics *metrics.Recorder
	workers int
	log     *slog.Logger
}

// NewHandler creates a Handler. runs and rec may be nil, which disables
// persistence and metrics respectively.
func NewHandler(bt *backtest.Backtester, runs store.RunStore, rec *metrics.Recorder, workers int, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		bt:      bt,
		runs:    runs,
		metrics: rec,
		workers: workers,
		log:     log.With("component", "http"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtests", h.handleRun)
	mux.HandleFunc("POST /api/backtests/batch", h.handleBatch)
	mux.HandleFunc("GET /api/backtests", h.handleList)
	mux.HandleFunc("GET /api/backtests/{id}", h.handleGet)
	mux.HandleFunc("GET /api/strategies", h.handleStrategies)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// Handler returns an http.Handler with CORS and instrumentation middleware.
func (h *Handler) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return corsMiddleware(h.instrument(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if h.metrics != nil {
			h.metrics.InFlight.Inc()
			defer h.metrics.InFlight.Dec()
		}

		next.ServeHTTP(rec, r)

		// ServeMux sets Pattern on the request it dispatched.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if h.metrics != nil {
			h.metrics.ObserveRequest("http", route, rec.status)
		}
		h.log.Debug("request", "route", route, "status", rec.status, "elapsed", time.Since(start))
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	params, err := req.Params()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.bt.Run(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	h.save(r, res)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Runs) == 0 {
		writeErrorBody(w, http.StatusBadRequest, ErrorBody{Code: "invalid_parameter", Message: "runs must not be empty"})
		return
	}

	items := make([]BatchItem, len(req.Runs))
	var (
		params []backtest.Params
		index  []int
	)
	for i, rr := range req.Runs {
		p, err := rr.Params()
		if err != nil {
			items[i].Error = errorBody(err)
			continue
		}
		params = append(params, p)
		index = append(index, i)
	}

	workers := req.Workers
	if workers <= 0 || (h.workers > 0 && workers > h.workers) {
		workers = h.workers
	}
	for j, out := range h.bt.RunBatch(r.Context(), params, workers) {
		i := index[j]
		if out.Err != nil {
			items[i].Error = errorBody(out.Err)
			continue
		}
		h.save(r, out.Result)
		items[i].Result = out.Result
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: items})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, ListResponse{Runs: []backtest.Result{}})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorBody(w, http.StatusBadRequest, ErrorBody{Code: "invalid_parameter", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error("listing runs", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Runs: runs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	res, err := h.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StrategiesResponse{Strategies: strategyCatalog()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// save persists res when a RunStore is configured. Failures are logged and
// leave res.ID empty; the computed result is still returned.
func (h *Handler) save(r *http.Request, res *backtest.Result) {
	if h.runs == nil {
		return
	}
	if err := h.runs.SaveRun(r.Context(), res); err != nil {
		res.ID = ""
		h.log.Error("saving run", "symbol", res.Symbol, "strategy", res.Strategy, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Encoding helpers
// ---------------------------------------------------------------------------

var errBadJSON = errors.New("malformed JSON body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidParameter, errBadJSON, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorBody(w, httpStatus(err), *errorBody(err))
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorBody) {
	writeJSON(w, status, body)
}

func errorBody(err error) *ErrorBody {
	return &ErrorBody{Code: domain.ErrorCode(err), Message: err.Error()}
}

// httpStatus maps the error taxonomy onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
