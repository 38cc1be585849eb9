package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"coinsignal/internal/backtest"
	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"
	"coinsignal/internal/store"
)

// Full method names of the Backtest service.
const (
	MethodRun            = "/coinsignal.Backtest/Run"
	MethodListStrategies = "/coinsignal.Backtest/ListStrategies"
)

// BacktestServer is the server API for the coinsignal.Backtest service.
// Requests and responses are google.protobuf.Struct messages carrying the
// same JSON shapes as the HTTP API.
type BacktestServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Compile-time interface check.
var _ BacktestServer = (*BacktestService)(nil)

// BacktestService provides gRPC endpoints for running backtests.
type BacktestService struct {
	bt      *backtest.Backtester
	runs    store.RunStore
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewBacktestService creates a BacktestService. runs and rec may be nil.
func NewBacktestService(bt *backtest.Backtester, runs store.RunStore, rec *metrics.Recorder, log *slog.Logger) *BacktestService {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestService{bt: bt, runs: runs, metrics: rec, log: log.With("component", "grpc")}
}

// Register adds the service to a gRPC server.
func (s *BacktestService) Register(gs *grpc.Server) {
	gs.RegisterService(&backtestServiceDesc, s)
}

// Run executes one backtest described by a RunRequest-shaped struct.
func (s *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RunRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, s.fail(MethodRun, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err))
	}
	params, err := req.Params()
	if err != nil {
		return nil, s.fail(MethodRun, err)
	}
	res, err := s.bt.Run(ctx, params)
	if err != nil {
		return nil, s.fail(MethodRun, err)
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, res); err != nil {
			res.ID = ""
			s.log.Error("saving run", "error", err)
		}
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, s.fail(MethodRun, err)
	}
	s.observe(MethodRun, codes.OK)
	return out, nil
}

// ListStrategies returns the strategy catalog. The request is ignored.
func (s *BacktestService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := toStruct(StrategiesResponse{Strategies: strategyCatalog()})
	if err != nil {
		return nil, s.fail(MethodListStrategies, err)
	}
	s.observe(MethodListStrategies, codes.OK)
	return out, nil
}

func (s *BacktestService) fail(method string, err error) error {
	code := grpcCode(err)
	s.observe(method, code)
	return status.Error(code, err.Error())
}

func (s *BacktestService) observe(method string, code codes.Code) {
	if s.metrics != nil {
		s.metrics.ObserveRequest("grpc", method, int(code))
	}
}

// grpcCode maps the error taxonomy onto gRPC status codes.
func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrUnknownStrategy):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientHistory):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, domain.ErrDataUnavailable):
		return codes.Unavailable
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ---------------------------------------------------------------------------
// Struct conversion
// ---------------------------------------------------------------------------

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: "coinsignal.Backtest",
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListStrategies", Handler: listStrategiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coinsignal/backtest.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRun}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listStrategiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).ListStrategies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListStrategies}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).ListStrategies(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
