package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/flowedit/internal/telemetry"
	"github.com/BaSui01/flowedit/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HandlerFunc serves one command. The returned value becomes the success
// payload; an error becomes an error result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// RPCRecorder observes dispatched commands.
type RPCRecorder interface {
	RecordRPC(method, status string, duration time.Duration)
}

// Router maps command names to handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	recorder RPCRecorder
	logger   *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.With(zap.String("component", "rpc_router")),
	}
}

// Handle registers h for method, replacing any previous handler.
func (r *Router) Handle(method string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Methods returns the registered command names, sorted.
func (r *Router) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// Clone returns a router with the same handlers and recorder. Handlers
// added to the clone do not affect r.
func (r *Router) Clone() *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Router{
		handlers: maps.Clone(r.handlers),
		recorder: r.recorder,
		logger:   r.logger,
	}
}

// SetRecorder installs the metrics recorder.
func (r *Router) SetRecorder(rec RPCRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Dispatch runs the handler for req and wraps its outcome.
func (r *Router) Dispatch(ctx context.Context, req Request) (resp Response) {
	r.mu.RLock()
	h, ok := r.handlers[req.Method]
	rec := r.recorder
	r.mu.RUnlock()

	ctx, span := telemetry.Tracer("transport").Start(ctx, "rpc "+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", req.Method)),
	)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panic", zap.String("method", req.Method), zap.Any("panic", p))
			resp = Failure(req.ID, types.NewInternalError(fmt.Sprintf("handler panic: %v", p)))
		}
		span.SetAttributes(attribute.String("rpc.status", resp.Result.Status))
		if resp.Result.Status == StatusError {
			if ep, ok := resp.Result.Payload.(ErrorPayload); ok {
				span.SetStatus(codes.Error, ep.Message)
				span.SetAttributes(attribute.String("rpc.error_code", string(ep.Code)))
			}
		}
		span.End()
		if rec != nil {
			rec.RecordRPC(req.Method, resp.Result.Status, time.Since(start))
		}
	}()

	if !ok {
		return Failure(req.ID, types.NewError(types.ErrMethodNotFound, "unknown method: "+req.Method))
	}

	payload, err := h(ctx, req.Params)
	if err != nil {
		span.RecordError(err)
		r.logger.Debug("command failed", zap.String("method", req.Method), zap.Error(err))
		return Failure(req.ID, err)
	}
	return Success(req.ID, payload)
}

// Serve reads requests from conn and answers them in order until the
// peer closes or ctx ends. A clean close returns nil.
func (r *Router) Serve(ctx context.Context, conn *Conn) error {
	ctx = WithConn(ctx, conn)
	for {
		f, err := conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrBadFrame) {
				r.logger.Warn("malformed frame", zap.Error(err))
				if werr := conn.WriteJSON(ctx, Failure(nil, types.NewInvalidRequestError(err.Error()))); werr != nil {
					return werr
				}
				continue
			}
			if IsNormalClosure(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !f.IsRequest() {
			r.logger.Debug("ignoring non-request frame")
			continue
		}
		if err := conn.WriteJSON(ctx, r.Dispatch(ctx, f.Request())); err != nil {
			return err
		}
	}
}

// DecodeParams unmarshals params into v. Empty params leave v untouched.
func DecodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return types.NewInvalidRequestError("invalid params").WithCause(err)
	}
	return nil
}
