package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/flowedit/internal/telemetry"
	"github.com/BaSui01/flowedit/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

type rpcCall struct {
	method, status string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []rpcCall
}

func (r *fakeRecorder) RecordRPC(method, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rpcCall{method, status})
}

func (r *fakeRecorder) Calls() []rpcCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rpcCall(nil), r.calls...)
}

func echoRouter(t *testing.T) *Router {
	r := NewRouter(zaptest.NewLogger(t))
	r.Handle("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var v map[string]any
		if err := DecodeParams(params, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	r.Handle("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, types.NewNotFoundError("workflow not found")
	})
	r.Handle("boom", func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	})
	return r
}

func TestRouter_DispatchSuccess(t *testing.T) {
	r := echoRouter(t)
	resp := r.Dispatch(context.Background(), Request{
		ID:     json.RawMessage(`"1"`),
		Method: "echo",
		Params: json.RawMessage(`{"a":1}`),
	})
	assert.Equal(t, json.RawMessage(`"1"`), resp.ID)
	assert.Equal(t, StatusSuccess, resp.Result.Status)
	assert.Equal(t, map[string]any{"a": float64(1)}, resp.Result.Payload)
}

func TestRouter_DispatchErrors(t *testing.T) {
	r := echoRouter(t)

	tests := []struct {
		method string
		code   types.ErrorCode
	}{
		{"missing", types.ErrMethodNotFound},
		{"fail", types.ErrNotFound},
		{"boom", types.ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := r.Dispatch(context.Background(), Request{ID: json.RawMessage(`7`), Method: tt.method})
			assert.Equal(t, StatusError, resp.Result.Status)
			ep, ok := resp.Result.Payload.(ErrorPayload)
			require.True(t, ok)
			assert.Equal(t, tt.code, ep.Code)
			assert.NotEmpty(t, ep.Message)
		})
	}
}

func TestRouter_InvalidParams(t *testing.T) {
	r := echoRouter(t)
	resp := r.Dispatch(context.Background(), Request{
		ID:     json.RawMessage(`"2"`),
		Method: "echo",
		Params: json.RawMessage(`[1,2]`),
	})
	ep := resp.Result.Payload.(ErrorPayload)
	assert.Equal(t, types.ErrInvalidRequest, ep.Code)
}

func TestRouter_RecordsMetrics(t *testing.T) {
	r := echoRouter(t)
	rec := &fakeRecorder{}
	r.SetRecorder(rec)

	r.Dispatch(context.Background(), Request{Method: "echo"})
	r.Dispatch(context.Background(), Request{Method: "fail"})
	r.Dispatch(context.Background(), Request{Method: "missing"})

	assert.Equal(t, []rpcCall{
		{"echo", StatusSuccess},
		{"fail", StatusError},
		{"missing", StatusError},
	}, rec.Calls())
}

func TestRouter_Spans(t *testing.T) {
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	spans := tracetest.NewSpanRecorder()
	p, err := telemetry.NewWithProcessor("flowedit-test", spans)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	r := echoRouter(t)
	r.Dispatch(context.Background(), Request{Method: "echo"})
	r.Dispatch(context.Background(), Request{Method: "fail"})

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "rpc echo", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, "rpc fail", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "workflow not found", ended[1].Status().Description)
}

func TestRouter_Clone(t *testing.T) {
	r := echoRouter(t)
	c := r.Clone()
	c.Handle("editor.snapshot", func(context.Context, json.RawMessage) (any, error) { return nil, nil })

	assert.Equal(t, []string{"boom", "echo", "fail"}, r.Methods())
	assert.Equal(t, []string{"boom", "echo", "editor.snapshot", "fail"}, c.Methods())
}

func TestDecodeParams(t *testing.T) {
	var v struct {
		ID string `json:"workflow_id"`
	}
	require.NoError(t, DecodeParams(nil, &v))
	require.NoError(t, DecodeParams(json.RawMessage(`null`), &v))
	require.NoError(t, DecodeParams(json.RawMessage(`{"workflow_id":"wf-1"}`), &v))
	assert.Equal(t, "wf-1", v.ID)

	err := DecodeParams(json.RawMessage(`{`), &v)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestFailure_PlainError(t *testing.T) {
	resp := Failure(nil, errors.New("disk full"))
	assert.Equal(t, ErrorPayload{Code: types.ErrInternalError, Message: "disk full"}, resp.Result.Payload)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"result":{"status":"error","payload":{"code":"INTERNAL_ERROR","message":"disk full"}}}`, string(data))
}

func TestFrameKinds(t *testing.T) {
	tests := []struct {
		raw                    string
		request, response, evt bool
	}{
		{`{"id":"1","method":"listWorkflows"}`, true, false, false},
		{`{"id":"1","result":{"status":"success"}}`, false, true, false},
		{`{"type":"logMessage","payload":{"level":"info"}}`, false, false, true},
	}
	for _, tt := range tests {
		var f Frame
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
		assert.Equal(t, tt.request, f.IsRequest(), tt.raw)
		assert.Equal(t, tt.response, f.IsResponse(), tt.raw)
		assert.Equal(t, tt.evt, f.IsEvent(), tt.raw)
	}
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, "12", idKey(json.RawMessage(`"12"`)))
	assert.Equal(t, "12", idKey(json.RawMessage(`12`)))
}
