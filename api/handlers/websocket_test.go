package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/flowedit/editor/scene"
	"github.com/BaSui01/flowedit/internal/pubsub"
	"github.com/BaSui01/flowedit/session"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type connCounter struct {
	opened, closed atomic.Int32
}

func (c *connCounter) ConnectionOpened() { c.opened.Add(1) }
func (c *connCounter) ConnectionClosed() { c.closed.Add(1) }

type wsFixture struct {
	srv      *httptest.Server
	hub      *transport.Hub
	counter  *connCounter
	executor *workflow.Executor
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st := store.NewMemoryStore()
	_, err := st.SaveWorkflow(context.Background(), sampleWorkflow())
	require.NoError(t, err)

	hub := transport.NewHub(pubsub.NewMemoryBus(logger), logger)
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Stop)

	exec := workflow.NewExecutor(hub, workflow.Config{Timeout: time.Second}, logger)
	t.Cleanup(func() { _ = exec.Shutdown(context.Background()) })

	router := transport.NewRouter(logger)
	NewCommands(st, exec, nil, logger).Register(router)

	counter := &connCounter{}
	h := NewWebSocketHandler(router, hub, st, WebSocketConfig{
		OriginPatterns: []string{"*"},
		Recorder:       counter,
	}, logger)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &wsFixture{srv: srv, hub: hub, counter: counter, executor: exec}
}

func (f *wsFixture) dial(t *testing.T) *transport.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	c, err := transport.Connect(ctx, url, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func wsCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWebSocketHandler_EditorSession(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t)

	renders := make(chan []scene.Op, 16)
	c.Subscribe(session.EventRender, func(raw json.RawMessage) {
		var p struct {
			Ops []scene.Op `json:"ops"`
		}
		if json.Unmarshal(raw, &p) == nil {
			renders <- p.Ops
		}
	})

	var opened struct {
		WorkflowID string `json:"workflow_id"`
		Nodes      int    `json:"nodes"`
		Links      int    `json:"links"`
	}
	require.NoError(t, c.CallInto(wsCtx(t), "editor.open", map[string]string{"workflow_id": "wf-1"}, &opened))
	assert.Equal(t, "wf-1", opened.WorkflowID)
	assert.Equal(t, 2, opened.Nodes)
	assert.Equal(t, 1, opened.Links)

	// Render events are written before the response.
	select {
	case ops := <-renders:
		assert.NotEmpty(t, ops)
	case <-time.After(2 * time.Second):
		t.Fatal("no render event")
	}

	var added struct {
		NodeID string `json:"node_id"`
	}
	require.NoError(t, c.CallInto(wsCtx(t), "editor.addNode", map[string]any{"agentId": "planner", "x": 0, "y": 300}, &added))
	assert.Equal(t, "ui-node-2", added.NodeID)

	var saved struct {
		WorkflowID string `json:"workflow_id"`
	}
	require.NoError(t, c.CallInto(wsCtx(t), "editor.save", nil, &saved))

	var wf struct {
		OrchestrationGraph struct {
			Nodes map[string]any `json:"nodes"`
		} `json:"orchestration_graph"`
	}
	require.NoError(t, c.CallInto(wsCtx(t), "getWorkflow", map[string]string{"workflow_id": "wf-1"}, &wf))
	assert.Len(t, wf.OrchestrationGraph.Nodes, 3)
}

func TestWebSocketHandler_SessionsAreIndependent(t *testing.T) {
	f := newWSFixture(t)
	a := f.dial(t)
	b := f.dial(t)

	_, err := a.Call(wsCtx(t), "editor.open", map[string]string{"workflow_id": "wf-1"})
	require.NoError(t, err)

	var snap struct {
		Graph struct {
			Nodes map[string]any `json:"nodes"`
		} `json:"orchestration_graph"`
	}
	require.NoError(t, b.CallInto(wsCtx(t), "editor.snapshot", nil, &snap))
	assert.Empty(t, snap.Graph.Nodes)
}

func TestWebSocketHandler_ExecutionEventsReachAllClients(t *testing.T) {
	f := newWSFixture(t)
	a := f.dial(t)
	b := f.dial(t)
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan workflow.StatusEvent, 4)
	watch := func(raw json.RawMessage) {
		var ev workflow.StatusEvent
		if json.Unmarshal(raw, &ev) == nil && ev.Status == workflow.StatusCompleted {
			done <- ev
		}
	}
	a.Subscribe(workflow.EventStatus, watch)
	b.Subscribe(workflow.EventStatus, watch)

	var started struct {
		Status string `json:"status"`
	}
	require.NoError(t, a.CallInto(wsCtx(t), "executeWorkflow", map[string]string{"workflow_id": "wf-1"}, &started))
	assert.Equal(t, "started", started.Status)

	for range 2 {
		select {
		case ev := <-done:
			assert.Equal(t, "wf-1", ev.WorkflowID)
		case <-time.After(3 * time.Second):
			t.Fatal("completion event not delivered")
		}
	}
}

func TestWebSocketHandler_RecordsConnections(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t)

	_, err := c.Call(wsCtx(t), "listWorkflows", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.counter.opened.Load())

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool {
		return f.counter.closed.Load() == 1 && f.hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_UnknownMethod(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t)

	_, err := c.Call(wsCtx(t), "editor.teleport", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}
