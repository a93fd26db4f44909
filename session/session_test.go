package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/flowedit/editor"
	"github.com/BaSui01/flowedit/editor/scene"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type pushed struct {
	typ     string
	payload any
}

type fakePusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *fakePusher) SendEvent(_ context.Context, typ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{typ, payload})
	return nil
}

func (p *fakePusher) ofType(typ string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, e := range p.events {
		if e.typ == typ {
			out = append(out, e.payload)
		}
	}
	return out
}

func (p *fakePusher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	s      *Session
	router *transport.Router
	store  *store.MemoryStore
	push   *fakePusher
}

func seedWorkflow() *types.Workflow {
	wf := types.NewWorkflow("research")
	wf.ID = "wf-1"
	wf.Agents["planner"] = types.NewAgent("planner", "Planner")
	wf.Agents["writer"] = types.NewAgent("writer", "Writer")
	wf.OrchestrationGraph.Nodes["ui-node-0"] = types.GraphNode{ID: "ui-node-0", AgentID: "planner"}
	wf.OrchestrationGraph.Nodes["ui-node-1"] = types.GraphNode{ID: "ui-node-1", AgentID: "writer", X: 300}
	wf.ViewState.NodeIDCounter = 2
	return wf
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	_, err := st.SaveWorkflow(context.Background(), seedWorkflow())
	require.NoError(t, err)

	push := &fakePusher{}
	logger := zaptest.NewLogger(t)
	s := New(push, st, Options{}, logger)
	r := transport.NewRouter(logger)
	s.Register(r)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return &fixture{s: s, router: r, store: st, push: push}
}

func (f *fixture) call(t *testing.T, method string, params any) transport.Result {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp := f.router.Dispatch(ctx, transport.Request{ID: json.RawMessage(`"1"`), Method: method, Params: raw})
	return resp.Result
}

func (f *fixture) ok(t *testing.T, method string, params any) any {
	t.Helper()
	res := f.call(t, method, params)
	require.Equal(t, transport.StatusSuccess, res.Status, "payload: %+v", res.Payload)
	return res.Payload
}

func errorCode(t *testing.T, res transport.Result) types.ErrorCode {
	t.Helper()
	require.Equal(t, transport.StatusError, res.Status)
	p, ok := res.Payload.(transport.ErrorPayload)
	require.True(t, ok)
	return p.Code
}

func (f *fixture) snapshot(t *testing.T) (types.OrchestrationGraph, types.ViewState) {
	t.Helper()
	out := f.ok(t, "editor.snapshot", nil).(map[string]any)
	return out["orchestration_graph"].(types.OrchestrationGraph), out["view_state"].(types.ViewState)
}

func headerOf(nodeID string) editor.Target {
	return editor.Target{Kind: editor.TargetNodeHeader, NodeID: nodeID}
}

func TestSession_OpenRendersWorkflow(t *testing.T) {
	f := newFixture(t)

	out := f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"}).(map[string]any)
	assert.Equal(t, "wf-1", out["workflow_id"])
	assert.Equal(t, 2, out["nodes"])
	assert.Equal(t, ViewEditor, f.s.Views().Current())

	views := f.push.ofType(EventView)
	require.Len(t, views, 1)
	assert.Equal(t, map[string]string{"view": ViewEditor, "previous": ViewWorkflows}, views[0])

	renders := f.push.ofType(EventRender)
	require.NotEmpty(t, renders)
	created := map[string]bool{}
	for _, r := range renders {
		for _, op := range r.(RenderPayload).Ops {
			if op.Op == scene.OpNodeCreate {
				created[op.ID] = true
			}
		}
	}
	assert.True(t, created["ui-node-0"])
	assert.True(t, created["ui-node-1"])
}

func TestSession_OpenErrors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, types.ErrNotFound, errorCode(t, f.call(t, "editor.open", map[string]string{"workflow_id": "missing"})))
	assert.Equal(t, types.ErrInvalidRequest, errorCode(t, f.call(t, "editor.open", nil)))
	assert.Equal(t, types.ErrInvalidRequest, errorCode(t, f.call(t, "editor.open", "not an object")))
	assert.Equal(t, ViewWorkflows, f.s.Views().Current())
}

func TestSession_AddNode(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, "editor.addNode", map[string]any{"agentId": "writer"})
	assert.Equal(t, types.ErrConflict, errorCode(t, res))

	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})

	out := f.ok(t, "editor.addNode", map[string]any{"agentId": "writer", "x": 40.0, "y": 80.0}).(map[string]any)
	assert.Equal(t, "ui-node-2", out["node_id"])
	assert.Equal(t, 40.0, out["x"])
	assert.Equal(t, 80.0, out["y"])

	res = f.call(t, "editor.addNode", map[string]any{"agentId": "ghost"})
	assert.Equal(t, types.ErrNotFound, errorCode(t, res))

	graph, _ := f.snapshot(t)
	assert.Len(t, graph.Nodes, 3)
	assert.Equal(t, "writer", graph.Nodes["ui-node-2"].AgentID)
}

func TestSession_PointerDragsNode(t *testing.T) {
	f := newFixture(t)
	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})

	out := f.ok(t, "editor.pointer", map[string]any{
		"kind": PointerDown, "x": 100, "y": 100, "button": editor.ButtonPrimary, "target": headerOf("ui-node-0"),
	}).(map[string]string)
	assert.Equal(t, string(editor.GestureDraggingNode), out["gesture"])

	f.ok(t, "editor.pointer", map[string]any{"kind": PointerMove, "x": 130, "y": 110})
	out = f.ok(t, "editor.pointer", map[string]any{"kind": PointerUp, "x": 150, "y": 130}).(map[string]string)
	assert.Equal(t, string(editor.GestureIdle), out["gesture"])

	graph, _ := f.snapshot(t)
	assert.Equal(t, 50.0, graph.Nodes["ui-node-0"].X)
	assert.Equal(t, 30.0, graph.Nodes["ui-node-0"].Y)

	res := f.call(t, "editor.pointer", map[string]any{"kind": "hover"})
	assert.Equal(t, types.ErrInvalidRequest, errorCode(t, res))
}

func TestSession_DoubleClickOpensAgentView(t *testing.T) {
	f := newFixture(t)
	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})

	f.ok(t, "editor.pointer", map[string]any{"kind": PointerDoubleClick, "target": headerOf("ui-node-1")})

	assert.Equal(t, ViewAgent, f.s.Views().Current())
	edits := f.push.ofType(EventEditAgent)
	require.Len(t, edits, 1)
	assert.Equal(t, map[string]string{"agent_id": "writer"}, edits[0])
}

func TestSession_Wheel(t *testing.T) {
	f := newFixture(t)

	out := f.ok(t, "editor.wheel", map[string]any{"x": 0, "y": 0, "deltaY": -100}).(map[string]float64)
	assert.InDelta(t, 1.1, out["zoom"], 1e-9)

	_, view := f.snapshot(t)
	assert.InDelta(t, 1.1, view.ZoomLevel, 1e-9)

	f.ok(t, "editor.resetView", nil)
	_, view = f.snapshot(t)
	assert.Equal(t, 1.0, view.ZoomLevel)
}

func TestSession_SaveAndDeleteAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})
	f.ok(t, "editor.addNode", map[string]any{"agentId": "writer", "x": 0.0, "y": 200.0})

	out := f.ok(t, "editor.save", nil).(map[string]string)
	assert.Equal(t, "wf-1", out["workflow_id"])

	stored, err := f.store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, stored.OrchestrationGraph.Nodes, 3)
	assert.Equal(t, 3, stored.ViewState.NodeIDCounter)

	del := f.ok(t, "editor.deleteAgent", map[string]string{"agentId": "writer"}).(map[string]any)
	assert.Equal(t, 2, del["nodes_removed"])

	res := f.call(t, "editor.deleteAgent", map[string]string{"agentId": "writer"})
	assert.Equal(t, types.ErrNotFound, errorCode(t, res))

	f.ok(t, "editor.save", nil)
	stored, err = f.store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, stored.OrchestrationGraph.Nodes, 1)
	assert.NotContains(t, stored.Agents, "writer")
}

func TestSession_NewWorkflowSavesWithID(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, types.ErrConflict, errorCode(t, f.call(t, "editor.save", nil)))

	out := f.ok(t, "editor.new", map[string]string{"name": "draft"}).(map[string]any)
	assert.Equal(t, "draft", out["name"])
	assert.Equal(t, 0, out["nodes"])

	saved := f.ok(t, "editor.save", nil).(map[string]string)
	require.NotEmpty(t, saved["workflow_id"])

	list, err := f.store.ListWorkflows(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSession_FlowDirection(t *testing.T) {
	f := newFixture(t)
	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})

	res := f.call(t, "editor.setFlowDirection", map[string]string{"direction": "diagonal"})
	assert.Equal(t, types.ErrInvalidRequest, errorCode(t, res))

	f.ok(t, "editor.setFlowDirection", map[string]string{"direction": types.FlowVertical})
	_, view := f.snapshot(t)
	assert.Equal(t, types.FlowVertical, view.FlowDirection)

	out := f.ok(t, "editor.toggleOrientation", map[string]string{"nodeId": "ui-node-0"}).(map[string]string)
	assert.Equal(t, types.FlowHorizontal, out["orientation"])

	res = f.call(t, "editor.toggleOrientation", map[string]string{"nodeId": "ui-node-9"})
	assert.Equal(t, types.ErrNotFound, errorCode(t, res))
}

func TestSession_ClearAndSync(t *testing.T) {
	f := newFixture(t)
	f.ok(t, "editor.open", map[string]string{"workflow_id": "wf-1"})
	f.push.reset()

	replay := f.ok(t, "editor.sync", nil).(RenderPayload)
	nodes := 0
	for _, op := range replay.Ops {
		if op.Op == scene.OpNodeCreate {
			nodes++
		}
	}
	assert.Equal(t, 2, nodes)
	assert.Empty(t, f.push.ofType(EventRender))

	f.ok(t, "editor.clear", nil)
	graph, _ := f.snapshot(t)
	assert.Empty(t, graph.Nodes)
	assert.NotEmpty(t, f.push.ofType(EventRender))
}

func TestSession_Resize(t *testing.T) {
	f := newFixture(t)

	f.ok(t, "editor.resize", map[string]float64{"originX": 10, "originY": 20, "width": 800, "height": 600})
	res := f.call(t, "editor.resize", map[string]float64{"width": -1})
	assert.Equal(t, types.ErrInvalidRequest, errorCode(t, res))
}

func TestSession_PanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.Do(context.Background(), func(context.Context) (any, error) {
		panic("boom")
	})
	assert.True(t, types.IsErrorCode(err, types.ErrInternalError))

	// The loop keeps serving.
	f.ok(t, "editor.snapshot", nil)
}

func TestSession_ClosedAfterRunStops(t *testing.T) {
	s := New(nil, store.NewMemoryStore(), Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	<-s.Done()

	_, err := s.Do(context.Background(), func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
}
