package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BaSui01/flowedit/editor"
	"github.com/BaSui01/flowedit/editor/scene"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
)

// Events pushed to the client.
const (
	EventRender    = "editor.render"
	EventView      = "editor.view"
	EventEditAgent = "editor.editAgent"
)

// ErrClosed is returned for calls made after the session loop stopped.
var ErrClosed = errors.New("session: closed")

// Pusher delivers events to the session's client.
type Pusher interface {
	SendEvent(ctx context.Context, typ string, payload any) error
}

// Options configures a session.
type Options struct {
	Editor   editor.Options
	Observer editor.Observer
}

// RenderPayload is the payload of EventRender.
type RenderPayload struct {
	Ops []scene.Op `json:"ops"`
}

type call struct {
	ctx   context.Context
	fn    func(ctx context.Context) (any, error)
	reply chan callResult
}

type callResult struct {
	payload any
	err     error
}

// Session binds one editor to one client connection. All editor access
// happens on the goroutine running Run.
type Session struct {
	ed     *editor.Editor
	scene  *scene.Scene
	store  store.Store
	push   Pusher
	views  *Views
	opts   Options
	logger *zap.Logger

	// workflow is the open document; nil until editor.open or editor.new.
	workflow *types.Workflow

	calls chan call
	done  chan struct{}
}

// New creates a session drawing into a fresh scene.
func New(push Pusher, st store.Store, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "session"))

	sc := scene.New()
	ed := editor.New(sc, opts.Editor, logger)
	if opts.Observer != nil {
		ed.SetObserver(opts.Observer)
	}

	s := &Session{
		ed:     ed,
		scene:  sc,
		store:  st,
		push:   push,
		views:  NewViews(),
		opts:   opts,
		logger: logger,
		calls:  make(chan call),
		done:   make(chan struct{}),
	}
	ed.Controller.OnEditAgent = s.editAgent
	s.views.OnEnter(ViewWorkflows, func(string) { s.ed.Controller.Cancel() })
	s.views.OnChange(func(prev, next string) {
		s.send(context.Background(), EventView, map[string]string{"view": next, "previous": prev})
	})
	return s
}

// Views returns the view tracker.
func (s *Session) Views() *Views { return s.views }

// Run serves calls until ctx ends.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session loop stopped")
			return
		case c := <-s.calls:
			payload, err := s.invoke(c)
			s.flush(c.ctx)
			c.reply <- callResult{payload: payload, err: err}
		}
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) invoke(c call) (payload any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("editor call panicked", zap.Any("panic", p))
			err = types.NewInternalError(fmt.Sprintf("editor panic: %v", p))
		}
	}()
	return c.fn(c.ctx)
}

// Do runs fn on the session loop and waits for its result. Pending render
// ops are pushed before Do returns.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	c := call{ctx: ctx, fn: fn, reply: make(chan callResult, 1)}
	select {
	case s.calls <- c:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) flush(ctx context.Context) {
	ops := s.scene.Flush()
	if len(ops) == 0 {
		return
	}
	s.send(ctx, EventRender, RenderPayload{Ops: ops})
}

func (s *Session) send(ctx context.Context, typ string, payload any) {
	if s.push == nil {
		return
	}
	if err := s.push.SendEvent(ctx, typ, payload); err != nil {
		s.logger.Warn("failed to push event", zap.String("type", typ), zap.Error(err))
	}
}

func (s *Session) editAgent(agentID string) {
	s.views.Show(ViewAgent)
	s.send(context.Background(), EventEditAgent, map[string]string{"agent_id": agentID})
}

// =============================================================================
// Methods
// =============================================================================

// Register adds the editor.* methods to r.
func (s *Session) Register(r *transport.Router) {
	methods := map[string]func(context.Context, json.RawMessage) (any, error){
		"editor.open":              s.open,
		"editor.new":               s.newWorkflow,
		"editor.pointer":           s.pointer,
		"editor.wheel":             s.wheel,
		"editor.addNode":           s.addNode,
		"editor.toggleOrientation": s.toggleOrientation,
		"editor.setFlowDirection":  s.setFlowDirection,
		"editor.resetView":         s.resetView,
		"editor.clear":             s.clear,
		"editor.resize":            s.resize,
		"editor.save":              s.save,
		"editor.deleteAgent":       s.deleteAgent,
		"editor.snapshot":          s.snapshot,
		"editor.sync":              s.sync,
	}
	for name, m := range methods {
		r.Handle(name, s.loop(m))
	}
}

// loop adapts a method so its body runs on the session goroutine.
func (s *Session) loop(m func(context.Context, json.RawMessage) (any, error)) transport.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return s.Do(ctx, func(ctx context.Context) (any, error) { return m(ctx, params) })
	}
}

type openParams struct {
	WorkflowID string `json:"workflow_id"`
}

func (s *Session) open(ctx context.Context, params json.RawMessage) (any, error) {
	var p openParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.WorkflowID == "" {
		return nil, types.NewInvalidRequestError("workflow_id is required")
	}
	wf, err := s.store.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, storeError(err, p.WorkflowID)
	}
	s.load(wf)
	s.logger.Info("workflow opened", zap.String("workflow_id", wf.ID))
	return s.summary(), nil
}

type newParams struct {
	Name string `json:"name"`
}

func (s *Session) newWorkflow(_ context.Context, params json.RawMessage) (any, error) {
	var p newParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	wf := types.NewWorkflow(p.Name)
	if s.opts.Editor.FlowDirection != "" {
		wf.ViewState.FlowDirection = string(s.opts.Editor.FlowDirection)
	}
	s.load(wf)
	return s.summary(), nil
}

func (s *Session) load(wf *types.Workflow) {
	wf.Normalize()
	s.workflow = wf
	s.ed.Load(wf)
	s.views.Show(ViewEditor)
}

func (s *Session) summary() map[string]any {
	return map[string]any{
		"workflow_id": s.workflow.ID,
		"name":        s.workflow.Name,
		"nodes":       s.ed.Graph.NodeCount(),
		"links":       s.ed.Graph.LinkCount(),
	}
}

func (s *Session) requireWorkflow() error {
	if s.workflow == nil {
		return types.NewError(types.ErrConflict, "no workflow is open")
	}
	return nil
}

// Pointer event kinds.
const (
	PointerDown        = "down"
	PointerMove        = "move"
	PointerUp          = "up"
	PointerEnter       = "enter"
	PointerLeave       = "leave"
	PointerDoubleClick = "dblclick"
)

type pointerParams struct {
	Kind string `json:"kind"`
	editor.PointerEvent
}

func (s *Session) pointer(_ context.Context, params json.RawMessage) (any, error) {
	var p pointerParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	ctrl := s.ed.Controller
	switch p.Kind {
	case PointerDown:
		ctrl.PointerDown(p.PointerEvent)
	case PointerMove:
		ctrl.PointerMove(p.PointerEvent)
	case PointerUp:
		ctrl.PointerUp(p.PointerEvent)
	case PointerEnter:
		ctrl.PointerEnter(p.Target)
	case PointerLeave:
		ctrl.PointerLeave(p.Target)
	case PointerDoubleClick:
		ctrl.DoubleClick(p.PointerEvent)
	default:
		return nil, types.NewInvalidRequestError("unknown pointer kind: " + p.Kind)
	}
	return map[string]string{"gesture": string(ctrl.Gesture())}, nil
}

type wheelParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY"`
}

func (s *Session) wheel(_ context.Context, params json.RawMessage) (any, error) {
	var p wheelParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	s.ed.Controller.Wheel(p.X, p.Y, p.DeltaY)
	return map[string]float64{"zoom": s.ed.Viewport.Zoom}, nil
}

type addNodeParams struct {
	AgentID string   `json:"agentId"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
}

func (s *Session) addNode(_ context.Context, params json.RawMessage) (any, error) {
	var p addNodeParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.requireWorkflow(); err != nil {
		return nil, err
	}
	agent := s.workflow.Agents[p.AgentID]
	if agent == nil {
		return nil, types.NewNotFoundError("agent not found: " + p.AgentID)
	}
	var pos *editor.Point
	if p.X != nil && p.Y != nil {
		pos = &editor.Point{X: *p.X, Y: *p.Y}
	}
	n := s.ed.AddAgentNode(agent, pos)
	if n == nil {
		return nil, types.NewInternalError("node was not created")
	}
	return map[string]any{"node_id": n.ID, "x": n.X, "y": n.Y}, nil
}

type nodeParams struct {
	NodeID string `json:"nodeId"`
}

func (s *Session) toggleOrientation(_ context.Context, params json.RawMessage) (any, error) {
	var p nodeParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if !s.ed.Graph.ToggleOrientation(p.NodeID) {
		return nil, types.NewNotFoundError("node not found: " + p.NodeID)
	}
	return map[string]string{"orientation": string(s.ed.Graph.Node(p.NodeID).Orientation)}, nil
}

type flowParams struct {
	Direction string `json:"direction"`
}

func (s *Session) setFlowDirection(_ context.Context, params json.RawMessage) (any, error) {
	var p flowParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	switch editor.Orientation(p.Direction) {
	case editor.Horizontal, editor.Vertical:
	default:
		return nil, types.NewInvalidRequestError("direction must be horizontal or vertical")
	}
	s.ed.SetFlowDirection(editor.Orientation(p.Direction))
	return map[string]string{"direction": p.Direction}, nil
}

func (s *Session) resetView(context.Context, json.RawMessage) (any, error) {
	s.ed.ResetView()
	return nil, nil
}

func (s *Session) clear(context.Context, json.RawMessage) (any, error) {
	s.ed.Clear()
	return nil, nil
}

type resizeParams struct {
	OriginX float64 `json:"originX"`
	OriginY float64 `json:"originY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (s *Session) resize(_ context.Context, params json.RawMessage) (any, error) {
	var p resizeParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Width < 0 || p.Height < 0 {
		return nil, types.NewInvalidRequestError("width and height must not be negative")
	}
	s.ed.Resize(p.OriginX, p.OriginY, p.Width, p.Height)
	return nil, nil
}

func (s *Session) save(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := s.requireWorkflow(); err != nil {
		return nil, err
	}
	s.ed.SaveTo(s.workflow)
	saved, err := s.store.SaveWorkflow(ctx, s.workflow)
	if err != nil {
		return nil, storeError(err, s.workflow.ID)
	}
	s.workflow = saved
	s.logger.Info("workflow saved",
		zap.String("workflow_id", saved.ID),
		zap.Int("nodes", len(saved.OrchestrationGraph.Nodes)),
		zap.Int("links", len(saved.OrchestrationGraph.Links)))
	return map[string]string{"workflow_id": saved.ID}, nil
}

type agentParams struct {
	AgentID string `json:"agentId"`
}

func (s *Session) deleteAgent(_ context.Context, params json.RawMessage) (any, error) {
	var p agentParams
	if err := transport.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.requireWorkflow(); err != nil {
		return nil, err
	}
	if s.workflow.Agents[p.AgentID] == nil {
		return nil, types.NewNotFoundError("agent not found: " + p.AgentID)
	}
	removed := s.ed.DeleteAgent(p.AgentID)
	delete(s.workflow.Agents, p.AgentID)
	return map[string]any{"agent_id": p.AgentID, "nodes_removed": removed}, nil
}

func (s *Session) snapshot(context.Context, json.RawMessage) (any, error) {
	graph, view := s.ed.Snapshot()
	return map[string]any{"orchestration_graph": graph, "view_state": view}, nil
}

// sync returns the whole scene for a client that lost its DOM.
func (s *Session) sync(context.Context, json.RawMessage) (any, error) {
	s.scene.Flush()
	return RenderPayload{Ops: s.scene.Replay()}, nil
}

func storeError(err error, workflowID string) error {
	if errors.Is(err, store.ErrWorkflowNotFound) {
		return types.NewNotFoundError("workflow not found: " + workflowID).WithCause(err)
	}
	return types.WrapError(err, types.ErrInternalError, "store operation failed")
}
