package editor

import (
	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
)

// Options configures an Editor. Zero values select the defaults.
type Options struct {
	MinZoom         float64
	MaxZoom         float64
	ZoomSensitivity float64
	FlowDirection   Orientation
	Layout          *Layout
}

// Editor bundles the viewport, graph and controller of one workspace.
type Editor struct {
	Viewport   *Viewport
	Graph      *Graph
	Controller *Controller

	renderer Renderer
	flow     Orientation
	logger   *zap.Logger
}

// New creates an empty editor drawing through renderer.
func New(renderer Renderer, opts Options, logger *zap.Logger) *Editor {
	if renderer == nil {
		renderer = &NopRenderer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "editor"))

	vp := NewViewport(opts.MinZoom, opts.MaxZoom)
	g := NewGraph(renderer, vp, logger)
	if opts.Layout != nil {
		g.SetLayout(*opts.Layout)
	}
	ctrl := NewController(g, vp, renderer, logger)
	ctrl.SetZoomSensitivity(opts.ZoomSensitivity)

	flow := opts.FlowDirection
	if flow == "" {
		flow = Horizontal
	}
	e := &Editor{
		Viewport:   vp,
		Graph:      g,
		Controller: ctrl,
		renderer:   renderer,
		flow:       flow,
		logger:     logger,
	}
	renderer.SetTransform(vp.Transform())
	return e
}

// SetObserver installs an observer on the graph and controller.
func (e *Editor) SetObserver(o Observer) {
	e.Graph.SetObserver(o)
	e.Controller.SetObserver(o)
}

// FlowDirection returns the orientation given to new nodes.
func (e *Editor) FlowDirection() Orientation { return e.flow }

// SetFlowDirection sets the orientation for new nodes and applies it to
// every existing node.
func (e *Editor) SetFlowDirection(o Orientation) {
	e.flow = o
	for _, n := range e.Graph.Nodes() {
		e.Graph.SetOrientation(n.ID, o)
	}
	e.Graph.UpdateAllLinks()
}

// AddNode creates a node in the current flow direction unless the spec
// names one.
func (e *Editor) AddNode(spec NodeSpec) *Node {
	if spec.Orientation == "" {
		spec.Orientation = e.flow
	}
	return e.Graph.CreateNode(spec)
}

// AddAgentNode creates a node for agent with one output per declared
// output property. A nil position centres the node in the viewport.
func (e *Editor) AddAgentNode(agent *types.Agent, pos *Point) *Node {
	return e.AddNode(agentNodeSpec("", agent, pos))
}

func agentNodeSpec(id string, agent *types.Agent, pos *Point) NodeSpec {
	spec := NodeSpec{ID: id, Position: pos, AgentID: agent.ID, Title: agent.Name}
	for _, name := range agent.OutputNames() {
		spec.Outputs = append(spec.Outputs, SocketDef{Name: name, Type: agent.OutputType(name)})
	}
	return spec
}

// DeleteAgent removes every node backed by agentID together with its
// links. It returns the number of nodes removed.
func (e *Editor) DeleteAgent(agentID string) int {
	ids := e.Graph.NodesForAgent(agentID)
	for _, id := range ids {
		e.Graph.DeleteNode(id)
	}
	if len(ids) > 0 {
		e.logger.Info("agent nodes deleted", zap.String("agent_id", agentID), zap.Int("nodes", len(ids)))
	}
	return len(ids)
}

// Clear aborts any gesture, empties the graph and resets the view.
func (e *Editor) Clear() {
	e.Controller.Cancel()
	e.Graph.Clear()
	e.Viewport.Reset()
	e.renderer.SetTransform(e.Viewport.Transform())
}

// ResetView returns the viewport to the identity transform.
func (e *Editor) ResetView() {
	e.Controller.ResetView()
}

// Resize records the editor rectangle on screen.
func (e *Editor) Resize(originX, originY, width, height float64) {
	e.Viewport.Resize(originX, originY, width, height)
}
