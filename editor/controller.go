package editor

import (
	"slices"

	"go.uber.org/zap"
)

// TargetKind classifies what a pointer event landed on.
type TargetKind string

const (
	TargetCanvas            TargetKind = "canvas"
	TargetNodeBody          TargetKind = "node"
	TargetNodeHeader        TargetKind = "header"
	TargetOrientationToggle TargetKind = "toggle"
	TargetSocket            TargetKind = "socket"
)

// Target identifies the element under the pointer by id. It is resolved
// against the graph on every event.
type Target struct {
	Kind      TargetKind `json:"kind"`
	NodeID    string     `json:"node_id,omitempty"`
	SocketID  string     `json:"socket_id,omitempty"`
	Direction Direction  `json:"direction,omitempty"`
}

// Pointer buttons.
const (
	ButtonPrimary   = 0
	ButtonMiddle    = 1
	ButtonSecondary = 2
)

// PointerEvent is one pointer sample in screen coordinates.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Shift  bool    `json:"shift"`
	Target Target  `json:"target"`
}

// gesture is the controller state. Exactly one value is active; variants
// hold ids only, never model pointers.
type gesture interface {
	kind() GestureKind
}

type idleGesture struct{}

type panGesture struct {
	lastX, lastY float64
}

type dragGesture struct {
	nodeID         string
	startX, startY float64
	initX, initY   float64
}

type linkGesture struct {
	nodeID   string
	socketID string
	tempID   string
}

type reconnectGesture struct {
	nodeID    string
	socketID  string
	direction Direction
	linkIDs   []string
}

func (idleGesture) kind() GestureKind { return GestureIdle }
func (panGesture) kind() GestureKind { return GesturePanning }
func (dragGesture) kind() GestureKind { return GestureDraggingNode }
func (linkGesture) kind() GestureKind { return GestureLinking }
func (reconnectGesture) kind() GestureKind { return GestureReconnecting }

// TempLinkID is the path id of the link preview drawn while linking.
const TempLinkID = "temp-link"

// Controller is the gesture state machine. It consumes pointer events and
// mutates the viewport and graph; it is not safe for concurrent use.
type Controller struct {
	graph       *Graph
	viewport    *Viewport
	renderer    Renderer
	sensitivity float64
	state       gesture
	button      int // button that started the active gesture
	observer    Observer
	logger      *zap.Logger

	// OnEditAgent is called when a node backed by an agent is double-clicked.
	OnEditAgent func(agentID string)
}

// NewController creates an idle controller over graph and viewport.
func NewController(graph *Graph, viewport *Viewport, renderer Renderer, logger *zap.Logger) *Controller {
	if renderer == nil {
		renderer = &NopRenderer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		graph:       graph,
		viewport:    viewport,
		renderer:    renderer,
		sensitivity: DefaultZoomSensitivity,
		state:       idleGesture{},
		observer:    nopObserver{},
		logger:      logger.With(zap.String("component", "controller")),
	}
}

// SetZoomSensitivity sets the wheel-delta to zoom-factor ratio.
func (c *Controller) SetZoomSensitivity(s float64) {
	if s > 0 {
		c.sensitivity = s
	}
}

// SetObserver installs an observer. Nil restores the no-op observer.
func (c *Controller) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// Gesture reports the active gesture.
func (c *Controller) Gesture() GestureKind { return c.state.kind() }

// Idle reports whether no gesture is active.
func (c *Controller) Idle() bool { return c.state.kind() == GestureIdle }

func (c *Controller) begin(g gesture) {
	c.state = g
	c.renderer.SetPointerCapture(true)
	c.observer.GestureStarted(g.kind())
}

// end is the single cleanup path of every gesture. It is idempotent.
func (c *Controller) end(outcome string) {
	k := c.state.kind()
	c.state = idleGesture{}
	c.renderer.SetPointerCapture(false)
	if k != GestureIdle {
		c.observer.GestureEnded(k, outcome)
	}
}

// =============================================================================
// Event entry points
// =============================================================================

// PointerDown starts a gesture when idle. A secondary-button press during
// a gesture cancels it. A second press of the button that started the
// gesture means its release never arrived: the stale gesture is cancelled
// and the press is handled from idle.
func (c *Controller) PointerDown(ev PointerEvent) {
	if !c.Idle() {
		switch {
		case ev.Button == ButtonSecondary:
			c.Cancel()
			return
		case ev.Button == c.button:
			c.logger.Warn("pointer release lost, cancelling stale gesture",
				zap.String("gesture", string(c.Gesture())))
			c.Cancel()
		default:
			return
		}
	}
	c.button = ev.Button

	switch ev.Target.Kind {
	case TargetCanvas, "":
		if ev.Button == ButtonPrimary || ev.Button == ButtonMiddle {
			c.startPan(ev)
		}
	case TargetSocket:
		if ev.Button != ButtonPrimary {
			return
		}
		if ev.Shift {
			c.startReconnect(ev)
		} else if ev.Target.Direction == Output {
			c.startLink(ev)
		}
	case TargetNodeHeader:
		if ev.Button == ButtonPrimary {
			c.startDrag(ev)
		}
	case TargetOrientationToggle:
		if ev.Button == ButtonPrimary {
			c.graph.ToggleOrientation(ev.Target.NodeID)
		}
	}
}

// PointerMove advances the active gesture.
func (c *Controller) PointerMove(ev PointerEvent) {
	switch g := c.state.(type) {
	case panGesture:
		c.viewport.Pan(ev.X-g.lastX, ev.Y-g.lastY)
		c.state = panGesture{lastX: ev.X, lastY: ev.Y}
		c.applyTransform()
	case dragGesture:
		c.dragTo(g, ev)
	case linkGesture:
		c.updateTempLink(g, ev)
	case reconnectGesture:
		c.dragReconnect(g, ev)
	}
}

// PointerUp finishes the active gesture. Cleanup always runs.
func (c *Controller) PointerUp(ev PointerEvent) {
	switch g := c.state.(type) {
	case panGesture:
		c.renderer.SetEditorClass(ClassPanning, false)
		c.end(OutcomeCompleted)
	case dragGesture:
		c.dragTo(g, ev)
		c.graph.UpdateLinksForNode(g.nodeID)
		c.renderer.SetNodeClass(g.nodeID, ClassDragging, false)
		c.end(OutcomeCompleted)
	case linkGesture:
		c.finishLink(g, ev.Target)
	case reconnectGesture:
		c.finishReconnect(g, ev.Target)
	default:
		c.end(OutcomeCancelled)
	}
}

// Cancel aborts the active gesture without mutating the graph. A
// reconnection snaps its links back.
func (c *Controller) Cancel() {
	switch g := c.state.(type) {
	case panGesture:
		c.renderer.SetEditorClass(ClassPanning, false)
	case dragGesture:
		c.graph.UpdateLinksForNode(g.nodeID)
		c.renderer.SetNodeClass(g.nodeID, ClassDragging, false)
	case linkGesture:
		c.renderer.RemovePath(g.tempID)
	case reconnectGesture:
		c.snapBack(g)
		c.renderer.SetEditorClass(ClassReconnecting, false)
	}
	c.end(OutcomeCancelled)
}

// Wheel zooms around the pointer. deltaY follows the DOM wheel convention:
// negative zooms in.
func (c *Controller) Wheel(sx, sy, deltaY float64) bool {
	if !c.viewport.ZoomAt(sx, sy, -deltaY*c.sensitivity) {
		return false
	}
	c.applyTransform()
	return true
}

// ResetView returns the viewport to the identity transform.
func (c *Controller) ResetView() {
	c.viewport.Reset()
	c.applyTransform()
}

// DoubleClick opens the agent behind a node.
func (c *Controller) DoubleClick(ev PointerEvent) {
	switch ev.Target.Kind {
	case TargetNodeBody, TargetNodeHeader:
	default:
		return
	}
	n := c.graph.Node(ev.Target.NodeID)
	if n == nil {
		return
	}
	if n.AgentID == "" {
		c.logger.Warn("node is not linked to an agent", zap.String("node_id", n.ID))
		return
	}
	if c.OnEditAgent != nil {
		c.OnEditAgent(n.AgentID)
	}
}

func (c *Controller) applyTransform() {
	c.renderer.SetTransform(c.viewport.Transform())
	c.graph.UpdateAllLinks()
}

// =============================================================================
// Panning and node drag
// =============================================================================

func (c *Controller) startPan(ev PointerEvent) {
	c.begin(panGesture{lastX: ev.X, lastY: ev.Y})
	c.renderer.SetEditorClass(ClassPanning, true)
}

func (c *Controller) startDrag(ev PointerEvent) {
	n := c.graph.Node(ev.Target.NodeID)
	if n == nil {
		c.logger.Warn("drag started on unknown node", zap.String("node_id", ev.Target.NodeID))
		return
	}
	c.begin(dragGesture{nodeID: n.ID, startX: ev.X, startY: ev.Y, initX: n.X, initY: n.Y})
	c.renderer.SetNodeClass(n.ID, ClassDragging, true)
}

func (c *Controller) dragTo(g dragGesture, ev PointerEvent) {
	x := g.initX + (ev.X-g.startX)/c.viewport.Zoom
	y := g.initY + (ev.Y-g.startY)/c.viewport.Zoom
	if !c.graph.MoveNode(g.nodeID, x, y) {
		c.logger.Warn("dragged node vanished", zap.String("node_id", g.nodeID))
	}
}

// =============================================================================
// Linking
// =============================================================================

func (c *Controller) startLink(ev PointerEvent) {
	t := ev.Target
	n := c.graph.Node(t.NodeID)
	if n == nil || n.Outputs[t.SocketID] == nil {
		c.logger.Warn("link drag from unknown socket",
			zap.String("node_id", t.NodeID), zap.String("socket_id", t.SocketID))
		return
	}
	g := linkGesture{nodeID: t.NodeID, socketID: t.SocketID, tempID: TempLinkID}
	c.begin(g)
	c.renderer.CreatePath(g.tempID, ClassTempLink)
	c.updateTempLink(g, ev)
}

func (c *Controller) updateTempLink(g linkGesture, ev PointerEvent) {
	n := c.graph.Node(g.nodeID)
	if n == nil || n.Outputs[g.socketID] == nil {
		c.logger.Warn("link origin vanished, skipping preview",
			zap.String("node_id", g.nodeID), zap.String("socket_id", g.socketID))
		return
	}
	start := c.graph.layout.SocketPosition(n, n.Outputs[g.socketID])
	end := c.viewport.ScreenToWorkspace(ev.X, ev.Y)
	c.renderer.SetPath(g.tempID, ComputePath(start, end, n.Orientation, n.Orientation).D())
}

func (c *Controller) finishLink(g linkGesture, t Target) {
	outcome := OutcomeCancelled
	if t.Kind == TargetSocket && t.Direction == Input {
		if t.NodeID == g.nodeID {
			c.logger.Info("link cancelled, attempted self-link", zap.String("node_id", g.nodeID))
			outcome = OutcomeRejected
		} else if c.graph.CreateLink(g.nodeID, g.socketID, t.NodeID, t.SocketID, "") != nil {
			outcome = OutcomeCompleted
		} else {
			outcome = OutcomeRejected
		}
	}
	c.renderer.RemovePath(g.tempID)
	c.end(outcome)
}

// =============================================================================
// Reconnection
// =============================================================================

func (c *Controller) startReconnect(ev PointerEvent) {
	t := ev.Target
	n := c.graph.Node(t.NodeID)
	if n == nil {
		return
	}
	s := n.Socket(t.Direction, t.SocketID)
	if s == nil || len(s.Links) == 0 {
		return
	}
	g := reconnectGesture{
		nodeID:    t.NodeID,
		socketID:  t.SocketID,
		direction: t.Direction,
		linkIDs:   slices.Clone(s.Links),
	}
	c.begin(g)
	c.renderer.SetEditorClass(ClassReconnecting, true)
	for _, id := range g.linkIDs {
		c.renderer.SetPathClass(id, ClassLinkMoving, true)
	}
	c.dragReconnect(g, ev)
}

// dragReconnect redraws each captured link from its fixed endpoint to the
// pointer. A link whose fixed endpoint is gone is skipped.
func (c *Controller) dragReconnect(g reconnectGesture, ev PointerEvent) {
	pointer := c.viewport.ScreenToWorkspace(ev.X, ev.Y)
	movingOrientation := Horizontal
	if origin := c.graph.Node(g.nodeID); origin != nil {
		movingOrientation = origin.Orientation
	}

	for _, id := range g.linkIDs {
		l := c.graph.Link(id)
		if l == nil {
			continue
		}
		fixedNode, fixedSocket, fixedDir := l.ToNode, l.ToSocket, Input
		if g.direction == Input {
			fixedNode, fixedSocket, fixedDir = l.FromNode, l.FromSocket, Output
		}
		n := c.graph.Node(fixedNode)
		var s *Socket
		if n != nil {
			s = n.Socket(fixedDir, fixedSocket)
		}
		if s == nil {
			c.logger.Warn("fixed endpoint missing for reconnecting link, skipping update",
				zap.String("link_id", id), zap.String("node_id", fixedNode), zap.String("socket_id", fixedSocket))
			continue
		}
		fixed := c.graph.layout.SocketPosition(n, s)
		var curve Curve
		if g.direction == Output {
			curve = ComputePath(pointer, fixed, movingOrientation, n.Orientation)
		} else {
			curve = ComputePath(fixed, pointer, n.Orientation, movingOrientation)
		}
		c.renderer.SetPath(id, curve.D())
	}
}

// finishReconnect rebinds the captured links' origin-side endpoint to a
// different socket of the same direction. Any other drop snaps back.
func (c *Controller) finishReconnect(g reconnectGesture, t Target) {
	outcome := OutcomeCancelled
	switch {
	case t.Kind != TargetSocket:
	case t.NodeID == g.nodeID && t.SocketID == g.socketID:
		c.logger.Info("reconnect cancelled, dropped back on origin")
	case t.Direction != g.direction:
		c.logger.Warn("cannot reconnect to a socket of the other direction",
			zap.String("origin_direction", string(g.direction)), zap.String("target_direction", string(t.Direction)))
		outcome = OutcomeRejected
	case c.graph.Node(t.NodeID) == nil || c.graph.Node(t.NodeID).Socket(t.Direction, t.SocketID) == nil:
		c.logger.Warn("reconnect target socket not found",
			zap.String("node_id", t.NodeID), zap.String("socket_id", t.SocketID))
		outcome = OutcomeRejected
	default:
		c.logger.Info("reconnecting links",
			zap.Int("count", len(g.linkIDs)),
			zap.String("from_node", g.nodeID), zap.String("from_socket", g.socketID),
			zap.String("to_node", t.NodeID), zap.String("to_socket", t.SocketID))
		for _, id := range g.linkIDs {
			c.graph.Rebind(id, g.direction, t.NodeID, t.SocketID)
		}
		outcome = OutcomeCompleted
	}

	c.snapBack(g)
	c.renderer.SetEditorClass(ClassReconnecting, false)
	c.end(outcome)
}

// snapBack clears the in-motion marker and redraws each captured link from
// its current model endpoints.
func (c *Controller) snapBack(g reconnectGesture) {
	for _, id := range g.linkIDs {
		if c.graph.Link(id) == nil {
			continue
		}
		c.renderer.SetPathClass(id, ClassLinkMoving, false)
		c.graph.UpdateLinkPath(id)
	}
}

// =============================================================================
// Hover feedback
// =============================================================================

// PointerEnter highlights a socket according to the active gesture.
func (c *Controller) PointerEnter(t Target) {
	if t.Kind != TargetSocket {
		return
	}
	h := c.socketHandle(t)
	if h == "" {
		return
	}
	if hl := c.hoverHighlight(t); hl != HighlightNone {
		c.renderer.SetSocketHighlight(h, hl)
	}
}

// PointerLeave clears a socket's highlight.
func (c *Controller) PointerLeave(t Target) {
	if t.Kind != TargetSocket {
		return
	}
	if h := c.socketHandle(t); h != "" {
		c.renderer.SetSocketHighlight(h, HighlightNone)
	}
}

func (c *Controller) hoverHighlight(t Target) Highlight {
	switch g := c.state.(type) {
	case linkGesture:
		if t.Direction == Input && t.NodeID != g.nodeID {
			return HighlightValid
		}
		return HighlightInvalid
	case reconnectGesture:
		switch {
		case t.NodeID == g.nodeID && t.SocketID == g.socketID:
			return HighlightNeutral
		case t.Direction == g.direction && c.canReconnect(g, t):
			return HighlightValidReconnect
		default:
			return HighlightInvalid
		}
	}
	return HighlightNone
}

// canReconnect reports whether dropping on t would rebind at least one of
// the captured links.
func (c *Controller) canReconnect(g reconnectGesture, t Target) bool {
	for _, id := range g.linkIDs {
		if c.graph.CanRebind(id, g.direction, t.NodeID, t.SocketID) {
			return true
		}
	}
	return false
}

func (c *Controller) socketHandle(t Target) Handle {
	n := c.graph.Node(t.NodeID)
	if n == nil {
		return ""
	}
	if s := n.Socket(t.Direction, t.SocketID); s != nil {
		return s.Handle
	}
	return ""
}
