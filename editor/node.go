package editor

import "go.uber.org/zap"

// Node and socket view management. Views are derived from the model and
// regenerated wholesale whenever a node's geometry changes.

func (g *Graph) nodeView(n *Node) NodeView {
	w, h := g.layout.Size(n)
	return NodeView{
		ID:          n.ID,
		Title:       n.Title,
		AgentID:     n.AgentID,
		X:           n.X,
		Y:           n.Y,
		Width:       w,
		Height:      h,
		Orientation: n.Orientation,
	}
}

func (g *Graph) mountNode(n *Node) {
	g.renderer.CreateNodeView(g.nodeView(n))
	g.mountSockets(n)
}

func (g *Graph) unmountNode(n *Node) {
	g.unmountSockets(n)
	g.renderer.RemoveNodeView(n.ID)
}

// createSocketView lays out one socket. Inputs draw the handle before the
// label and outputs the label before the handle, in both orientations.
func (g *Graph) createSocketView(n *Node, s *Socket, index int) Handle {
	return g.renderer.CreateSocketView(SocketView{
		NodeID:      n.ID,
		SocketID:    s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Direction:   s.Direction,
		Index:       index,
		HandleFirst: s.Direction == Input,
		Offset:      g.layout.SocketOffset(n, s.Direction, index),
	})
}

func (g *Graph) mountSockets(n *Node) {
	for _, dir := range []Direction{Input, Output} {
		for i, s := range n.Sockets(dir) {
			s.Handle = g.createSocketView(n, s, i)
		}
	}
}

func (g *Graph) unmountSockets(n *Node) {
	for _, dir := range []Direction{Input, Output} {
		for _, s := range n.Sockets(dir) {
			if s.Handle != "" {
				g.renderer.RemoveSocketView(s.Handle)
				s.Handle = ""
			}
		}
	}
}

// ToggleOrientation flips a node between horizontal and vertical flow.
func (g *Graph) ToggleOrientation(nodeID string) bool {
	n := g.nodes[nodeID]
	if n == nil {
		g.logger.Warn("toggle orientation on unknown node", zap.String("node_id", nodeID))
		return false
	}
	g.SetOrientation(nodeID, n.Orientation.Toggle())
	return true
}

// SetOrientation changes a node's flow axis. The node's socket handles are
// regenerated in place with the same ids and link lists, and every link
// attached to the node is redrawn.
func (g *Graph) SetOrientation(nodeID string, o Orientation) bool {
	n := g.nodes[nodeID]
	if n == nil {
		return false
	}
	if n.Orientation == o {
		return true
	}
	n.Orientation = o
	g.unmountSockets(n)
	g.renderer.UpdateNodeView(g.nodeView(n))
	g.mountSockets(n)
	g.UpdateLinksForNode(nodeID)
	return true
}
