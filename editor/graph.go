package editor

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Direction tells input sockets from output sockets.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Input {
		return Output
	}
	return Input
}

// Default socket names and types.
const (
	DefaultInputName  = "In"
	DefaultOutputName = "Out"
	AnyType           = "any"
)

// Socket is a named connection point on a node. Links holds the ids of
// every link that ends on this socket, in attachment order.
type Socket struct {
	ID        string
	Name      string
	Type      string
	NodeID    string
	Direction Direction
	Handle    Handle
	Links     []string
}

// Node is one agent instance placed on the canvas.
type Node struct {
	ID          string
	X           float64
	Y           float64
	Title       string
	AgentID     string
	Orientation Orientation
	Inputs      map[string]*Socket
	Outputs     map[string]*Socket

	inputOrder  []string
	outputOrder []string
}

// Socket resolves a socket by direction and id.
func (n *Node) Socket(dir Direction, id string) *Socket {
	if dir == Input {
		return n.Inputs[id]
	}
	return n.Outputs[id]
}

// Sockets returns the node's sockets of one direction in creation order.
func (n *Node) Sockets(dir Direction) []*Socket {
	order, set := n.inputOrder, n.Inputs
	if dir == Output {
		order, set = n.outputOrder, n.Outputs
	}
	out := make([]*Socket, 0, len(order))
	for _, id := range order {
		out = append(out, set[id])
	}
	return out
}

func (n *Node) socketIndex(s *Socket) int {
	order := n.inputOrder
	if s.Direction == Output {
		order = n.outputOrder
	}
	return slices.Index(order, s.ID)
}

// Link connects an output socket of one node to an input socket of another.
type Link struct {
	ID         string
	FromNode   string
	FromSocket string
	ToNode     string
	ToSocket   string
}

func (l *Link) sameEndpoints(fromNode, fromSocket, toNode, toSocket string) bool {
	return l.FromNode == fromNode && l.FromSocket == fromSocket &&
		l.ToNode == toNode && l.ToSocket == toSocket
}

// SocketDef declares a socket to create on a node.
type SocketDef struct {
	Name string
	Type string
}

// NodeSpec describes a node to create. A nil Position places the node at
// the centre of the viewport; an empty ID draws one from the sequence.
type NodeSpec struct {
	ID          string
	Position    *Point
	AgentID     string
	Title       string
	Orientation Orientation
	Inputs      []SocketDef
	Outputs     []SocketDef
}

// Graph owns the node and link collections and keeps socket link lists
// consistent with the links that reference them.
type Graph struct {
	nodes map[string]*Node
	links map[string]*Link

	nodeSeq *Sequence
	linkSeq *Sequence

	renderer Renderer
	viewport *Viewport
	layout   Layout
	observer Observer
	logger   *zap.Logger
}

// NewGraph creates an empty graph drawing through renderer.
func NewGraph(renderer Renderer, viewport *Viewport, logger *zap.Logger) *Graph {
	if renderer == nil {
		renderer = &NopRenderer{}
	}
	if viewport == nil {
		viewport = NewViewport(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		nodes:    make(map[string]*Node),
		links:    make(map[string]*Link),
		nodeSeq:  NewSequence(NodeIDPrefix),
		linkSeq:  NewSequence(LinkIDPrefix),
		renderer: renderer,
		viewport: viewport,
		layout:   DefaultLayout(),
		observer: nopObserver{},
		logger:   logger.With(zap.String("component", "graph")),
	}
}

// SetObserver installs an observer. Nil restores the no-op observer.
func (g *Graph) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	g.observer = o
}

// SetLayout replaces the node geometry.
func (g *Graph) SetLayout(l Layout) { g.layout = l }

// Layout returns the node geometry.
func (g *Graph) Layout() Layout { return g.layout }

// NodeSequence returns the node id generator.
func (g *Graph) NodeSequence() *Sequence { return g.nodeSeq }

// LinkSequence returns the link id generator.
func (g *Graph) LinkSequence() *Sequence { return g.linkSeq }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// Link returns the link with the given id, or nil.
func (g *Graph) Link(id string) *Link { return g.links[id] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// LinkCount returns the number of links.
func (g *Graph) LinkCount() int { return len(g.links) }

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Links returns all links sorted by id.
func (g *Graph) Links() []*Link {
	out := make([]*Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesForAgent returns the ids of nodes backed by agentID, sorted.
func (g *Graph) NodesForAgent(agentID string) []string {
	var ids []string
	for id, n := range g.nodes {
		if n.AgentID == agentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// Nodes
// =============================================================================

// CreateNode creates a node and its sockets. A default "In" input of type
// any always precedes the caller's inputs; a default "Out" output is added
// only when the caller supplied neither inputs nor outputs. It returns nil
// if the id is already taken.
func (g *Graph) CreateNode(spec NodeSpec) *Node {
	id := spec.ID
	if id == "" {
		id = g.nextNodeID()
	} else {
		if _, exists := g.nodes[id]; exists {
			g.logger.Warn("node id already in use", zap.String("node_id", id))
			return nil
		}
		g.nodeSeq.Observe(id)
	}

	pos := g.viewport.Center()
	if spec.Position != nil {
		pos = *spec.Position
	}
	orientation := spec.Orientation
	if orientation == "" {
		orientation = Horizontal
	}
	title := spec.Title
	if title == "" {
		title = defaultTitle(id)
	}

	n := &Node{
		ID:          id,
		X:           pos.X,
		Y:           pos.Y,
		Title:       title,
		AgentID:     spec.AgentID,
		Orientation: orientation,
		Inputs:      make(map[string]*Socket),
		Outputs:     make(map[string]*Socket),
	}

	inputs := append([]SocketDef{{Name: DefaultInputName, Type: AnyType}}, spec.Inputs...)
	outputs := spec.Outputs
	if len(spec.Inputs) == 0 && len(spec.Outputs) == 0 {
		outputs = []SocketDef{{Name: DefaultOutputName, Type: AnyType}}
	}
	for i, def := range inputs {
		n.addSocket(Input, def, i)
	}
	for i, def := range outputs {
		n.addSocket(Output, def, i)
	}

	g.nodes[id] = n
	g.mountNode(n)
	g.observer.NodeCreated()
	return n
}

func (g *Graph) nextNodeID() string {
	for {
		id := g.nodeSeq.Next()
		if _, exists := g.nodes[id]; !exists {
			return id
		}
	}
}

func (g *Graph) nextLinkID() string {
	for {
		id := g.linkSeq.Next()
		if _, exists := g.links[id]; !exists {
			return id
		}
	}
}

func defaultTitle(id string) string {
	if i := strings.LastIndexByte(id, '-'); i >= 0 && i < len(id)-1 {
		return "Node " + id[i+1:]
	}
	return "Node " + id
}

var unsafeSocketChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SocketID derives the id of a socket from its direction and name. The
// index is used when the name is empty.
func SocketID(dir Direction, name string, index int) string {
	if name == "" {
		return string(dir) + "-" + strconv.Itoa(index)
	}
	return string(dir) + "-" + unsafeSocketChars.ReplaceAllString(name, "_")
}

func (n *Node) addSocket(dir Direction, def SocketDef, index int) {
	name := def.Name
	if name == "" {
		if dir == Input {
			name = "Input " + strconv.Itoa(index)
		} else {
			name = "Output " + strconv.Itoa(index)
		}
	}
	typ := def.Type
	if typ == "" {
		typ = AnyType
	}

	set := n.Inputs
	if dir == Output {
		set = n.Outputs
	}
	base := SocketID(dir, def.Name, index)
	id := base
	for suffix := index; ; suffix++ {
		if _, taken := set[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(suffix)
	}

	set[id] = &Socket{ID: id, Name: name, Type: typ, NodeID: n.ID, Direction: dir}
	if dir == Input {
		n.inputOrder = append(n.inputOrder, id)
	} else {
		n.outputOrder = append(n.outputOrder, id)
	}
}

// MoveNode sets a node's workspace position and refreshes its links.
func (g *Graph) MoveNode(id string, x, y float64) bool {
	n := g.nodes[id]
	if n == nil {
		return false
	}
	n.X, n.Y = x, y
	g.renderer.MoveNodeView(id, x, y)
	g.UpdateLinksForNode(id)
	return true
}

// DeleteNode removes every link touching the node, then the node itself.
func (g *Graph) DeleteNode(id string) bool {
	n := g.nodes[id]
	if n == nil {
		return false
	}
	for _, linkID := range g.LinksTouching(id) {
		g.RemoveLink(linkID)
	}
	g.unmountNode(n)
	delete(g.nodes, id)
	return true
}

// LinksTouching returns the ids of links whose either endpoint is nodeID,
// sorted. It scans the link map, so it also finds links whose socket
// entries were lost.
func (g *Graph) LinksTouching(nodeID string) []string {
	var ids []string
	for id, l := range g.links {
		if l.FromNode == nodeID || l.ToNode == nodeID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clear removes every node and link, resets both id sequences and redraws
// an empty canvas.
func (g *Graph) Clear() {
	g.nodes = make(map[string]*Node)
	g.links = make(map[string]*Link)
	g.nodeSeq.Reset()
	g.linkSeq.Reset()
	g.renderer.Clear()
}

// =============================================================================
// Links
// =============================================================================

// CreateLink connects fromNode's output fromSocket to toNode's input
// toSocket. It returns nil without mutating anything when the id is taken,
// the link would be a self-link, an identical link exists, or either
// endpoint cannot be resolved.
func (g *Graph) CreateLink(fromNode, fromSocket, toNode, toSocket, id string) *Link {
	log := g.logger.With(
		zap.String("from_node", fromNode), zap.String("from_socket", fromSocket),
		zap.String("to_node", toNode), zap.String("to_socket", toSocket),
	)

	if id != "" {
		if _, exists := g.links[id]; exists {
			log.Warn("link id already in use", zap.String("link_id", id))
			g.observer.LinkRejected(RejectIDInUse)
			return nil
		}
	}
	if fromNode == toNode {
		log.Warn("cannot link node to itself")
		g.observer.LinkRejected(RejectSelfLink)
		return nil
	}
	if g.findLink(fromNode, fromSocket, toNode, toSocket) != nil {
		log.Warn("link already exists between these sockets")
		g.observer.LinkRejected(RejectDuplicate)
		return nil
	}
	src, dst := g.outputSocket(fromNode, fromSocket), g.inputSocket(toNode, toSocket)
	if src == nil || dst == nil {
		log.Warn("link endpoint not found")
		g.observer.LinkRejected(RejectMissingSocket)
		return nil
	}

	if id == "" {
		id = g.nextLinkID()
	} else {
		g.linkSeq.Observe(id)
	}

	l := &Link{ID: id, FromNode: fromNode, FromSocket: fromSocket, ToNode: toNode, ToSocket: toSocket}
	g.links[id] = l
	g.renderer.CreatePath(id, "")
	src.Links = append(src.Links, id)
	dst.Links = append(dst.Links, id)
	g.UpdateLinkPath(id)
	g.observer.LinkCreated()
	return l
}

func (g *Graph) findLink(fromNode, fromSocket, toNode, toSocket string) *Link {
	for _, l := range g.links {
		if l.sameEndpoints(fromNode, fromSocket, toNode, toSocket) {
			return l
		}
	}
	return nil
}

func (g *Graph) outputSocket(nodeID, socketID string) *Socket {
	if n := g.nodes[nodeID]; n != nil {
		return n.Outputs[socketID]
	}
	return nil
}

func (g *Graph) inputSocket(nodeID, socketID string) *Socket {
	if n := g.nodes[nodeID]; n != nil {
		return n.Inputs[socketID]
	}
	return nil
}

// RemoveLink detaches a link from both endpoint sockets and deletes it.
// Unknown ids are ignored.
func (g *Graph) RemoveLink(id string) {
	l := g.links[id]
	if l == nil {
		return
	}
	g.detach(g.outputSocket(l.FromNode, l.FromSocket), id)
	g.detach(g.inputSocket(l.ToNode, l.ToSocket), id)
	g.renderer.RemovePath(id)
	delete(g.links, id)
}

func (g *Graph) detach(s *Socket, linkID string) {
	if s == nil {
		g.logger.Warn("socket missing while detaching link", zap.String("link_id", linkID))
		return
	}
	i := slices.Index(s.Links, linkID)
	if i < 0 {
		g.logger.Warn("link missing from socket list",
			zap.String("link_id", linkID),
			zap.String("node_id", s.NodeID),
			zap.String("socket_id", s.ID))
		return
	}
	s.Links = slices.Delete(s.Links, i, i+1)
}

func (g *Graph) attach(s *Socket, linkID string) {
	if !slices.Contains(s.Links, linkID) {
		s.Links = append(s.Links, linkID)
	}
}

// ReconcileLink resolves both endpoints of a link and returns its curve.
// A link whose node or socket is gone is evicted and ok is false.
func (g *Graph) ReconcileLink(id string) (Curve, bool) {
	l := g.links[id]
	if l == nil {
		return Curve{}, false
	}
	from, to := g.nodes[l.FromNode], g.nodes[l.ToNode]
	if from == nil || to == nil {
		g.logger.Warn("node missing for link, removing link", zap.String("link_id", id))
		g.evict(id)
		return Curve{}, false
	}
	src, dst := from.Outputs[l.FromSocket], to.Inputs[l.ToSocket]
	if src == nil || dst == nil {
		g.logger.Warn("socket missing for link, removing link", zap.String("link_id", id))
		g.evict(id)
		return Curve{}, false
	}
	return ComputePath(
		g.layout.SocketPosition(from, src),
		g.layout.SocketPosition(to, dst),
		from.Orientation, to.Orientation,
	), true
}

func (g *Graph) evict(id string) {
	g.RemoveLink(id)
	g.observer.LinkEvicted()
}

// UpdateLinkPath recomputes and draws one link's curve, evicting the link
// if it dangles.
func (g *Graph) UpdateLinkPath(id string) {
	if c, ok := g.ReconcileLink(id); ok {
		g.renderer.SetPath(id, c.D())
	}
}

// UpdateLinksForNode redraws every link attached to any of the node's
// sockets, once each.
func (g *Graph) UpdateLinksForNode(nodeID string) {
	n := g.nodes[nodeID]
	if n == nil {
		return
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, dir := range []Direction{Input, Output} {
		for _, s := range n.Sockets(dir) {
			for _, id := range s.Links {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
	}
	for _, id := range ids {
		if _, ok := g.links[id]; ok {
			g.UpdateLinkPath(id)
		}
	}
}

// UpdateAllLinks redraws every link.
func (g *Graph) UpdateAllLinks() {
	for _, l := range g.Links() {
		g.UpdateLinkPath(l.ID)
	}
}

// Rebind moves one endpoint of a link to a socket of the same direction.
// dir selects the endpoint: Output rebinds the source, Input the target.
// It refuses rebinds that would create a self-link or a duplicate.
func (g *Graph) Rebind(linkID string, dir Direction, nodeID, socketID string) bool {
	l := g.links[linkID]
	if l == nil {
		g.logger.Warn("link vanished before rebind", zap.String("link_id", linkID))
		return false
	}
	target := g.nodes[nodeID]
	if target == nil || target.Socket(dir, socketID) == nil {
		g.logger.Warn("rebind target not found",
			zap.String("link_id", linkID), zap.String("node_id", nodeID), zap.String("socket_id", socketID))
		return false
	}

	fromNode, fromSocket, toNode, toSocket, reason, other := g.checkRebind(l, dir, nodeID, socketID)
	switch reason {
	case RejectSelfLink:
		g.logger.Warn("rebind would link node to itself", zap.String("link_id", linkID))
		g.observer.LinkRejected(reason)
		return false
	case RejectDuplicate:
		g.logger.Warn("rebind would duplicate an existing link",
			zap.String("link_id", linkID), zap.String("existing_link_id", other))
		g.observer.LinkRejected(reason)
		return false
	}

	var origin *Socket
	if dir == Output {
		origin = g.outputSocket(l.FromNode, l.FromSocket)
	} else {
		origin = g.inputSocket(l.ToNode, l.ToSocket)
	}
	g.detach(origin, linkID)
	l.FromNode, l.FromSocket, l.ToNode, l.ToSocket = fromNode, fromSocket, toNode, toSocket
	g.attach(target.Socket(dir, socketID), linkID)
	return true
}

// CanRebind reports whether Rebind would accept the same arguments. It
// neither mutates nor logs.
func (g *Graph) CanRebind(linkID string, dir Direction, nodeID, socketID string) bool {
	l := g.links[linkID]
	if l == nil {
		return false
	}
	if n := g.nodes[nodeID]; n == nil || n.Socket(dir, socketID) == nil {
		return false
	}
	_, _, _, _, reason, _ := g.checkRebind(l, dir, nodeID, socketID)
	return reason == ""
}

// checkRebind returns the endpoints l would have after the rebind, or the
// reject reason and, for duplicates, the id of the existing link.
func (g *Graph) checkRebind(l *Link, dir Direction, nodeID, socketID string) (fromNode, fromSocket, toNode, toSocket, reason, other string) {
	fromNode, fromSocket, toNode, toSocket = l.FromNode, l.FromSocket, l.ToNode, l.ToSocket
	if dir == Output {
		fromNode, fromSocket = nodeID, socketID
	} else {
		toNode, toSocket = nodeID, socketID
	}
	if fromNode == toNode {
		return fromNode, fromSocket, toNode, toSocket, RejectSelfLink, ""
	}
	if dup := g.findLink(fromNode, fromSocket, toNode, toSocket); dup != nil && dup.ID != l.ID {
		return fromNode, fromSocket, toNode, toSocket, RejectDuplicate, dup.ID
	}
	return fromNode, fromSocket, toNode, toSocket, "", ""
}

// =============================================================================
// Consistency
// =============================================================================

// CheckConsistency reports every violation of the socket/link membership
// invariant: each id in a socket's list resolves to a link ending on that
// socket, and each link appears exactly once in both endpoint lists.
func (g *Graph) CheckConsistency() []string {
	var problems []string
	for _, n := range g.Nodes() {
		for _, dir := range []Direction{Input, Output} {
			for _, s := range n.Sockets(dir) {
				for _, id := range s.Links {
					l := g.links[id]
					switch {
					case l == nil:
						problems = append(problems, s.NodeID+"/"+s.ID+": unknown link "+id)
					case dir == Output && (l.FromNode != n.ID || l.FromSocket != s.ID):
						problems = append(problems, s.NodeID+"/"+s.ID+": link "+id+" does not start here")
					case dir == Input && (l.ToNode != n.ID || l.ToSocket != s.ID):
						problems = append(problems, s.NodeID+"/"+s.ID+": link "+id+" does not end here")
					}
				}
			}
		}
	}
	for _, l := range g.Links() {
		src, dst := g.outputSocket(l.FromNode, l.FromSocket), g.inputSocket(l.ToNode, l.ToSocket)
		if src == nil || countOf(src.Links, l.ID) != 1 {
			problems = append(problems, l.ID+": not listed once on source socket")
		}
		if dst == nil || countOf(dst.Links, l.ID) != 1 {
			problems = append(problems, l.ID+": not listed once on target socket")
		}
		if l.FromNode == l.ToNode {
			problems = append(problems, l.ID+": self-link")
		}
	}
	return problems
}

func countOf(ids []string, id string) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}
