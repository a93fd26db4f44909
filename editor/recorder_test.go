package editor

import (
	"strconv"
	"testing"

	"go.uber.org/zap"
)

// recorder is a Renderer that keeps the latest visual state for assertions.
type recorder struct {
	transform   string
	captured    bool
	editorClass map[string]bool
	nodes       map[string]NodeView
	nodeClass   map[string]map[string]bool
	sockets     map[Handle]SocketView
	highlights  map[Handle]Highlight
	paths       map[string]string
	pathClass   map[string]map[string]bool
	handleSeq   int
	pathSets    map[string]int
	cleared     int
}

func newRecorder() *recorder {
	r := &recorder{}
	r.reset()
	return r
}

func (r *recorder) reset() {
	r.editorClass = map[string]bool{}
	r.nodes = map[string]NodeView{}
	r.nodeClass = map[string]map[string]bool{}
	r.sockets = map[Handle]SocketView{}
	r.highlights = map[Handle]Highlight{}
	r.paths = map[string]string{}
	r.pathClass = map[string]map[string]bool{}
	r.pathSets = map[string]int{}
}

func (r *recorder) SetTransform(t string) { r.transform = t }
func (r *recorder) SetEditorClass(c string, on bool) { r.editorClass[c] = on }
func (r *recorder) SetPointerCapture(on bool) { r.captured = on }
func (r *recorder) CreateNodeView(v NodeView) { r.nodes[v.ID] = v }
func (r *recorder) UpdateNodeView(v NodeView) { r.nodes[v.ID] = v }
func (r *recorder) RemoveNodeView(id string) { delete(r.nodes, id) }
func (r *recorder) RemoveSocketView(h Handle) { delete(r.sockets, h) }
func (r *recorder) SetSocketHighlight(h Handle, hl Highlight) { r.highlights[h] = hl }
func (r *recorder) RemovePath(id string) {
	delete(r.paths, id)
	delete(r.pathClass, id)
}

func (r *recorder) MoveNodeView(id string, x, y float64) {
	v := r.nodes[id]
	v.X, v.Y = x, y
	r.nodes[id] = v
}

func (r *recorder) SetNodeClass(id, class string, on bool) {
	if r.nodeClass[id] == nil {
		r.nodeClass[id] = map[string]bool{}
	}
	r.nodeClass[id][class] = on
}

func (r *recorder) CreateSocketView(v SocketView) Handle {
	r.handleSeq++
	h := Handle("h" + strconv.Itoa(r.handleSeq))
	r.sockets[h] = v
	return h
}

func (r *recorder) CreatePath(id, class string) {
	r.paths[id] = ""
	r.pathClass[id] = map[string]bool{}
	if class != "" {
		r.pathClass[id][class] = true
	}
}

func (r *recorder) SetPath(id, d string) {
	r.paths[id] = d
	r.pathSets[id]++
}

func (r *recorder) SetPathClass(id, class string, on bool) {
	if r.pathClass[id] == nil {
		r.pathClass[id] = map[string]bool{}
	}
	r.pathClass[id][class] = on
}

func (r *recorder) Clear() {
	r.cleared++
	r.reset()
}

// newTestEditor returns an editor over an 800x600 viewport at the origin.
func newTestEditor(t *testing.T) (*Editor, *recorder) {
	t.Helper()
	r := newRecorder()
	e := New(r, Options{}, zap.NewNop())
	e.Resize(0, 0, 800, 600)
	return e, r
}

func at(x, y float64) *Point { return &Point{X: x, Y: y} }

// screenOf returns the screen position of a socket handle.
func screenOf(e *Editor, nodeID string, dir Direction, socketID string) Point {
	n := e.Graph.Node(nodeID)
	return e.Viewport.WorkspaceToScreen(e.Graph.Layout().SocketPosition(n, n.Socket(dir, socketID)))
}

func socketTarget(nodeID string, dir Direction, socketID string) Target {
	return Target{Kind: TargetSocket, NodeID: nodeID, SocketID: socketID, Direction: dir}
}
