// Package scene records the editor's visual projection as an element tree
// and turns every drawing call into an incremental render op. Browser
// clients apply the ops to their DOM; late joiners receive a full replay.
package scene

import (
	"sort"
	"strconv"
	"sync"

	"github.com/BaSui01/flowedit/editor"
)

// Op kinds.
const (
	OpClear           = "clear"
	OpTransform       = "transform"
	OpEditorClass     = "editorClass"
	OpCapture         = "capture"
	OpNodeCreate      = "nodeCreate"
	OpNodeMove        = "nodeMove"
	OpNodeUpdate      = "nodeUpdate"
	OpNodeClass       = "nodeClass"
	OpNodeRemove      = "nodeRemove"
	OpSocketCreate    = "socketCreate"
	OpSocketRemove    = "socketRemove"
	OpSocketHighlight = "socketHighlight"
	OpPathCreate      = "pathCreate"
	OpPathSet         = "pathSet"
	OpPathClass       = "pathClass"
	OpPathRemove      = "pathRemove"
)

// Op is one render instruction.
type Op struct {
	Op     string             `json:"op"`
	ID     string             `json:"id,omitempty"`
	Class  string             `json:"class,omitempty"`
	On     bool               `json:"on,omitempty"`
	Value  string             `json:"value,omitempty"`
	X      float64            `json:"x,omitempty"`
	Y      float64            `json:"y,omitempty"`
	Node   *editor.NodeView   `json:"node,omitempty"`
	Socket *editor.SocketView `json:"socket,omitempty"`
}

type nodeElem struct {
	view    editor.NodeView
	classes map[string]bool
}

type pathElem struct {
	d       string
	classes map[string]bool
}

type socketElem struct {
	view      editor.SocketView
	highlight editor.Highlight
}

// Scene implements editor.Renderer. It is safe for concurrent use, though
// the editor itself drives it from a single goroutine.
type Scene struct {
	mu sync.Mutex

	transform   string
	editorClass map[string]bool
	captured    bool
	nodes       map[string]*nodeElem
	sockets     map[editor.Handle]*socketElem
	paths       map[string]*pathElem
	handleSeq   int

	pending []Op
	// latest index in pending of coalescable ops, keyed by kind and id
	latest map[string]int
}

var _ editor.Renderer = (*Scene)(nil)

// New creates an empty scene.
func New() *Scene {
	s := &Scene{}
	s.reset()
	return s
}

func (s *Scene) reset() {
	s.transform = ""
	s.editorClass = make(map[string]bool)
	s.nodes = make(map[string]*nodeElem)
	s.sockets = make(map[editor.Handle]*socketElem)
	s.paths = make(map[string]*pathElem)
	s.pending = nil
	s.latest = make(map[string]int)
}

// =============================================================================
// Op queue
// =============================================================================

func (s *Scene) emit(op Op) {
	s.pending = append(s.pending, op)
}

// emitLatest queues an op that supersedes any earlier op with the same key.
func (s *Scene) emitLatest(op Op) {
	key := op.Op + "\x00" + op.ID
	if i, ok := s.latest[key]; ok {
		s.pending[i] = op
		return
	}
	s.latest[key] = len(s.pending)
	s.pending = append(s.pending, op)
}

// forget stops coalescing for id so later ops stay ordered after a
// structural change.
func (s *Scene) forget(id string) {
	for _, kind := range []string{OpNodeMove, OpPathSet} {
		delete(s.latest, kind+"\x00"+id)
	}
}

// Flush returns the ops queued since the last flush and empties the queue.
func (s *Scene) Flush() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.pending
	s.pending = nil
	s.latest = make(map[string]int)
	return ops
}

// Pending reports the number of queued ops.
func (s *Scene) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Replay returns the ops that rebuild the current tree on an empty client.
// Element order is deterministic.
func (s *Scene) Replay() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := []Op{{Op: OpClear}}
	if s.transform != "" {
		ops = append(ops, Op{Op: OpTransform, Value: s.transform})
	}
	for _, c := range sortedTrue(s.editorClass) {
		ops = append(ops, Op{Op: OpEditorClass, Class: c, On: true})
	}

	nodeIDs := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	for _, id := range nodeIDs {
		n := s.nodes[id]
		v := n.view
		ops = append(ops, Op{Op: OpNodeCreate, ID: id, Node: &v})
		for _, c := range sortedTrue(n.classes) {
			ops = append(ops, Op{Op: OpNodeClass, ID: id, Class: c, On: true})
		}
	}

	handles := make([]editor.Handle, 0, len(s.sockets))
	for h := range s.sockets {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handleLess(handles[i], handles[j]) })
	for _, h := range handles {
		el := s.sockets[h]
		v := el.view
		ops = append(ops, Op{Op: OpSocketCreate, ID: string(h), Socket: &v})
		if el.highlight != editor.HighlightNone {
			ops = append(ops, Op{Op: OpSocketHighlight, ID: string(h), Value: string(el.highlight)})
		}
	}

	pathIDs := make([]string, 0, len(s.paths))
	for id := range s.paths {
		pathIDs = append(pathIDs, id)
	}
	sort.Strings(pathIDs)
	for _, id := range pathIDs {
		p := s.paths[id]
		ops = append(ops, Op{Op: OpPathCreate, ID: id})
		for _, c := range sortedTrue(p.classes) {
			ops = append(ops, Op{Op: OpPathClass, ID: id, Class: c, On: true})
		}
		if p.d != "" {
			ops = append(ops, Op{Op: OpPathSet, ID: id, Value: p.d})
		}
	}
	return ops
}

// Captured reports whether the editor currently holds pointer capture.
func (s *Scene) Captured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// Path returns the current path data of a link.
func (s *Scene) Path(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[id]
	if !ok {
		return "", false
	}
	return p.d, true
}

// Counts returns the number of node, socket and path elements.
func (s *Scene) Counts() (nodes, sockets, paths int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.sockets), len(s.paths)
}

// =============================================================================
// editor.Renderer
// =============================================================================

func (s *Scene) SetTransform(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
	s.emitLatest(Op{Op: OpTransform, Value: t})
}

func (s *Scene) SetEditorClass(class string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editorClass[class] = on
	s.emit(Op{Op: OpEditorClass, Class: class, On: on})
}

func (s *Scene) SetPointerCapture(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captured == on {
		return
	}
	s.captured = on
	s.emit(Op{Op: OpCapture, On: on})
}

func (s *Scene) CreateNodeView(v editor.NodeView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[v.ID] = &nodeElem{view: v, classes: make(map[string]bool)}
	s.forget(v.ID)
	s.emit(Op{Op: OpNodeCreate, ID: v.ID, Node: &v})
}

func (s *Scene) MoveNodeView(id string, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	n.view.X, n.view.Y = x, y
	s.emitLatest(Op{Op: OpNodeMove, ID: id, X: x, Y: y})
}

func (s *Scene) UpdateNodeView(v editor.NodeView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[v.ID]
	if !ok {
		return
	}
	n.view = v
	s.forget(v.ID)
	s.emit(Op{Op: OpNodeUpdate, ID: v.ID, Node: &v})
}

func (s *Scene) SetNodeClass(id, class string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	n.classes[class] = on
	s.emit(Op{Op: OpNodeClass, ID: id, Class: class, On: on})
}

func (s *Scene) RemoveNodeView(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	s.forget(id)
	s.emit(Op{Op: OpNodeRemove, ID: id})
}

func (s *Scene) CreateSocketView(v editor.SocketView) editor.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleSeq++
	h := editor.Handle("sock-" + strconv.Itoa(s.handleSeq))
	s.sockets[h] = &socketElem{view: v}
	s.emit(Op{Op: OpSocketCreate, ID: string(h), Socket: &v})
	return h
}

func (s *Scene) RemoveSocketView(h editor.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sockets[h]; !ok {
		return
	}
	delete(s.sockets, h)
	s.emit(Op{Op: OpSocketRemove, ID: string(h)})
}

func (s *Scene) SetSocketHighlight(h editor.Handle, hl editor.Highlight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.sockets[h]
	if !ok || el.highlight == hl {
		return
	}
	el.highlight = hl
	s.emit(Op{Op: OpSocketHighlight, ID: string(h), Value: string(hl)})
}

func (s *Scene) CreatePath(id, class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &pathElem{classes: make(map[string]bool)}
	if class != "" {
		p.classes[class] = true
	}
	s.paths[id] = p
	s.forget(id)
	s.emit(Op{Op: OpPathCreate, ID: id, Class: class})
}

func (s *Scene) SetPath(id, d string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[id]
	if !ok {
		return
	}
	p.d = d
	s.emitLatest(Op{Op: OpPathSet, ID: id, Value: d})
}

func (s *Scene) SetPathClass(id, class string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[id]
	if !ok {
		return
	}
	p.classes[class] = on
	s.emit(Op{Op: OpPathClass, ID: id, Class: class, On: on})
}

func (s *Scene) RemovePath(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[id]; !ok {
		return
	}
	delete(s.paths, id)
	s.forget(id)
	s.emit(Op{Op: OpPathRemove, ID: id})
}

// Clear drops the whole tree. Queued ops are replaced by a single clear.
func (s *Scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	transform, captured := s.transform, s.captured
	stale := sortedTrue(s.editorClass)
	s.reset()
	s.transform, s.captured = transform, captured
	s.emit(Op{Op: OpClear})
	// clear leaves the editor element itself alone on the client
	for _, c := range stale {
		s.emit(Op{Op: OpEditorClass, Class: c})
	}
}

func sortedTrue(m map[string]bool) []string {
	var out []string
	for k, on := range m {
		if on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func handleLess(a, b editor.Handle) bool {
	ai, aerr := strconv.Atoi(string(a)[len("sock-"):])
	bi, berr := strconv.Atoi(string(b)[len("sock-"):])
	if aerr != nil || berr != nil {
		return a < b
	}
	return ai < bi
}
