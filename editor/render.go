package editor

import "strconv"

// Handle is an opaque reference to a rendered socket element.
type Handle string

// Highlight is the hover state of a socket handle.
type Highlight string

const (
	HighlightNone           Highlight = ""
	HighlightValid          Highlight = "valid"
	HighlightInvalid        Highlight = "invalid"
	HighlightNeutral        Highlight = "neutral"
	HighlightValidReconnect Highlight = "valid-reconnect"
)

// CSS classes toggled by the controller.
const (
	ClassPanning      = "panning"
	ClassReconnecting = "reconnecting"
	ClassDragging     = "dragging"
	ClassLinkMoving   = "reconnecting-link"
	ClassTempLink     = "dragging-link-temp"
)

// NodeView is the render description of a node.
type NodeView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	AgentID     string      `json:"agent_id,omitempty"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	Orientation Orientation `json:"orientation"`
}

// SocketView is the render description of a socket handle.
type SocketView struct {
	NodeID      string    `json:"node_id"`
	SocketID    string    `json:"socket_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Direction   Direction `json:"direction"`
	Index       int       `json:"index"`
	HandleFirst bool      `json:"handle_first"`
	// Offset is the handle centre relative to the node's top-left corner.
	Offset Point `json:"offset"`
}

// Renderer is the write-only visual projection of the editor. The model
// never reads positions back from it.
type Renderer interface {
	SetTransform(transform string)
	SetEditorClass(class string, on bool)
	SetPointerCapture(on bool)

	CreateNodeView(v NodeView)
	MoveNodeView(nodeID string, x, y float64)
	UpdateNodeView(v NodeView)
	SetNodeClass(nodeID, class string, on bool)
	RemoveNodeView(nodeID string)

	CreateSocketView(v SocketView) Handle
	RemoveSocketView(h Handle)
	SetSocketHighlight(h Handle, hl Highlight)

	CreatePath(id, class string)
	SetPath(id, d string)
	SetPathClass(id, class string, on bool)
	RemovePath(id string)

	Clear()
}

// NopRenderer discards all drawing calls.
type NopRenderer struct {
	handles int
}

func (r *NopRenderer) SetTransform(string) {}
func (r *NopRenderer) SetEditorClass(string, bool) {}
func (r *NopRenderer) SetPointerCapture(bool) {}
func (r *NopRenderer) CreateNodeView(NodeView) {}
func (r *NopRenderer) MoveNodeView(string, float64, float64) {}
func (r *NopRenderer) UpdateNodeView(NodeView) {}
func (r *NopRenderer) SetNodeClass(string, string, bool) {}
func (r *NopRenderer) RemoveNodeView(string) {}
func (r *NopRenderer) RemoveSocketView(Handle) {}
func (r *NopRenderer) SetSocketHighlight(Handle, Highlight) {}
func (r *NopRenderer) CreatePath(string, string) {}
func (r *NopRenderer) SetPath(string, string) {}
func (r *NopRenderer) SetPathClass(string, string, bool) {}
func (r *NopRenderer) RemovePath(string) {}
func (r *NopRenderer) Clear() {}

// CreateSocketView returns a unique handle so regenerated sockets are
// distinguishable even without a real view.
func (r *NopRenderer) CreateSocketView(SocketView) Handle {
	r.handles++
	return Handle("nop-" + strconv.Itoa(r.handles))
}
