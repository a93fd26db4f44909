package editor

import "math"

// Layout holds the node geometry used to derive socket positions from a
// node's stored position. Rendered nodes must follow the same metrics.
type Layout struct {
	NodeWidth    float64
	HeaderHeight float64
	RowPitch     float64
	ColumnPitch  float64
}

// DefaultLayout matches the stylesheet shipped with the web client.
func DefaultLayout() Layout {
	return Layout{
		NodeWidth:    160,
		HeaderHeight: 28,
		RowPitch:     22,
		ColumnPitch:  60,
	}
}

// Size returns the node's rendered width and height.
func (l Layout) Size(n *Node) (float64, float64) {
	ins, outs := float64(len(n.inputOrder)), float64(len(n.outputOrder))
	if n.Orientation == Vertical {
		w := math.Max(l.NodeWidth, l.ColumnPitch*math.Max(ins, outs))
		return w, l.HeaderHeight + 2*l.RowPitch
	}
	return l.NodeWidth, l.HeaderHeight + l.RowPitch*math.Max(1, math.Max(ins, outs))
}

// SocketOffset returns the centre of the index-th socket of the given
// direction, relative to the node's top-left corner. Horizontal nodes take
// inputs on the left edge and outputs on the right; vertical nodes take
// inputs on the top edge and outputs on the bottom.
func (l Layout) SocketOffset(n *Node, dir Direction, index int) Point {
	w, h := l.Size(n)
	slot := float64(index) + 0.5
	if n.Orientation == Vertical {
		if dir == Input {
			return Point{X: l.ColumnPitch * slot, Y: 0}
		}
		return Point{X: l.ColumnPitch * slot, Y: h}
	}
	y := l.HeaderHeight + l.RowPitch*slot
	if dir == Input {
		return Point{X: 0, Y: y}
	}
	return Point{X: w, Y: y}
}

// SocketPosition returns the workspace position of a socket handle.
func (l Layout) SocketPosition(n *Node, s *Socket) Point {
	off := l.SocketOffset(n, s.Direction, n.socketIndex(s))
	return Point{X: n.X + off.X, Y: n.Y + off.Y}
}
