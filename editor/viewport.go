package editor

import (
	"fmt"
	"strconv"
)

// Zoom limits and wheel sensitivity used when no overrides are configured.
const (
	DefaultMinZoom         = 0.2
	DefaultMaxZoom         = 5.0
	DefaultZoomSensitivity = 0.001
)

// Viewport is the pan/zoom transform between screen and workspace space.
// Screen coordinates are client pixels; Origin is the editor's top-left
// corner in the same space.
type Viewport struct {
	PanX float64
	PanY float64
	Zoom float64

	OriginX float64
	OriginY float64
	Width   float64
	Height  float64

	MinZoom float64
	MaxZoom float64
}

// NewViewport creates a viewport at the identity transform. Non-positive
// limits fall back to the defaults.
func NewViewport(minZoom, maxZoom float64) *Viewport {
	if minZoom <= 0 {
		minZoom = DefaultMinZoom
	}
	if maxZoom <= 0 || maxZoom < minZoom {
		maxZoom = DefaultMaxZoom
	}
	return &Viewport{Zoom: 1.0, MinZoom: minZoom, MaxZoom: maxZoom}
}

// ScreenToWorkspace maps a screen point into workspace coordinates.
func (v *Viewport) ScreenToWorkspace(sx, sy float64) Point {
	return Point{
		X: (sx - v.OriginX - v.PanX) / v.Zoom,
		Y: (sy - v.OriginY - v.PanY) / v.Zoom,
	}
}

// WorkspaceToScreen is the inverse of ScreenToWorkspace.
func (v *Viewport) WorkspaceToScreen(p Point) Point {
	return Point{
		X: p.X*v.Zoom + v.PanX + v.OriginX,
		Y: p.Y*v.Zoom + v.PanY + v.OriginY,
	}
}

// Pan shifts the view by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// ZoomAt scales the view by (1+delta) around the screen point (sx, sy),
// keeping the workspace point under it fixed. It reports whether the zoom
// changed; a clamped result equal to the current zoom is a no-op.
func (v *Viewport) ZoomAt(sx, sy, delta float64) bool {
	anchor := v.ScreenToWorkspace(sx, sy)
	next := v.clamp(v.Zoom * (1 + delta))
	if next == v.Zoom {
		return false
	}
	v.Zoom = next
	v.PanX = sx - v.OriginX - anchor.X*next
	v.PanY = sy - v.OriginY - anchor.Y*next
	return true
}

// Reset returns to pan (0,0) and zoom 1.
func (v *Viewport) Reset() {
	v.PanX, v.PanY, v.Zoom = 0, 0, 1.0
}

// Restore applies a persisted pan/zoom, clamping the zoom into range.
func (v *Viewport) Restore(panX, panY, zoom float64) {
	if zoom == 0 {
		zoom = 1.0
	}
	v.PanX, v.PanY, v.Zoom = panX, panY, v.clamp(zoom)
}

// Resize records the editor's on-screen rectangle.
func (v *Viewport) Resize(originX, originY, width, height float64) {
	v.OriginX, v.OriginY = originX, originY
	v.Width, v.Height = width, height
}

// Center returns the workspace point under the middle of the editor.
func (v *Viewport) Center() Point {
	return v.ScreenToWorkspace(v.OriginX+v.Width/2, v.OriginY+v.Height/2)
}

// Transform renders the CSS transform applied to the workspace layers.
func (v *Viewport) Transform() string {
	return fmt.Sprintf("translate(%spx, %spx) scale(%s)", fmtFloat(v.PanX), fmtFloat(v.PanY), fmtFloat(v.Zoom))
}

func (v *Viewport) clamp(z float64) float64 {
	if z < v.MinZoom {
		return v.MinZoom
	}
	if z > v.MaxZoom {
		return v.MaxZoom
	}
	return z
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
