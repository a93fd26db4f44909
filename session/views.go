package session

import "sync"

// Top-level views of the editor application.
const (
	ViewWorkflows = "workflows"
	ViewEditor    = "editor"
	ViewAgent     = "agent"
)

// Views tracks which top-level view is visible and runs the hooks
// registered for a view each time it is entered.
type Views struct {
	mu      sync.Mutex
	current string
	hooks   map[string][]func(prev string)
	changed []func(prev, next string)
}

// NewViews starts on the workflow list.
func NewViews() *Views {
	return &Views{current: ViewWorkflows, hooks: make(map[string][]func(string))}
}

// Current returns the visible view.
func (v *Views) Current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// OnEnter registers fn to run when view becomes visible.
func (v *Views) OnEnter(view string, fn func(prev string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hooks[view] = append(v.hooks[view], fn)
}

// OnChange registers fn to run on every view change.
func (v *Views) OnChange(fn func(prev, next string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.changed = append(v.changed, fn)
}

// Show makes view visible. Showing the current view again is a no-op.
// Hooks run outside the lock.
func (v *Views) Show(view string) {
	v.mu.Lock()
	prev := v.current
	if prev == view {
		v.mu.Unlock()
		return
	}
	v.current = view
	hooks := append([]func(string){}, v.hooks[view]...)
	listeners := append([]func(string, string){}, v.changed...)
	v.mu.Unlock()

	for _, fn := range hooks {
		fn(prev)
	}
	for _, fn := range listeners {
		fn(prev, view)
	}
}
