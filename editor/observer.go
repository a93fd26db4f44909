package editor

// GestureKind names an interaction state.
type GestureKind string

const (
	GestureIdle         GestureKind = "idle"
	GesturePanning      GestureKind = "panning"
	GestureDraggingNode GestureKind = "dragging_node"
	GestureLinking      GestureKind = "linking"
	GestureReconnecting GestureKind = "reconnecting"
)

// Gesture outcomes reported when a gesture ends.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// Observer receives editor lifecycle notifications. Implementations must
// not call back into the editor.
type Observer interface {
	GestureStarted(kind GestureKind)
	GestureEnded(kind GestureKind, outcome string)
	NodeCreated()
	LinkCreated()
	LinkRejected(reason string)
	LinkEvicted()
}

type nopObserver struct{}

func (nopObserver) GestureStarted(GestureKind) {}
func (nopObserver) GestureEnded(GestureKind, string) {}
func (nopObserver) NodeCreated() {}
func (nopObserver) LinkCreated() {}
func (nopObserver) LinkRejected(string) {}
func (nopObserver) LinkEvicted() {}

// Link rejection reasons.
const (
	RejectDuplicate     = "duplicate"
	RejectSelfLink      = "self_link"
	RejectMissingSocket = "missing_socket"
	RejectIDInUse       = "id_in_use"
)
