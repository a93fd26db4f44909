package types

import "time"

// Flow directions shared by nodes and the persisted view state.
const (
	FlowHorizontal = "horizontal"
	FlowVertical   = "vertical"
)

// Workflow is the persisted workflow document.
type Workflow struct {
	ID                 string              `json:"id" bson:"_id"`
	Name               string              `json:"name" bson:"name"`
	Query              string              `json:"query,omitempty" bson:"query,omitempty"`
	ServiceID          string              `json:"service_id,omitempty" bson:"service_id,omitempty"`
	Agents             map[string]*Agent   `json:"agents" bson:"agents"`
	FlowDirectorID     string              `json:"flow_director_agent_id,omitempty" bson:"flow_director_agent_id,omitempty"`
	FlowMasterID       string              `json:"flow_master_agent_id,omitempty" bson:"flow_master_agent_id,omitempty"`
	OrchestrationGraph OrchestrationGraph  `json:"orchestration_graph" bson:"orchestration_graph"`
	ViewState          ViewState           `json:"view_state" bson:"view_state"`
	Arguments          map[string]Argument `json:"arguments,omitempty" bson:"arguments,omitempty"`
	Outputs            *OutputSchema       `json:"outputs,omitempty" bson:"outputs,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at,omitempty" bson:"updated_at"`
}

// OrchestrationGraph is the persisted projection of the editor graph.
type OrchestrationGraph struct {
	Nodes map[string]GraphNode `json:"nodes" bson:"nodes"`
	Links map[string]GraphLink `json:"links" bson:"links"`
}

// GraphNode is one persisted node entry.
type GraphNode struct {
	ID      string  `json:"id" bson:"id"`
	AgentID string  `json:"agent_id" bson:"agent_id"`
	X       float64 `json:"x" bson:"x"`
	Y       float64 `json:"y" bson:"y"`
}

// GraphLink is one persisted link entry.
type GraphLink struct {
	ID           string `json:"id" bson:"id"`
	FromNodeID   string `json:"from_node_id" bson:"from_node_id"`
	FromSocketID string `json:"from_socket_id" bson:"from_socket_id"`
	ToNodeID     string `json:"to_node_id" bson:"to_node_id"`
	ToSocketID   string `json:"to_socket_id" bson:"to_socket_id"`
}

// ViewState carries the viewport and id counters between sessions.
type ViewState struct {
	PanX          float64 `json:"panX" bson:"panX"`
	PanY          float64 `json:"panY" bson:"panY"`
	ZoomLevel     float64 `json:"zoomLevel" bson:"zoomLevel"`
	FlowDirection string  `json:"flowDirection" bson:"flowDirection"`
	NodeIDCounter int     `json:"nodeIdCounter" bson:"nodeIdCounter"`
	LinkIDCounter int     `json:"linkIdCounter" bson:"linkIdCounter"`
}

// Argument is a named runtime argument a workflow exposes on execution.
type Argument struct {
	Type        string `json:"type,omitempty" bson:"type,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Default     string `json:"default,omitempty" bson:"default,omitempty"`
	Exposed     bool   `json:"exposed,omitempty" bson:"exposed,omitempty"`
}

// WorkflowSummary is the list-view projection of a workflow.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewWorkflow returns an empty workflow with the default view state.
func NewWorkflow(name string) *Workflow {
	return &Workflow{
		Name:   name,
		Agents: make(map[string]*Agent),
		OrchestrationGraph: OrchestrationGraph{
			Nodes: make(map[string]GraphNode),
			Links: make(map[string]GraphLink),
		},
		ViewState: DefaultViewState(),
	}
}

// DefaultViewState is the view state of a fresh workspace.
func DefaultViewState() ViewState {
	return ViewState{ZoomLevel: 1.0, FlowDirection: FlowHorizontal}
}

// Summary projects the workflow for list views.
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{ID: w.ID, Name: w.Name, UpdatedAt: w.UpdatedAt}
}

// Normalize fills nil maps and a zero zoom so callers can index freely.
func (w *Workflow) Normalize() {
	if w.Agents == nil {
		w.Agents = make(map[string]*Agent)
	}
	if w.OrchestrationGraph.Nodes == nil {
		w.OrchestrationGraph.Nodes = make(map[string]GraphNode)
	}
	if w.OrchestrationGraph.Links == nil {
		w.OrchestrationGraph.Links = make(map[string]GraphLink)
	}
	if w.ViewState.ZoomLevel == 0 {
		w.ViewState.ZoomLevel = 1.0
	}
	if w.ViewState.FlowDirection == "" {
		w.ViewState.FlowDirection = FlowHorizontal
	}
}
