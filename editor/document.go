package editor

import (
	"cmp"
	"slices"

	"github.com/BaSui01/flowedit/types"

	"go.uber.org/zap"
)

// Load replaces the workspace with the graph stored in wf. Nodes whose
// agent is unknown are skipped, and links that fail validation are
// dropped; both are logged.
func (e *Editor) Load(wf *types.Workflow) {
	e.Clear()
	if wf == nil {
		return
	}

	vs := wf.ViewState
	e.Viewport.Restore(vs.PanX, vs.PanY, vs.ZoomLevel)
	e.flow = ParseOrientation(vs.FlowDirection)
	e.Graph.NodeSequence().RestoreFrom(vs.NodeIDCounter)
	e.Graph.LinkSequence().RestoreFrom(vs.LinkIDCounter)
	e.renderer.SetTransform(e.Viewport.Transform())

	for _, id := range sortedKeys(wf.OrchestrationGraph.Nodes) {
		nd := wf.OrchestrationGraph.Nodes[id]
		agent := wf.Agents[nd.AgentID]
		if agent == nil {
			e.logger.Warn("agent not found for node, skipping node",
				zap.String("node_id", nd.ID), zap.String("agent_id", nd.AgentID))
			continue
		}
		spec := agentNodeSpec(nd.ID, agent, &Point{X: nd.X, Y: nd.Y})
		if len(spec.Outputs) == 0 {
			spec.Outputs = []SocketDef{{Name: DefaultOutputName, Type: AnyType}}
		}
		e.AddNode(spec)
	}

	for _, id := range sortedKeys(wf.OrchestrationGraph.Links) {
		ld := wf.OrchestrationGraph.Links[id]
		if e.Graph.CreateLink(ld.FromNodeID, ld.FromSocketID, ld.ToNodeID, ld.ToSocketID, ld.ID) == nil {
			e.logger.Warn("persisted link dropped on load", zap.String("link_id", ld.ID))
		}
	}

	e.logger.Debug("layout loaded",
		zap.String("workflow_id", wf.ID),
		zap.Int("nodes", e.Graph.NodeCount()),
		zap.Int("links", e.Graph.LinkCount()))
}

// Snapshot projects the workspace into its persisted form. Nodes without
// an agent are skipped, as are links touching them.
func (e *Editor) Snapshot() (types.OrchestrationGraph, types.ViewState) {
	graph := types.OrchestrationGraph{
		Nodes: make(map[string]types.GraphNode),
		Links: make(map[string]types.GraphLink),
	}
	for _, n := range e.Graph.Nodes() {
		if n.AgentID == "" {
			e.logger.Warn("node has no linked agent, skipping save", zap.String("node_id", n.ID))
			continue
		}
		graph.Nodes[n.ID] = types.GraphNode{ID: n.ID, AgentID: n.AgentID, X: n.X, Y: n.Y}
	}
	for _, l := range e.Graph.Links() {
		_, fromOK := graph.Nodes[l.FromNode]
		_, toOK := graph.Nodes[l.ToNode]
		if !fromOK || !toOK {
			continue
		}
		graph.Links[l.ID] = types.GraphLink{
			ID:           l.ID,
			FromNodeID:   l.FromNode,
			FromSocketID: l.FromSocket,
			ToNodeID:     l.ToNode,
			ToSocketID:   l.ToSocket,
		}
	}

	view := types.ViewState{
		PanX:          e.Viewport.PanX,
		PanY:          e.Viewport.PanY,
		ZoomLevel:     e.Viewport.Zoom,
		FlowDirection: string(e.flow),
		NodeIDCounter: e.Graph.NodeSequence().Value(),
		LinkIDCounter: e.Graph.LinkSequence().Value(),
	}
	return graph, view
}

// SaveTo writes the workspace snapshot into wf.
func (e *Editor) SaveTo(wf *types.Workflow) {
	wf.OrchestrationGraph, wf.ViewState = e.Snapshot()
}

// DeleteAgentFromWorkflow removes an agent from a stored workflow along
// with the nodes it backs and every link touching those nodes. It reports
// whether the agent existed.
func DeleteAgentFromWorkflow(wf *types.Workflow, agentID string) bool {
	if wf == nil || wf.Agents[agentID] == nil {
		return false
	}
	doomed := make(map[string]struct{})
	for id, n := range wf.OrchestrationGraph.Nodes {
		if n.AgentID == agentID {
			doomed[id] = struct{}{}
		}
	}
	for id, l := range wf.OrchestrationGraph.Links {
		_, from := doomed[l.FromNodeID]
		_, to := doomed[l.ToNodeID]
		if from || to {
			delete(wf.OrchestrationGraph.Links, id)
		}
	}
	for id := range doomed {
		delete(wf.OrchestrationGraph.Nodes, id)
	}
	delete(wf.Agents, agentID)
	return true
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
