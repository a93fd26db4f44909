package editor

import (
	"testing"

	"github.com/BaSui01/flowedit/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow() *types.Workflow {
	wf := types.NewWorkflow("research")
	wf.ID = "wf-1"

	writer := types.NewAgent("agent-writer", "Writer")
	writer.Outputs.Format.Properties["draft"] = types.OutputProperty{Type: "string"}
	writer.Outputs.Format.Properties["notes"] = types.OutputProperty{}
	wf.Agents[writer.ID] = writer
	wf.Agents["agent-review"] = types.NewAgent("agent-review", "Reviewer")

	wf.OrchestrationGraph.Nodes["ui-node-3"] = types.GraphNode{ID: "ui-node-3", AgentID: "agent-writer", X: 10, Y: 20}
	wf.OrchestrationGraph.Nodes["ui-node-7"] = types.GraphNode{ID: "ui-node-7", AgentID: "agent-review", X: 400, Y: 20}
	wf.OrchestrationGraph.Links["ui-link-2"] = types.GraphLink{
		ID: "ui-link-2", FromNodeID: "ui-node-3", FromSocketID: "output-draft",
		ToNodeID: "ui-node-7", ToSocketID: "input-In",
	}
	wf.ViewState = types.ViewState{
		PanX: -40, PanY: 15, ZoomLevel: 1.5,
		FlowDirection: types.FlowVertical,
		NodeIDCounter: 8, LinkIDCounter: 3,
	}
	return wf
}

func TestLoad_RebuildsWorkspace(t *testing.T) {
	e, r := newTestEditor(t)
	e.Load(sampleWorkflow())

	assert.Equal(t, -40.0, e.Viewport.PanX)
	assert.Equal(t, 1.5, e.Viewport.Zoom)
	assert.Equal(t, "translate(-40px, 15px) scale(1.5)", r.transform)
	assert.Equal(t, Vertical, e.FlowDirection())

	writer := e.Graph.Node("ui-node-3")
	require.NotNil(t, writer)
	assert.Equal(t, "Writer", writer.Title)
	assert.Equal(t, Vertical, writer.Orientation)
	assert.Equal(t, []string{"input-In"}, ids(writer.Sockets(Input)))
	assert.Equal(t, []string{"output-draft", "output-notes"}, ids(writer.Sockets(Output)))
	assert.Equal(t, "string", writer.Outputs["output-draft"].Type)
	assert.Equal(t, AnyType, writer.Outputs["output-notes"].Type)

	reviewer := e.Graph.Node("ui-node-7")
	require.NotNil(t, reviewer)
	assert.Equal(t, []string{"output-Out"}, ids(reviewer.Sockets(Output)), "agents without outputs get the default")

	l := e.Graph.Link("ui-link-2")
	require.NotNil(t, l)
	assert.NotEmpty(t, r.paths["ui-link-2"])
	assert.Empty(t, e.Graph.CheckConsistency())

	assert.Equal(t, "ui-node-8", e.Graph.NodeSequence().Next())
	assert.Equal(t, "ui-link-3", e.Graph.LinkSequence().Next())
}

func ids(sockets []*Socket) []string {
	out := make([]string, 0, len(sockets))
	for _, s := range sockets {
		out = append(out, s.ID)
	}
	return out
}

func TestLoad_CountersNeverTrailPersistedIDs(t *testing.T) {
	wf := sampleWorkflow()
	wf.ViewState.NodeIDCounter = 0
	wf.ViewState.LinkIDCounter = 0

	e, _ := newTestEditor(t)
	e.Load(wf)

	n := e.AddNode(NodeSpec{})
	require.NotNil(t, n)
	assert.Equal(t, "ui-node-8", n.ID)
	assert.Equal(t, 3, e.Graph.LinkSequence().Value())
}

func TestLoad_SkipsUnknownAgentsAndBrokenLinks(t *testing.T) {
	wf := sampleWorkflow()
	wf.OrchestrationGraph.Nodes["ui-node-9"] = types.GraphNode{ID: "ui-node-9", AgentID: "ghost"}
	wf.OrchestrationGraph.Links["ui-link-4"] = types.GraphLink{
		ID: "ui-link-4", FromNodeID: "ui-node-9", FromSocketID: "output-Out",
		ToNodeID: "ui-node-7", ToSocketID: "input-In",
	}
	wf.OrchestrationGraph.Links["ui-link-5"] = types.GraphLink{
		ID: "ui-link-5", FromNodeID: "ui-node-3", FromSocketID: "output-missing",
		ToNodeID: "ui-node-7", ToSocketID: "input-In",
	}

	e, _ := newTestEditor(t)
	e.Load(wf)

	assert.Equal(t, 2, e.Graph.NodeCount())
	assert.Nil(t, e.Graph.Node("ui-node-9"))
	assert.Equal(t, 1, e.Graph.LinkCount())
	assert.NotNil(t, e.Graph.Link("ui-link-2"))
	assert.Empty(t, e.Graph.CheckConsistency())
}

func TestLoad_ReplacesPreviousWorkspace(t *testing.T) {
	e, r := newTestEditor(t)
	e.AddNode(NodeSpec{ID: "scratch"})
	e.Controller.PointerDown(down(1, 1, canvas))

	e.Load(sampleWorkflow())

	assert.Nil(t, e.Graph.Node("scratch"))
	assert.True(t, e.Controller.Idle())
	assert.Equal(t, 1, r.cleared)

	e.Load(nil)
	assert.Zero(t, e.Graph.NodeCount())
	assert.Equal(t, "translate(0px, 0px) scale(1)", r.transform)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	wf := sampleWorkflow()
	e, _ := newTestEditor(t)
	e.Load(wf)

	graph, view := e.Snapshot()
	assert.Equal(t, wf.OrchestrationGraph, graph)
	assert.Equal(t, wf.ViewState, view)

	// A second editor loading the snapshot sees the same workspace.
	saved := sampleWorkflow()
	e.SaveTo(saved)
	other, _ := newTestEditor(t)
	other.Load(saved)
	graph2, view2 := other.Snapshot()
	assert.Equal(t, graph, graph2)
	assert.Equal(t, view, view2)
}

func TestSnapshot_TracksEdits(t *testing.T) {
	e, _ := newTestEditor(t)
	e.Load(sampleWorkflow())

	e.Graph.MoveNode("ui-node-3", 55, 66)
	added := e.AddAgentNode(types.NewAgent("agent-review", "Reviewer"), at(0, 300))
	require.NotNil(t, added)
	l := e.Graph.CreateLink("ui-node-3", "output-notes", added.ID, "input-In", "")
	require.NotNil(t, l)
	e.AddNode(NodeSpec{}) // no agent
	e.Controller.Wheel(0, 0, -100)

	graph, view := e.Snapshot()
	assert.Equal(t, types.GraphNode{ID: "ui-node-3", AgentID: "agent-writer", X: 55, Y: 66}, graph.Nodes["ui-node-3"])
	assert.Len(t, graph.Nodes, 3)
	assert.Contains(t, graph.Links, l.ID)
	assert.Equal(t, "ui-link-3", l.ID)
	assert.Equal(t, 10, view.NodeIDCounter)
	assert.Equal(t, 4, view.LinkIDCounter)
	assert.InDelta(t, 1.65, view.ZoomLevel, 1e-9)
}

func TestSnapshot_SkipsAgentlessNodes(t *testing.T) {
	e, _, _, _ := twoNodes(t)
	e.Graph.Node("A").AgentID = "agent-a"
	require.NotNil(t, e.Graph.CreateLink("A", "output-Out", "B", "input-In", ""))

	graph, _ := e.Snapshot()
	assert.Len(t, graph.Nodes, 1)
	assert.Empty(t, graph.Links)
}

func TestDeleteAgent_RemovesBackedNodesAndLinks(t *testing.T) {
	e, _ := newTestEditor(t)
	for _, spec := range []NodeSpec{
		{ID: "n1", AgentID: "doomed", Position: at(0, 0)},
		{ID: "n2", AgentID: "doomed", Position: at(300, 0)},
		{ID: "n3", AgentID: "keep", Position: at(0, 200)},
		{ID: "n4", AgentID: "other", Position: at(300, 200)},
	} {
		require.NotNil(t, e.AddNode(spec))
	}
	require.NotNil(t, e.Graph.CreateLink("n1", "output-Out", "n2", "input-In", "doomed-link"))
	require.NotNil(t, e.Graph.CreateLink("n3", "output-Out", "n4", "input-In", "kept-link"))

	assert.Equal(t, 2, e.DeleteAgent("doomed"))

	assert.Nil(t, e.Graph.Node("n1"))
	assert.Nil(t, e.Graph.Node("n2"))
	assert.Nil(t, e.Graph.Link("doomed-link"))
	assert.NotNil(t, e.Graph.Node("n3"))
	assert.NotNil(t, e.Graph.Node("n4"))
	assert.NotNil(t, e.Graph.Link("kept-link"))
	assert.Equal(t, []string{"kept-link"}, e.Graph.Node("n4").Inputs["input-In"].Links)
	assert.Empty(t, e.Graph.CheckConsistency())

	assert.Zero(t, e.DeleteAgent("doomed"))
}

func TestDeleteAgentFromWorkflow(t *testing.T) {
	wf := sampleWorkflow()
	wf.Agents["agent-x"] = types.NewAgent("agent-x", "X")
	wf.OrchestrationGraph.Nodes["ui-node-1"] = types.GraphNode{ID: "ui-node-1", AgentID: "agent-x"}
	wf.OrchestrationGraph.Links["ui-link-0"] = types.GraphLink{
		ID: "ui-link-0", FromNodeID: "ui-node-3", FromSocketID: "output-notes",
		ToNodeID: "ui-node-1", ToSocketID: "input-In",
	}

	assert.True(t, DeleteAgentFromWorkflow(wf, "agent-x"))
	assert.NotContains(t, wf.Agents, "agent-x")
	assert.NotContains(t, wf.OrchestrationGraph.Nodes, "ui-node-1")
	assert.NotContains(t, wf.OrchestrationGraph.Links, "ui-link-0")
	assert.Contains(t, wf.OrchestrationGraph.Links, "ui-link-2")
	assert.Len(t, wf.OrchestrationGraph.Nodes, 2)

	assert.False(t, DeleteAgentFromWorkflow(wf, "agent-x"))
	assert.False(t, DeleteAgentFromWorkflow(nil, "agent-x"))
}

func TestSetFlowDirection_AppliesToAllNodes(t *testing.T) {
	e, _, a, b := twoNodes(t)
	require.NotNil(t, e.Graph.CreateLink("A", "output-Out", "B", "input-In", "L"))

	e.SetFlowDirection(Vertical)
	assert.Equal(t, Vertical, a.Orientation)
	assert.Equal(t, Vertical, b.Orientation)
	assert.Equal(t, Vertical, e.AddNode(NodeSpec{}).Orientation)

	c, ok := e.Graph.ReconcileLink("L")
	require.True(t, ok)
	assert.Equal(t, Point{X: 30, Y: 72}, c.Start)
	assert.Equal(t, Point{X: 430, Y: 0}, c.End)
}
