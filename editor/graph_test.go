package editor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCreateNode_DefaultSockets(t *testing.T) {
	e, r := newTestEditor(t)

	n := e.AddNode(NodeSpec{AgentID: "a1"})
	require.NotNil(t, n)

	assert.Equal(t, "ui-node-0", n.ID)
	assert.Equal(t, "Node 0", n.Title)
	assert.Equal(t, Point{X: 400, Y: 300}, Point{X: n.X, Y: n.Y})
	assert.Equal(t, Horizontal, n.Orientation)

	require.Len(t, n.Inputs, 1)
	require.Len(t, n.Outputs, 1)
	assert.Equal(t, AnyType, n.Inputs["input-In"].Type)
	assert.Equal(t, "Out", n.Outputs["output-Out"].Name)
	assert.Contains(t, r.nodes, n.ID)
	assert.Len(t, r.sockets, 2)
}

func TestCreateNode_CallerSockets(t *testing.T) {
	e, _ := newTestEditor(t)

	n := e.AddNode(NodeSpec{
		Position: at(10, 20),
		Inputs:   []SocketDef{{Name: "query"}},
		Outputs:  []SocketDef{{Name: "summary text", Type: "string"}, {Name: "summary text"}, {}},
	})
	require.NotNil(t, n)

	ins := n.Sockets(Input)
	require.Len(t, ins, 2)
	assert.Equal(t, "input-In", ins[0].ID, "the catch-all input always comes first")
	assert.Equal(t, "input-query", ins[1].ID)

	outs := n.Sockets(Output)
	require.Len(t, outs, 3)
	assert.Equal(t, "output-summary_text", outs[0].ID)
	assert.Equal(t, "output-summary_text-1", outs[1].ID)
	assert.Equal(t, "output-2", outs[2].ID)
	assert.Equal(t, "Output 2", outs[2].Name)
	assert.Equal(t, "string", outs[0].Type)
}

func TestCreateNode_OutputsOnlyKeepsDefaultInputOnly(t *testing.T) {
	e, _ := newTestEditor(t)
	n := e.AddNode(NodeSpec{Outputs: []SocketDef{{Name: "result"}}})
	require.NotNil(t, n)
	assert.Len(t, n.Inputs, 1)
	assert.Equal(t, []string{"output-result"}, []string{n.Sockets(Output)[0].ID})
}

func TestCreateNode_DuplicateID(t *testing.T) {
	e, _ := newTestEditor(t)
	require.NotNil(t, e.AddNode(NodeSpec{ID: "ui-node-5"}))
	assert.Nil(t, e.AddNode(NodeSpec{ID: "ui-node-5"}))

	// Explicit ids advance the sequence past themselves.
	assert.Equal(t, "ui-node-6", e.AddNode(NodeSpec{}).ID)
}

func twoNodes(t *testing.T) (*Editor, *recorder, *Node, *Node) {
	t.Helper()
	e, r := newTestEditor(t)
	a := e.AddNode(NodeSpec{ID: "A", Position: at(0, 0)})
	b := e.AddNode(NodeSpec{ID: "B", Position: at(400, 0)})
	require.NotNil(t, a)
	require.NotNil(t, b)
	return e, r, a, b
}

func TestCreateLink(t *testing.T) {
	e, r, a, b := twoNodes(t)

	l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	require.NotNil(t, l)
	assert.Equal(t, "ui-link-0", l.ID)
	assert.Equal(t, []string{l.ID}, a.Outputs["output-Out"].Links)
	assert.Equal(t, []string{l.ID}, b.Inputs["input-In"].Links)
	assert.NotEmpty(t, r.paths[l.ID])
	assert.Empty(t, e.Graph.CheckConsistency())
}

func TestCreateLink_Rejections(t *testing.T) {
	e, r, a, _ := twoNodes(t)
	require.NotNil(t, e.Graph.CreateLink("A", "output-Out", "B", "input-In", "L1"))

	tests := []struct {
		name                                     string
		fromNode, fromSocket, toNode, toSocket, id string
	}{
		{name: "duplicate endpoints", fromNode: "A", fromSocket: "output-Out", toNode: "B", toSocket: "input-In"},
		{name: "self link", fromNode: "A", fromSocket: "output-Out", toNode: "A", toSocket: "input-In"},
		{name: "id in use", fromNode: "B", fromSocket: "output-Out", toNode: "A", toSocket: "input-In", id: "L1"},
		{name: "unknown node", fromNode: "Z", fromSocket: "output-Out", toNode: "A", toSocket: "input-In"},
		{name: "input used as source", fromNode: "B", fromSocket: "input-In", toNode: "A", toSocket: "input-In"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(r.paths)
			assert.Nil(t, e.Graph.CreateLink(tt.fromNode, tt.fromSocket, tt.toNode, tt.toSocket, tt.id))
			assert.Equal(t, 1, e.Graph.LinkCount())
			assert.Equal(t, before, len(r.paths))
			assert.Equal(t, []string{"L1"}, a.Outputs["output-Out"].Links)
			assert.Empty(t, e.Graph.CheckConsistency())
		})
	}
}

func TestCreateLink_IdempotentAgainstDuplicates(t *testing.T) {
	e, _, _, _ := twoNodes(t)
	first := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	second := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	assert.NotNil(t, first)
	assert.Nil(t, second)
	assert.Equal(t, 1, e.Graph.LinkCount())
}

func TestRemoveLink(t *testing.T) {
	e, r, a, b := twoNodes(t)
	l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	require.NotNil(t, l)

	e.Graph.RemoveLink(l.ID)
	assert.Nil(t, e.Graph.Link(l.ID))
	assert.Empty(t, a.Outputs["output-Out"].Links)
	assert.Empty(t, b.Inputs["input-In"].Links)
	assert.NotContains(t, r.paths, l.ID)

	assert.NotPanics(t, func() { e.Graph.RemoveLink(l.ID) })
	assert.NotPanics(t, func() { e.Graph.RemoveLink("never-existed") })
}

func TestRemoveLink_ToleratesMissingListEntry(t *testing.T) {
	e, _, a, b := twoNodes(t)
	l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	require.NotNil(t, l)
	b.Inputs["input-In"].Links = nil

	e.Graph.RemoveLink(l.ID)
	assert.Nil(t, e.Graph.Link(l.ID))
	assert.Empty(t, a.Outputs["output-Out"].Links)
}

func TestReconcileLink_EvictsDanglingLinks(t *testing.T) {
	t.Run("missing node", func(t *testing.T) {
		e, r, a, _ := twoNodes(t)
		l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
		require.NotNil(t, l)

		delete(e.Graph.nodes, "B")
		_, ok := e.Graph.ReconcileLink(l.ID)
		assert.False(t, ok)
		assert.Nil(t, e.Graph.Link(l.ID))
		assert.Empty(t, a.Outputs["output-Out"].Links)
		assert.NotContains(t, r.paths, l.ID)
	})

	t.Run("missing socket", func(t *testing.T) {
		e, _, _, b := twoNodes(t)
		l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
		require.NotNil(t, l)

		delete(b.Inputs, "input-In")
		e.Graph.UpdateLinkPath(l.ID)
		assert.Nil(t, e.Graph.Link(l.ID))
	})

	t.Run("healthy link is kept", func(t *testing.T) {
		e, _, _, _ := twoNodes(t)
		l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
		require.NotNil(t, l)

		c, ok := e.Graph.ReconcileLink(l.ID)
		assert.True(t, ok)
		assert.Equal(t, Point{X: 160, Y: 39}, c.Start)
		assert.Equal(t, Point{X: 400, Y: 39}, c.End)
	})
}

func TestUpdateLinksForNode_Deduplicates(t *testing.T) {
	e, r, _, _ := twoNodes(t)
	l := e.Graph.CreateLink("A", "output-Out", "B", "input-In", "")
	require.NotNil(t, l)
	r.pathSets[l.ID] = 0

	e.Graph.UpdateLinksForNode("A")
	assert.Equal(t, 1, r.pathSets[l.ID])

	require.True(t, e.Graph.MoveNode("A", 50, 60))
	assert.Equal(t, 2, r.pathSets[l.ID])
	assert.Equal(t, 50.0, r.nodes["A"].X)
}

func TestDeleteNode_CascadesLinks(t *testing.T) {
	e, _, _, _ := twoNodes(t)
	c := e.AddNode(NodeSpec{ID: "C", Position: at(800, 0)})
	require.NotNil(t, c)
	require.NotNil(t, e.Graph.CreateLink("A", "output-Out", "B", "input-In", ""))
	require.NotNil(t, e.Graph.CreateLink("B", "output-Out", "C", "input-In", ""))

	assert.True(t, e.Graph.DeleteNode("B"))
	assert.Equal(t, 0, e.Graph.LinkCount())
	assert.Nil(t, e.Graph.Node("B"))
	assert.Empty(t, e.Graph.CheckConsistency())
	assert.False(t, e.Graph.DeleteNode("B"))
}

func TestGraphClear(t *testing.T) {
	e, r, _, _ := twoNodes(t)
	require.NotNil(t, e.Graph.CreateLink("A", "output-Out", "B", "input-In", ""))

	e.Graph.Clear()
	assert.Zero(t, e.Graph.NodeCount())
	assert.Zero(t, e.Graph.LinkCount())
	assert.Zero(t, e.Graph.NodeSequence().Value())
	assert.Zero(t, e.Graph.LinkSequence().Value())
	assert.Equal(t, 1, r.cleared)
}

// Every socket list must mirror the links that reference it after each
// step of an arbitrary create/remove sequence.
func TestProperty_LinkListsStayConsistent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := NewGraph(&NopRenderer{}, nil, nil)
		nodeCount := rapid.IntRange(2, 5).Draw(rt, "nodes")
		for i := 0; i < nodeCount; i++ {
			g.CreateNode(NodeSpec{
				ID:       fmt.Sprintf("n%d", i),
				Position: &Point{X: float64(i) * 200},
				Outputs:  []SocketDef{{Name: "a"}, {Name: "b"}},
			})
		}
		sockets := []string{"output-a", "output-b"}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			if rapid.Bool().Draw(rt, "create") || g.LinkCount() == 0 {
				from := fmt.Sprintf("n%d", rapid.IntRange(0, nodeCount-1).Draw(rt, "from"))
				to := fmt.Sprintf("n%d", rapid.IntRange(0, nodeCount-1).Draw(rt, "to"))
				sock := rapid.SampledFrom(sockets).Draw(rt, "socket")
				before := g.LinkCount()
				l := g.CreateLink(from, sock, to, "input-In", "")
				if from == to && l != nil {
					rt.Fatalf("self-link %s created", l.ID)
				}
				if l == nil && g.LinkCount() != before {
					rt.Fatalf("rejected link mutated the graph")
				}
			} else {
				links := g.Links()
				victim := rapid.SampledFrom(links).Draw(rt, "victim")
				g.RemoveLink(victim.ID)
			}
			if problems := g.CheckConsistency(); len(problems) > 0 {
				rt.Fatalf("inconsistent after step %d: %v", s, problems)
			}
		}
	})
}
