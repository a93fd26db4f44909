package workflow

import (
	"slices"

	"github.com/BaSui01/flowedit/types"
)

// Plan orders the nodes of g into stages for execution. The first stage
// holds every node without inbound links; each following stage holds the
// not yet visited successors of the previous one. Nodes left unreached
// (cycles without an entry) are appended afterwards, seeding a new walk
// from the smallest remaining id. Every node appears exactly once.
func Plan(g types.OrchestrationGraph) [][]string {
	if len(g.Nodes) == 0 {
		return nil
	}

	succ := make(map[string][]string, len(g.Nodes))
	inbound := make(map[string]int, len(g.Nodes))
	for _, l := range g.Links {
		_, fromOK := g.Nodes[l.FromNodeID]
		_, toOK := g.Nodes[l.ToNodeID]
		if !fromOK || !toOK || l.FromNodeID == l.ToNodeID {
			continue
		}
		succ[l.FromNodeID] = append(succ[l.FromNodeID], l.ToNodeID)
		inbound[l.ToNodeID]++
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var roots []string
	for _, id := range ids {
		if inbound[id] == 0 {
			roots = append(roots, id)
		}
	}

	visited := make(map[string]bool, len(ids))
	var stages [][]string
	walk := func(start []string) {
		for _, id := range start {
			visited[id] = true
		}
		for stage := start; len(stage) > 0; {
			stages = append(stages, stage)
			var next []string
			for _, id := range stage {
				for _, to := range succ[id] {
					if !visited[to] {
						visited[to] = true
						next = append(next, to)
					}
				}
			}
			slices.Sort(next)
			stage = next
		}
	}

	walk(roots)
	for _, id := range ids {
		if !visited[id] {
			walk([]string{id})
		}
	}
	return stages
}

// Predecessors returns the ids of nodes linking into id, sorted and
// without duplicates.
func Predecessors(g types.OrchestrationGraph, id string) []string {
	var out []string
	for _, l := range g.Links {
		if l.ToNodeID == id && l.FromNodeID != id {
			if _, ok := g.Nodes[l.FromNodeID]; ok {
				out = append(out, l.FromNodeID)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
