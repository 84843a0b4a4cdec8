package callgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// annotateSCCs computes strongly connected components over the graph
// and records every non-trivial one (size > 1, or a self-loop) as a
// numbered cluster, per the solver's and DOT emitter's need for SCC
// membership.
func annotateSCCs(g *Graph) {
	ids := make(map[string]int64, len(g.Nodes))
	names := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		names = append(names, id)
	}
	sort.Strings(names)
	for i, id := range names {
		ids[id] = int64(i)
	}

	dg := simple.NewDirectedGraph()
	for _, n := range ids {
		dg.AddNode(simple.Node(n))
	}
	selfLoop := make(map[string]bool)
	for _, e := range g.Edges {
		from, ok1 := ids[e.From]
		to, ok2 := ids[e.To]
		if !ok1 || !ok2 {
			continue
		}
		if from == to {
			selfLoop[e.From] = true
			continue // gonum's simple.DirectedGraph rejects self-loops
		}
		dg.SetEdge(dg.NewEdge(dg.Node(from), dg.Node(to)))
	}

	sccs := topo.TarjanSCC(dg)
	g.SCCs = make(map[int][]string)
	clusterID := 0
	idToName := make(map[int64]string, len(ids))
	for name, id := range ids {
		idToName[id] = name
	}
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		clusterID++
		members := make([]string, 0, len(scc))
		for _, node := range scc {
			name := idToName[node.ID()]
			members = append(members, name)
			g.Nodes[name].SCC = clusterID
		}
		sort.Strings(members)
		g.SCCs[clusterID] = members
	}

	// Self-loops are treated as SCCs of size 1 under the same
	// lower-bound rule (§4.5); they do not need a gonum-detected
	// multi-node component, so they are recorded directly here.
	for name := range selfLoop {
		n := g.Nodes[name]
		if n.SCC != 0 {
			continue // already part of a larger cluster
		}
		clusterID++
		n.SCC = clusterID
		g.SCCs[clusterID] = []string{name}
	}
}
