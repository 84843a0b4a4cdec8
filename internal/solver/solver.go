// Package solver computes each call-graph node's maximum reachable
// stack usage, condensing the graph to its SCC DAG and traversing in
// reverse topological order.
package solver

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/nullstream/stackgraph/internal/callgraph"
)

// BoundKind is exact when every contributing frame is known and no
// cycle or unresolved indirect call was crossed on the dominating
// path; lower otherwise.
type BoundKind int

const (
	Exact BoundKind = iota
	Lower
)

func (k BoundKind) String() string {
	if k == Exact {
		return "exact"
	}
	return "lower"
}

// Result holds max_stack and its bound kind for every node that was
// computed.
type Result struct {
	MaxStack map[string]uint64
	Kind     map[string]BoundKind
	Unknown  map[string]bool // max_stack could not be bounded at all (unresolved synthetic with no outgoing edges)
	Skipped  bool            // true iff .stack_sizes was absent entirely; no annotations computed
}

// Solve runs the stack-bound computation over g. stackSizesAvailable
// must be false only when the ELF had no .stack_sizes section at all
// (as opposed to an empty one); per the failure semantics, the solver
// is skipped entirely in that case and the graph is emitted without
// max annotations.
func Solve(g *callgraph.Graph, stackSizesAvailable bool) Result {
	res := Result{
		MaxStack: make(map[string]uint64),
		Kind:     make(map[string]BoundKind),
		Unknown:  make(map[string]bool),
	}
	if !stackSizesAvailable {
		res.Skipped = true
		return res
	}

	groups, order, selfLoop := condense(g)

	groupOf := make(map[string]int, len(g.Nodes))
	for gi, members := range groups {
		for _, m := range members {
			groupOf[m] = gi
		}
	}

	succs := make(map[string][]string)
	for _, e := range g.Edges {
		succs[e.From] = append(succs[e.From], e.To)
	}

	groupValue := make([]uint64, len(groups))
	groupKind := make([]BoundKind, len(groups))
	groupUnknown := make([]bool, len(groups))
	computed := make([]bool, len(groups))

	// order is already reverse-topological (sinks first), which is
	// exactly the traversal order the successors-first recurrence
	// needs.
	for _, gi := range order {
		members := groups[gi]
		localMax := uint64(0)
		localUnknown := false
		for _, m := range members {
			n := g.Nodes[m]
			if n.Kind == callgraph.Synthetic {
				continue // synthetic nodes have local = 0 by definition
			}
			if n.Frame == nil {
				localUnknown = true
				continue
			}
			if *n.Frame > localMax {
				localMax = *n.Frame
			}
		}

		var extMax uint64
		extUnknown := false
		extLower := false
		hasExt := false
		noOutgoing := true
		for _, m := range members {
			for _, succ := range succs[m] {
				if groupOf[succ] == gi {
					continue // intra-group edge, already folded into localMax's SCC semantics
				}
				noOutgoing = false
				sgi := groupOf[succ]
				if !computed[sgi] {
					// Should not happen given reverse-topological
					// order, but degrade gracefully rather than index
					// into an unset slot.
					continue
				}
				hasExt = true
				v := groupValue[sgi]
				if v > extMax {
					extMax = v
				}
				// Any successor reached on the way to computing this
				// node's max, not only the one achieving the maximal
				// value, downgrades the bound: the SCC or unresolved
				// indirect call was traversed regardless of which
				// branch happened to carry the largest number.
				extUnknown = extUnknown || groupUnknown[sgi]
				extLower = extLower || groupKind[sgi] == Lower
			}
		}

		isSyntheticGroup := len(members) == 1 && g.Nodes[members[0]].Kind == callgraph.Synthetic
		value := localMax + extMax
		kind := Exact
		unknown := false

		if isSyntheticGroup && noOutgoing {
			unknown = true
			kind = Lower
		}
		if len(members) > 1 {
			kind = Lower
		}
		if _, loop := selfLoop[members[0]]; len(members) == 1 && loop {
			kind = Lower
		}
		if localUnknown {
			kind = Lower
		}
		if hasExt && (extUnknown || extLower) {
			kind = Lower
		}

		groupValue[gi] = value
		groupKind[gi] = kind
		groupUnknown[gi] = unknown
		computed[gi] = true

		for _, m := range members {
			res.MaxStack[m] = value
			res.Kind[m] = kind
			res.Unknown[m] = unknown
		}
	}

	return res
}

// condense groups nodes into SCCs (non-trivial clusters from g.SCCs
// plus singleton groups for everything else), and returns the groups,
// a reverse-topological processing order over group indices, and the
// set of node IDs that have a self-loop edge (treated as a size-1 SCC
// under the lower-bound rule even though gonum's simple graph cannot
// represent the self-loop edge directly).
func condense(g *callgraph.Graph) (groups [][]string, order []int, selfLoop map[string]bool) {
	selfLoop = make(map[string]bool)
	assigned := make(map[string]bool)

	for _, members := range g.SCCs {
		groups = append(groups, members)
		for _, m := range members {
			assigned[m] = true
		}
	}
	for id := range g.Nodes {
		if assigned[id] {
			continue
		}
		groups = append(groups, []string{id})
	}

	groupIdx := make(map[string]int)
	for gi, members := range groups {
		for _, m := range members {
			groupIdx[m] = gi
		}
	}

	for _, e := range g.Edges {
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	dg := simple.NewDirectedGraph()
	for gi := range groups {
		dg.AddNode(simple.Node(int64(gi)))
	}
	seen := make(map[[2]int]bool)
	for _, e := range g.Edges {
		from, to := groupIdx[e.From], groupIdx[e.To]
		if from == to {
			continue
		}
		key := [2]int{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true
		dg.SetEdge(dg.NewEdge(dg.Node(int64(from)), dg.Node(int64(to))))
	}

	sccs := topo.TarjanSCC(dg)
	for _, scc := range sccs {
		for _, n := range scc {
			order = append(order, int(n.ID()))
		}
	}
	return groups, order, selfLoop
}
