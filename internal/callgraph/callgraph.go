// Package callgraph merges the parsed IR module, the ELF symbol and
// .stack_sizes data, and the Thumb disassembler's results into a
// single directed graph: one node per live function plus a synthetic
// node per distinct indirect-call signature.
package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"

	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/elfx"
	"github.com/nullstream/stackgraph/internal/irmodule"
	"github.com/nullstream/stackgraph/internal/target"
	"github.com/nullstream/stackgraph/internal/thumb"
)

// NodeKind distinguishes a concrete function node from a synthetic
// indirect-call node.
type NodeKind int

const (
	Concrete NodeKind = iota
	Synthetic
)

// FrameSource records which input supplied a node's local frame size.
type FrameSource string

const (
	SourceNone       FrameSource = ""
	SourceStackSizes FrameSource = "stack_sizes"
	SourceDisasmOverride FrameSource = "disasm_override"
)

// Node is one vertex of the call graph.
type Node struct {
	ID           string // symbol name for Concrete, fingerprint string for Synthetic
	Kind         NodeKind
	Frame        *uint64 // nil iff unknown
	FrameSource  FrameSource
	AddressTaken bool
	SCC          int     // non-zero iff member of a non-trivial SCC; cluster id
	Addr         *uint64 // nil for Synthetic, or a Concrete node absent from the ELF symbol table
}

// Edge is a directed "caller may invoke callee" relation, keyed by
// node ID on both ends.
type Edge struct {
	From string
	To   string
}

// Graph is the full call graph plus the bookkeeping the solver and DOT
// emitter need.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge
	SCCs  map[int][]string // cluster id -> member node IDs, non-trivial only
}

// Input bundles everything the builder needs from earlier pipeline
// stages.
type Input struct {
	Module      *irmodule.Module
	ELFSymbols  []elfx.FuncSymbol
	AliasGroups map[uint64][]string
	StackSizes  map[uint64]uint64
	Disasm      map[string]thumb.Result // keyed by canonical symbol name
	Triple      target.Triple
	Start       string // optional start symbol; "" means keep everything
}

// Build runs the full algorithm from the Call-Graph Builder component:
// live-set computation, frame attachment, direct/indirect/intrinsic
// edges, address-taken marking, start-node filtering, and SCC
// annotation.
func Build(in Input, diags *diag.Diags) *Graph {
	canon := canonicalNames(in.Module, in.AliasGroups)

	g := &Graph{Nodes: make(map[string]*Node)}

	live := computeLiveSet(in, canon, diags)
	for name := range live {
		g.Nodes[name] = &Node{ID: name, Kind: Concrete}
	}
	attachFrames(g, in, canon, diags)
	markAddressTaken(g, in.Module)

	addDirectEdges(g, in.Module, canon, diags)
	addIntrinsicEdges(g, in, canon, diags)
	addIndirectEdges(g, in.Module, canon, diags)

	dedupEdges(g)

	if in.Start != "" {
		filterByStart(g, in.Start)
	}

	annotateSCCs(g)

	return g
}

// canonicalNames maps every alias to the name the IR actually uses at
// call sites and in .stack_sizes lookups, so an alias group collapses
// to one graph node regardless of which name each input happened to
// reference.
func canonicalNames(mod *irmodule.Module, aliasGroups map[uint64][]string) map[string]string {
	canon := make(map[string]string)
	for _, names := range aliasGroups {
		if len(names) == 0 {
			continue
		}
		chosen := names[0]
		for _, n := range names {
			if _, ok := mod.Funcs[n]; ok {
				chosen = n
				break
			}
		}
		sort.Strings(names)
		for _, n := range names {
			canon[n] = chosen
		}
	}
	return canon
}

// resolve returns the canonical name for a raw symbol, or the symbol
// itself if it has no recorded alias group.
func resolve(canon map[string]string, name string) string {
	if c, ok := canon[name]; ok {
		return c
	}
	return name
}

// dedupEdges collapses parallel edges between the same ordered pair,
// preserving self-loops, using lattice's graph dedup the way the
// existing call-graph builder in this codebase deduplicates its own
// (caller, callee) pairs.
func dedupEdges(g *Graph) {
	lg := &lattice.Graph{}
	for id := range g.Nodes {
		lg.Nodes = append(lg.Nodes, id)
	}
	for _, e := range g.Edges {
		lg.Edges = append(lg.Edges, lattice.Edge{Caller: e.From, Callee: e.To})
	}
	lg.Dedup()
	out := make([]Edge, 0, len(lg.Edges))
	for _, e := range lg.Edges {
		out = append(out, Edge{From: e.Caller, To: e.Callee})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	g.Edges = out
}
