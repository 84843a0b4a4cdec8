// Package output serializes pipeline results for the "graph"
// subcommand, which inspects the intermediate call graph as JSON
// instead of rendering DOT.
package output

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/nullstream/stackgraph/internal/callgraph"
	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/solver"
)

// GraphJSON is the JSON-serializable view of a built call graph.
type GraphJSON struct {
	Nodes       []NodeJSON  `json:"nodes"`
	Edges       []EdgeJSON  `json:"edges"`
	SCCs        [][]string  `json:"sccs,omitempty"`
	Diagnostics []diag.Diag `json:"diagnostics,omitempty"`
}

// NodeJSON is one graph node.
type NodeJSON struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"` // "concrete" | "synthetic"
	Local        *uint64 `json:"local,omitempty"`
	FrameSource  string  `json:"frame_source,omitempty"`
	AddressTaken bool    `json:"address_taken,omitempty"`
	SCC          int     `json:"scc,omitempty"`
	MaxStack     *uint64 `json:"max_stack,omitempty"`
	BoundKind    string  `json:"bound_kind,omitempty"` // "exact" | "lower"
}

// EdgeJSON is one directed edge.
type EdgeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BuildGraphJSON assembles the JSON view from a built graph, its
// solved stack bounds (nil or a Skipped result omits max_stack), and
// any accumulated diagnostics.
func BuildGraphJSON(g *callgraph.Graph, solved *solver.Result, diags *diag.Diags) GraphJSON {
	out := GraphJSON{}

	for id, n := range g.Nodes {
		nj := NodeJSON{ID: id, AddressTaken: n.AddressTaken, SCC: n.SCC}
		if n.Kind == callgraph.Synthetic {
			nj.Kind = "synthetic"
		} else {
			nj.Kind = "concrete"
		}
		if n.Frame != nil {
			v := *n.Frame
			nj.Local = &v
		}
		nj.FrameSource = string(n.FrameSource)
		if solved != nil && !solved.Skipped {
			if v, ok := solved.MaxStack[id]; ok {
				vv := v
				nj.MaxStack = &vv
				if solved.Kind[id] == solver.Lower {
					nj.BoundKind = "lower"
				} else {
					nj.BoundKind = "exact"
				}
			}
		}
		out.Nodes = append(out.Nodes, nj)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })

	for _, e := range g.Edges {
		out.Edges = append(out.Edges, EdgeJSON{From: e.From, To: e.To})
	}
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].From != out.Edges[j].From {
			return out.Edges[i].From < out.Edges[j].From
		}
		return out.Edges[i].To < out.Edges[j].To
	})
	for _, members := range g.SCCs {
		out.SCCs = append(out.SCCs, members)
	}
	if diags != nil {
		out.Diagnostics = diags.Items()
	}
	return out
}

// WriteGraphJSON writes the JSON view to w, indented.
func WriteGraphJSON(w io.Writer, gj GraphJSON) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(gj)
}
