// Package dotgraph serializes a call graph to the DOT language,
// mirroring the deterministic string-builder rendering style this
// codebase already uses for its Graphviz output.
package dotgraph

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nullstream/stackgraph/internal/callgraph"
	"github.com/nullstream/stackgraph/internal/solver"
)

// Emit renders g (with optional solved stack-bound results; pass nil
// or a Skipped result to omit max annotations) as one digraph. Output
// is fully deterministic: nodes sorted by name, edges sorted by
// (source, destination), so running the emitter twice on the same
// graph yields byte-identical text.
func Emit(g *callgraph.Graph, solved *solver.Result) string {
	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n\n")

	names := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		names = append(names, id)
	}
	sort.Strings(names)

	display := displayNames(g)

	emitted := make(map[string]bool, len(names))
	for _, id := range names {
		n := g.Nodes[id]
		if n.SCC != 0 {
			continue // rendered inside its cluster subgraph below
		}
		b.WriteString("  ")
		b.WriteString(nodeLine(n, solved, display[id]))
		b.WriteString("\n")
		emitted[id] = true
	}

	clusterIDs := make([]int, 0, len(g.SCCs))
	for id := range g.SCCs {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)
	for _, cid := range clusterIDs {
		members := append([]string(nil), g.SCCs[cid]...)
		sort.Strings(members)
		fmt.Fprintf(&b, "\n  subgraph cluster_%d {\n", cid)
		b.WriteString("    style=dashed;\n")
		for _, m := range members {
			b.WriteString("    ")
			b.WriteString(nodeLine(g.Nodes[m], solved, display[m]))
			b.WriteString("\n")
		}
		b.WriteString("  }\n")
	}

	b.WriteString("\n")
	edges := append([]callgraph.Edge(nil), g.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotID(e.From), dotID(e.To))
	}

	b.WriteString("}\n")
	return b.String()
}

func nodeLine(n *callgraph.Node, solved *solver.Result, name string) string {
	label := nodeLabel(n, solved, name)
	attrs := fmt.Sprintf("label=%s", dotEscape(label))
	if n.Kind == callgraph.Synthetic {
		attrs += ", style=dashed"
	}
	return fmt.Sprintf("%s [%s];", dotID(n.ID), attrs)
}

func nodeLabel(n *callgraph.Node, solved *solver.Result, name string) string {
	if n.Kind == callgraph.Synthetic {
		return name
	}

	var lines []string
	lines = append(lines, name)
	if n.Frame != nil {
		lines = append(lines, "local = "+strconv.FormatUint(*n.Frame, 10))
	}
	if solved != nil && !solved.Skipped {
		if v, ok := solved.MaxStack[n.ID]; ok {
			op := "="
			if solved.Kind[n.ID] == solver.Lower {
				op = ">="
			}
			lines = append(lines, fmt.Sprintf("max %s %d", op, v))
		}
	}
	return strings.Join(lines, "\\n")
}

// cloneSuffix matches the numeric clone suffixes LLVM and GCC append to
// an outlined or partially-specialized copy of a function
// ("foo.17", "foo.constprop.0", "foo.part.3"), which this display
// shortening strips so the base name reads naturally in the graph.
var cloneSuffix = regexp.MustCompile(`\.(constprop|part|isra|cold)?\.?\d+$`)

// displayNames computes the label text each concrete node should use:
// the clone suffix stripped, unless two distinct nodes would then
// collapse to the same display text, in which case both keep a short
// address-derived disambiguator appended. Synthetic nodes are left as
// their full ID, and so is a colliding node with no known address.
func displayNames(g *callgraph.Graph) map[string]string {
	base := make(map[string]string, len(g.Nodes))
	groups := make(map[string][]string)
	for id, n := range g.Nodes {
		if n.Kind != callgraph.Concrete {
			base[id] = id
			continue
		}
		short := cloneSuffix.ReplaceAllString(id, "")
		base[id] = short
		groups[short] = append(groups[short], id)
	}

	out := make(map[string]string, len(g.Nodes))
	for id, short := range base {
		if len(groups[short]) <= 1 {
			out[id] = short
			continue
		}
		n := g.Nodes[id]
		if n.Addr != nil {
			out[id] = fmt.Sprintf("%s@%x", short, *n.Addr)
		} else {
			out[id] = id // no address to disambiguate with; fall back to the full name
		}
	}
	return out
}

// dotEscape quotes s as a DOT string literal, escaping embedded quotes.
func dotEscape(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

// dotID produces a safe DOT identifier for a node name or fingerprint,
// which may contain characters DOT does not accept unquoted (spaces,
// parentheses, asterisks in fingerprint strings).
func dotID(s string) string {
	return dotEscape(s)
}
