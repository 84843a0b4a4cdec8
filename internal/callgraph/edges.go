package callgraph

import (
	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/irmodule"
)

// markAddressTaken copies the IR parser's address-taken set onto
// concrete nodes, plus the formatting-API hack's known entry points
// (see tables.go), per the rule that a function is address-taken if
// any global initializer, non-call operand, or vtable-like constant
// references it.
func markAddressTaken(g *Graph, mod *irmodule.Module) {
	for name := range mod.AddressTaken {
		if n, ok := g.Nodes[name]; ok {
			n.AddressTaken = true
		}
	}
	for _, pattern := range formattingHackTable {
		for id, n := range g.Nodes {
			if pattern.match(id) {
				n.AddressTaken = true
			}
		}
	}
}

// addDirectEdges adds one edge per IR call site that names a concrete
// live callee. A named callee that optimized away entirely (inlined
// everywhere, not in the live set) is dropped with a warning rather
// than added as a dangling edge.
func addDirectEdges(g *Graph, mod *irmodule.Module, canon map[string]string, diags *diag.Diags) {
	for callerName, def := range mod.Funcs {
		caller := resolve(canon, callerName)
		if _, ok := g.Nodes[caller]; !ok {
			continue
		}
		for _, cs := range def.CallSites {
			if !cs.Direct || cs.Intrinsic != "" {
				continue
			}
			callee := resolve(canon, cs.Callee)
			if _, ok := g.Nodes[callee]; !ok {
				diags.Addf(callee, diag.KindDroppedEdge,
					"dropped edge %s -> %s: callee not in live set", caller, callee)
				continue
			}
			g.Edges = append(g.Edges, Edge{From: caller, To: callee})
		}
	}
}

// addIndirectEdges creates one synthetic node per distinct fingerprint
// observed at an indirect call site, an edge from every caller with
// such a site to that node, and an edge from the node to every live
// address-taken concrete function whose fingerprint matches.
func addIndirectEdges(g *Graph, mod *irmodule.Module, canon map[string]string, diags *diag.Diags) {
	fingerprints := make(map[string]bool)
	for callerName, def := range mod.Funcs {
		caller := resolve(canon, callerName)
		for _, cs := range def.CallSites {
			if cs.Direct || cs.InlineAsm {
				// Inline asm already warned and was assigned a zero
				// contribution to the call graph at parse time; it is
				// not an unresolved indirect call.
				continue
			}
			fp := cs.Fingerprint
			fingerprints[fp] = true
			if _, ok := g.Nodes[caller]; ok {
				g.Edges = append(g.Edges, Edge{From: caller, To: fp})
			}
		}
	}

	for fp := range fingerprints {
		g.Nodes[fp] = &Node{ID: fp, Kind: Synthetic}
	}

	matchedFmtHack := matchFormattingHackEdges(g, fingerprints)

	for _, n := range g.Nodes {
		if n.Kind != Concrete || !n.AddressTaken {
			continue
		}
		def, ok := mod.Funcs[n.ID]
		if !ok {
			continue
		}
		if _, wanted := fingerprints[def.Fingerprint]; !wanted {
			continue
		}
		if matchedFmtHack[def.Fingerprint] {
			// The formatting-API hack already injected the known
			// edge set for this fingerprint; do not also add the
			// generic fingerprint match, which would pull in
			// unrelated functions that merely share the erased type.
			continue
		}
		g.Edges = append(g.Edges, Edge{From: def.Fingerprint, To: n.ID})
	}

	for fp := range fingerprints {
		hasOutgoing := false
		for _, e := range g.Edges {
			if e.From == fp {
				hasOutgoing = true
				break
			}
		}
		if !hasOutgoing {
			diags.Addf(fp, diag.KindUnresolvedCall, "unresolved indirect call with fingerprint %s", fp)
		}
	}
}

// matchFormattingHackEdges applies the formatting-API hack table: for
// every fingerprint a hack pattern claims, inject its known edge set
// instead of trusting fingerprint matching, which the type-erasure the
// formatting layer uses would otherwise defeat. Returns the set of
// fingerprints handled this way.
func matchFormattingHackEdges(g *Graph, fingerprints map[string]bool) map[string]bool {
	handled := make(map[string]bool)
	for fp := range fingerprints {
		for _, hack := range formattingHackTable {
			if !hack.fingerprintMatch(fp) {
				continue
			}
			handled[fp] = true
			for _, impl := range hack.implementers {
				if _, ok := g.Nodes[impl]; ok {
					g.Edges = append(g.Edges, Edge{From: fp, To: impl})
				}
			}
		}
	}
	return handled
}

// addIntrinsicEdges resolves calls to LLVM intrinsics (memcpy/memset/
// memmove and similar) against the intrinsic-lowering table, gated by
// target capability and, on Cortex-M, disambiguated by the machine
// code's actual BL target when one was recovered.
func addIntrinsicEdges(g *Graph, in Input, canon map[string]string, diags *diag.Diags) {
	for callerName, def := range in.Module.Funcs {
		caller := resolve(canon, callerName)
		if _, ok := g.Nodes[caller]; !ok {
			continue
		}
		for _, cs := range def.CallSites {
			if cs.Intrinsic == "" {
				continue
			}
			candidates := lookupIntrinsic(cs.Intrinsic, in.Triple)
			if candidates == nil {
				diags.Add(cs.Intrinsic, diag.KindUnknownIntrinsic, "unknown intrinsic, no lowering table entry")
				continue
			}
			if len(candidates) == 0 {
				continue // pure intrinsic (e.g. llvm.abs.*): no edges
			}

			if bl, ok := disambiguateByMachineCode(caller, candidates, in, canon); ok {
				g.Edges = append(g.Edges, Edge{From: caller, To: bl})
				continue
			}

			for _, cand := range candidates {
				if _, ok := g.Nodes[cand]; ok {
					g.Edges = append(g.Edges, Edge{From: caller, To: cand})
				}
			}
		}
	}
}

// disambiguateByMachineCode checks whether the caller's disassembled
// BL targets (resolved to symbol names) hit exactly one of the
// candidate lowerings; if so that is the only edge added, per the
// Cortex-M disambiguation rule.
func disambiguateByMachineCode(caller string, candidates []string, in Input, canon map[string]string) (string, bool) {
	r, ok := in.Disasm[caller]
	if !ok || len(r.DirectCalls) == 0 {
		return "", false
	}
	byAddr := make(map[uint64]string)
	for _, s := range in.ELFSymbols {
		byAddr[s.Addr] = resolve(canon, s.Name)
	}
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	matched := ""
	for _, target := range r.DirectCalls {
		if name, ok := byAddr[target]; ok && want[name] {
			if matched != "" && matched != name {
				return "", false
			}
			matched = name
		}
	}
	return matched, matched != ""
}
