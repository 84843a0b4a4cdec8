package callgraph

import (
	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/target"
)

// attachFrames fills in each live node's local frame size, honoring
// the precedence: disassembler override if triggered; else
// .stack_sizes lookup; else unknown.
func attachFrames(g *Graph, in Input, canon map[string]string, diags *diag.Diags) {
	byName := make(map[string]uint64, len(in.ELFSymbols))
	for _, s := range in.ELFSymbols {
		byName[resolve(canon, s.Name)] = s.Addr
	}

	cortexM := in.Triple.Capability() != target.Other

	for id, node := range g.Nodes {
		addr, haveAddr := byName[id]
		if haveAddr {
			a := addr
			node.Addr = &a
		}
		var stackSizeFrame uint64
		var haveStackSize bool
		if haveAddr {
			if v, ok := in.StackSizes[addr]; ok {
				stackSizeFrame, haveStackSize = v, true
			}
		}

		var disasmFrame uint64
		var haveDisasm bool
		var disasmExact bool
		if cortexM {
			if r, ok := in.Disasm[id]; ok {
				disasmFrame, haveDisasm = r.FrameBytes, true
				disasmExact = r.BranchFree
			}
		}

		switch {
		case haveDisasm && !haveStackSize && disasmFrame > 0:
			// Case 1: LLVM/.stack_sizes reports nothing (or reports
			// zero) but the instructions visibly push registers.
			set(node, disasmFrame, SourceDisasmOverride)
			diags.Addf(id, diag.KindFrameOverride,
				"overriding missing stack-size info with disassembled frame %d bytes", disasmFrame)

		case haveDisasm && haveStackSize && stackSizeFrame == 0 && disasmFrame > 0:
			set(node, disasmFrame, SourceDisasmOverride)
			diags.Addf(id, diag.KindFrameOverride,
				"overriding reported frame 0 with disassembled frame %d bytes", disasmFrame)

		case haveDisasm && haveStackSize && disasmExact && disasmFrame > stackSizeFrame:
			// Case 2: the known outlined-function bug on Cortex-M:
			// the IR reports a smaller frame than the branch-free
			// machine code actually uses.
			set(node, disasmFrame, SourceDisasmOverride)
			diags.Addf(id, diag.KindFrameOverride,
				"overriding outlined-function frame %d with disassembled frame %d bytes", stackSizeFrame, disasmFrame)

		case haveStackSize:
			if haveDisasm && disasmFrame != stackSizeFrame {
				// Disagreement outside the two known-bug shapes above:
				// per policy, prefer LLVM/.stack_sizes and warn so the
				// discrepancy is visible rather than silently resolved.
				diags.Addf(id, diag.KindFrameOverride,
					"frame mismatch for %s: stack_sizes=%d disasm=%d; keeping stack_sizes", id, stackSizeFrame, disasmFrame)
			}
			set(node, stackSizeFrame, SourceStackSizes)

		case haveDisasm:
			set(node, disasmFrame, SourceDisasmOverride)

		default:
			diags.Add(id, diag.KindMissingStackSize, "no .stack_sizes or disassembled frame info")
		}
	}
}

func set(n *Node, v uint64, src FrameSource) {
	vv := v
	n.Frame = &vv
	n.FrameSource = src
}
