package callgraph

import "github.com/nullstream/stackgraph/internal/diag"

// computeLiveSet is the live-set rule: the intersection of IR-defined
// functions with ELF-defined symbols, plus ELF-defined symbols that
// have no IR but do have disassembler-derived frame info (hand-written
// assembly, precompiled runtime routines the IR never saw).
func computeLiveSet(in Input, canon map[string]string, diags *diag.Diags) map[string]bool {
	elfNames := make(map[string]bool, len(in.ELFSymbols))
	for _, s := range in.ELFSymbols {
		elfNames[resolve(canon, s.Name)] = true
	}

	live := make(map[string]bool)
	for name, def := range in.Module.Funcs {
		if !def.Defined {
			continue // external declaration, not a live function itself
		}
		cname := resolve(canon, name)
		if elfNames[cname] {
			live[cname] = true
		}
	}
	for name := range elfNames {
		if live[name] {
			continue
		}
		if _, hasIR := in.Module.Funcs[name]; hasIR {
			continue
		}
		if _, hasDisasm := in.Disasm[name]; hasDisasm {
			live[name] = true
		}
	}
	return live
}
