package main

import (
	"flag"
	"fmt"

	"github.com/nullstream/stackgraph/internal/callgraph"
	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/elfx"
	"github.com/nullstream/stackgraph/internal/irmodule"
	"github.com/nullstream/stackgraph/internal/solver"
	"github.com/nullstream/stackgraph/internal/target"
	"github.com/nullstream/stackgraph/internal/thumb"
)

// pipelineFlags are the flags "analyze" and "graph" share.
type pipelineFlags struct {
	ir     *string
	elf    *string
	triple *string
	start  *string
	strict *bool
}

func addPipelineFlags(fs *flag.FlagSet) pipelineFlags {
	return pipelineFlags{
		ir:     fs.String("ir", "", "path to the LLVM textual IR file"),
		elf:    fs.String("elf", "", "path to the linked ELF file"),
		triple: fs.String("triple", "", "target triple (enables the Thumb disassembler fallback on thumbv6m/thumbv7m)"),
		start:  fs.String("start", "", "optional start symbol; retains only the forward-reachable subgraph"),
		strict: fs.Bool("strict", false, "fail on input-incomplete conditions instead of degrading to warnings"),
	}
}

// pipelineResult bundles what every pipeline run produces.
type pipelineResult struct {
	Graph  *callgraph.Graph
	Solved solver.Result
	Diags  *diag.Diags
}

func runPipeline(pf pipelineFlags) (*pipelineResult, error) {
	if *pf.ir == "" {
		return nil, fmt.Errorf("--ir is required")
	}
	if *pf.elf == "" {
		return nil, fmt.Errorf("--elf is required")
	}

	diags := &diag.Diags{}

	mod, err := irmodule.Parse(*pf.ir, diags)
	if err != nil {
		return nil, fmt.Errorf("parse IR: %w", err)
	}

	ef, err := elfx.Open(*pf.elf)
	if err != nil {
		return nil, fmt.Errorf("open ELF: %w", err)
	}
	defer ef.Close()

	syms, err := ef.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	aliases := elfx.Aliases(syms)

	stackSizesSection, err := ef.Section(".stack_sizes")
	if err != nil {
		return nil, fmt.Errorf("read .stack_sizes: %w", err)
	}
	stackSizesAvailable := stackSizesSection != nil
	stackSizes, err := ef.StackSizes()
	if err != nil {
		return nil, fmt.Errorf("decode .stack_sizes: %w", err)
	}

	triple := target.Parse(*pf.triple)

	disasmResults := make(map[string]thumb.Result)
	if triple.Capability() != target.Other {
		for _, s := range syms {
			code, err := ef.BytesForSymbol(s)
			if err != nil || len(code) == 0 {
				continue
			}
			disasmResults[s.Name] = thumb.Analyze(code, s.Addr)
		}
	}

	in := callgraph.Input{
		Module:      mod,
		ELFSymbols:  syms,
		AliasGroups: aliases,
		StackSizes:  stackSizes,
		Disasm:      disasmResults,
		Triple:      triple,
		Start:       *pf.start,
	}
	g := callgraph.Build(in, diags)
	solved := solver.Solve(g, stackSizesAvailable)

	mode := diag.ModeBestEffort
	if *pf.strict {
		mode = diag.ModeStrict
	}
	if fatal := diags.FirstFatal(mode); fatal != nil {
		return nil, fmt.Errorf("strict mode: input incomplete: %s", fatal)
	}

	return &pipelineResult{Graph: g, Solved: solved, Diags: diags}, nil
}
