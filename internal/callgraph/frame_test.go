package callgraph

import (
	"testing"

	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/elfx"
	"github.com/nullstream/stackgraph/internal/irmodule"
	"github.com/nullstream/stackgraph/internal/target"
	"github.com/nullstream/stackgraph/internal/thumb"
)

func baseInput(mod *irmodule.Module) Input {
	return Input{
		Module:      mod,
		ELFSymbols:  []elfx.FuncSymbol{{Name: "f", Addr: 0x1000, Size: 8}},
		AliasGroups: map[uint64][]string{0x1000: {"f"}},
		Triple:      target.Parse("thumbv7m-none-eabi"),
	}
}

func oneNodeGraph() *Graph {
	return &Graph{Nodes: map[string]*Node{"f": {ID: "f", Kind: Concrete}}}
}

func TestAttachFramesPrefersStackSizesOnAgreement(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{0x1000: 24}
	in.Disasm = map[string]thumb.Result{"f": {FrameBytes: 24, BranchFree: true}}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if got := *g.Nodes["f"].Frame; got != 24 {
		t.Errorf("Frame = %d, want 24", got)
	}
	if g.Nodes["f"].FrameSource != SourceStackSizes {
		t.Errorf("FrameSource = %v, want SourceStackSizes", g.Nodes["f"].FrameSource)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no warnings on agreement, got %+v", diags.Items())
	}
}

func TestAttachFramesOverridesMissingStackSize(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{}
	in.Disasm = map[string]thumb.Result{"f": {FrameBytes: 16, BranchFree: true}}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if got := *g.Nodes["f"].Frame; got != 16 {
		t.Errorf("Frame = %d, want 16 (disassembled override)", got)
	}
	if g.Nodes["f"].FrameSource != SourceDisasmOverride {
		t.Errorf("FrameSource = %v, want SourceDisasmOverride", g.Nodes["f"].FrameSource)
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.KindFrameOverride {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a frame_override warning, got %+v", diags.Items())
	}
}

func TestAttachFramesOverridesOutlinedUndercount(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{0x1000: 8} // LLVM undercounts an outlined frame
	in.Disasm = map[string]thumb.Result{"f": {FrameBytes: 32, BranchFree: true}}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if got := *g.Nodes["f"].Frame; got != 32 {
		t.Errorf("Frame = %d, want 32 (disassembled override wins over smaller branch-free count)", got)
	}
}

func TestAttachFramesKeepsStackSizesOnDisagreementOutsideKnownBugs(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{0x1000: 40}
	// disasmExact is false here (BranchFree: false), so this is a plain
	// disagreement, not one of the two documented override shapes.
	in.Disasm = map[string]thumb.Result{"f": {FrameBytes: 8, BranchFree: false}}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if got := *g.Nodes["f"].Frame; got != 40 {
		t.Errorf("Frame = %d, want 40 (stack_sizes wins on generic disagreement)", got)
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == diag.KindFrameOverride {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a frame-mismatch warning even though stack_sizes was kept, got %+v", diags.Items())
	}
}

func TestAttachFramesMissingEverythingWarns(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{}
	in.Disasm = map[string]thumb.Result{}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if g.Nodes["f"].Frame != nil {
		t.Errorf("Frame = %v, want nil", g.Nodes["f"].Frame)
	}
	if diags.Len() != 1 || diags.Items()[0].Kind != diag.KindMissingStackSize {
		t.Errorf("expected exactly one KindMissingStackSize warning, got %+v", diags.Items())
	}
}

func TestAttachFramesSetsAddrFromELFSymbol(t *testing.T) {
	mod := &irmodule.Module{Funcs: map[string]*irmodule.FuncDef{"f": {Name: "f"}}}
	in := baseInput(mod)
	in.StackSizes = map[uint64]uint64{0x1000: 8}

	g := oneNodeGraph()
	canon := canonicalNames(mod, in.AliasGroups)
	var diags diag.Diags
	attachFrames(g, in, canon, &diags)

	if g.Nodes["f"].Addr == nil || *g.Nodes["f"].Addr != 0x1000 {
		t.Errorf("Addr = %v, want 0x1000", g.Nodes["f"].Addr)
	}
}
