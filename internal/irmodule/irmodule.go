// Package irmodule decodes the compiler's textual LLVM IR for the
// final linked program into a typed module: function signatures, call
// sites, and the address-taken set, built on top of github.com/llir/llvm.
package irmodule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nullstream/stackgraph/internal/diag"
	"github.com/nullstream/stackgraph/internal/fingerprint"
)

// CallSite is one call instruction inside a caller function. Invoke
// terminators are not recorded as call sites.
type CallSite struct {
	Caller      string
	Direct      bool
	Callee      string // set iff Direct
	Fingerprint string // observed callee-type fingerprint; always set
	Intrinsic   string // non-empty iff this is a call to an "llvm.*" intrinsic
	InlineAsm   bool   // true iff the callee is a raw "asm ..." expression, not a named function
}

// FuncDef is one function, declared or defined, found in the module.
type FuncDef struct {
	Name        string
	Fingerprint string
	Defined     bool // has a body; false for an external declaration
	CallSites   []CallSite
}

// Module is the parsed, immutable view over one LLVM IR file.
type Module struct {
	Funcs        map[string]*FuncDef
	AddressTaken map[string]bool
}

// Parse reads path and decodes it with the LLVM assembly parser. A
// syntactically malformed file fails with a wrapped "cannot parse IR"
// error; per-function anomalies (unknown opcodes) become warnings in
// diags rather than failures, since later pipeline stages are total
// functions over whatever was recovered.
func Parse(path string, diags *diag.Diags) (*Module, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("irmodule: cannot parse IR %s: %w", path, err)
	}
	return build(m, diags), nil
}

// ParseString is Parse over an in-memory IR buffer, used by tests that
// build small fixture programs inline.
func ParseString(src string, diags *diag.Diags) (*Module, error) {
	m, err := asm.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("irmodule: cannot parse IR: %w", err)
	}
	return build(m, diags), nil
}

func build(m *ir.Module, diags *diag.Diags) *Module {
	mod := &Module{
		Funcs:        make(map[string]*FuncDef),
		AddressTaken: make(map[string]bool),
	}

	for _, f := range m.Funcs {
		name := f.Name()
		def := &FuncDef{
			Name:        name,
			Fingerprint: fingerprint.OfFunc(f.Sig),
			Defined:     len(f.Blocks) > 0,
		}
		mod.Funcs[name] = def
	}
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		walkFuncBody(f, mod, diags)
	}

	for _, g := range m.Globals {
		if g.Init != nil {
			walkConstant(g.Init, func(fn string) { mod.AddressTaken[fn] = true })
		}
	}

	// Unknown-opcode warnings are attached during instruction walking
	// above, in walkInstOperands's default case, as each function body
	// is walked; no extra pass is needed here.
	return mod
}

// walkFuncBody records the caller's call sites and feeds the
// address-taken visitor over every non-callee operand.
func walkFuncBody(f *ir.Func, mod *Module, diags *diag.Diags) {
	name := f.Name()
	def := mod.Funcs[name]
	mark := func(fn string) { mod.AddressTaken[fn] = true }

	asmSite := 0
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			call, isCall := asCall(inst)
			if isCall {
				cs := classifyCall(name, call, &asmSite, diags)
				def.CallSites = append(def.CallSites, cs)
			}
			walkInstOperands(inst, isCall, mark, diags)
		}
		if term := block.Term; term != nil {
			walkTermOperands(term, mark)
		}
	}
}

// callInst abstracts over *ir.InstCall; invoke is not modeled
// separately since in this target's IR invoke does not appear
// (no exception handling on Cortex-M), but the type is kept narrow so
// adding it later only touches this file.
type callInst struct {
	Callee value.Value
	Args   []value.Value
	Sig    *types.FuncType
}

func asCall(inst ir.Instruction) (callInst, bool) {
	c, ok := inst.(*ir.InstCall)
	if !ok {
		return callInst{}, false
	}
	sig := c.Sig()
	if sig == nil {
		// Fall back to synthesizing a signature from the observed
		// argument and return types when the parser did not retain an
		// explicit FuncType for this call site.
		params := make([]types.Type, len(c.Args))
		for i, a := range c.Args {
			params[i] = a.Type()
		}
		sig = &types.FuncType{RetType: c.Typ, Params: params}
	}
	return callInst{Callee: c.Callee, Args: c.Args, Sig: sig}, true
}

func classifyCall(caller string, c callInst, asmSite *int, diags *diag.Diags) CallSite {
	cs := CallSite{Caller: caller, Fingerprint: fingerprint.OfFunc(c.Sig)}
	if asm, ok := c.Callee.(*ir.InlineAsm); ok {
		cs.InlineAsm = true
		subject := fmt.Sprintf("%s:asm#%d", caller, *asmSite)
		*asmSite++
		diags.Addf(subject, diag.KindInlineAsm,
			"assuming inline asm %q in %s does not use the stack", asm.Asm, caller)
		return cs
	}
	if _, name, ok := unwrapDirectCallee(c.Callee); ok {
		cs.Direct = true
		cs.Callee = name
		if strings.HasPrefix(name, "llvm.") {
			cs.Intrinsic = name
		}
		return cs
	}
	return cs
}

// unwrapDirectCallee follows bitcast-of-function-pointer constant
// expressions down to the named function, the bitcast-of-pointer
// pattern the IR parser must tolerate per the call-site decoding rule.
func unwrapDirectCallee(v value.Value) (*ir.Func, string, bool) {
	switch val := v.(type) {
	case *ir.Func:
		return val, val.Name(), true
	case *constant.ExprBitCast:
		return unwrapDirectCallee(val.From)
	case *constant.ExprPtrToInt:
		return unwrapDirectCallee(val.From)
	case *constant.ExprIntToPtr:
		return unwrapDirectCallee(val.From)
	default:
		return nil, "", false
	}
}

// walkInstOperands marks every operand of inst that constitutes an
// address-take, per the rule: any non-call use of a function symbol.
// isCall tells us inst is the call instruction itself, whose Callee
// operand is exempt (it is the direct-call position, not an
// address-take) but whose Args are not exempt.
func walkInstOperands(inst ir.Instruction, isCall bool, mark func(string), diags *diag.Diags) {
	switch v := inst.(type) {
	case *ir.InstCall:
		for _, a := range v.Args {
			walkValue(a, mark)
		}
	case *ir.InstStore:
		walkValue(v.Src, mark)
		walkValue(v.Dst, mark)
	case *ir.InstLoad:
		walkValue(v.Src, mark)
	case *ir.InstGetElementPtr:
		walkValue(v.Src, mark)
		for _, idx := range v.Indices {
			walkValue(idx, mark)
		}
	case *ir.InstICmp:
		walkValue(v.X, mark)
		walkValue(v.Y, mark)
	case *ir.InstSelect:
		walkValue(v.Cond, mark)
		walkValue(v.ValueTrue, mark)
		walkValue(v.ValueFalse, mark)
	case *ir.InstPhi:
		for _, inc := range v.Incs {
			walkValue(inc.X, mark)
		}
	case *ir.InstExtractValue:
		walkValue(v.X, mark)
	case *ir.InstInsertValue:
		walkValue(v.X, mark)
		walkValue(v.Elem, mark)
	default:
		// Any other instruction kind is not walked for address-taking
		// purposes; flag it once per opcode so a function pointer
		// hidden behind an unhandled opcode shows up as a warning
		// instead of silently going unmarked.
		diags.Addf(opcodeName(inst), diag.KindUnknownOpcode,
			"instruction opcode not walked for address-taken operands")
	}
}

// opcodeName derives a stable per-kind identifier from inst's Go type
// for use as a diagnostic subject, so the dedup-by-subject rule in
// diag.Diags yields exactly one warning per opcode kind regardless of
// how many instances appear across the module.
func opcodeName(inst ir.Instruction) string {
	name := fmt.Sprintf("%T", inst)
	name = strings.TrimPrefix(name, "*ir.Inst")
	return strings.TrimPrefix(name, "*ir.")
}

func walkTermOperands(term ir.Terminator, mark func(string)) {
	switch v := term.(type) {
	case *ir.TermRet:
		if v.X != nil {
			walkValue(v.X, mark)
		}
	case *ir.TermSwitch:
		walkValue(v.X, mark)
	}
}

// walkValue recursively inspects a value for embedded function
// references: direct function leaves and constant expressions that
// wrap one (bitcast, GEP-into-vtable-like-array, ptrtoint/inttoptr).
func walkValue(v value.Value, mark func(string)) {
	switch val := v.(type) {
	case *ir.Func:
		mark(val.Name())
	case constant.Constant:
		walkConstant(val, mark)
	}
}

func walkConstant(c constant.Constant, mark func(string)) {
	switch v := c.(type) {
	case *ir.Func:
		mark(v.Name())
	case *constant.ExprBitCast:
		walkConstant(v.From, mark)
	case *constant.ExprPtrToInt:
		walkConstant(v.From, mark)
	case *constant.ExprIntToPtr:
		walkConstant(v.From, mark)
	case *constant.ExprGetElementPtr:
		walkConstant(v.Src, mark)
	case *constant.Array:
		for _, elem := range v.Elems {
			walkConstant(elem, mark)
		}
	case *constant.Struct:
		for _, elem := range v.Fields {
			walkConstant(elem, mark)
		}
	case *constant.Vector:
		for _, elem := range v.Elems {
			walkConstant(elem, mark)
		}
	default:
		// Scalars (ints, floats, null, undef, poison) carry no
		// function references.
	}
}

// SortedNames returns every function name in the module, sorted, for
// deterministic downstream iteration.
func (m *Module) SortedNames() []string {
	names := make([]string, 0, len(m.Funcs))
	for name := range m.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
