// Package fingerprint canonicalizes LLVM function types into the
// target-independent strings used to match indirect call sites against
// address-taken functions.
package fingerprint

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/types"
)

// OfFunc returns the canonical fingerprint of a function type: its
// return type and parameter-type list, with alignment, parameter
// names, and attributes stripped. Two functions with identical
// fingerprints are potentially interchangeable at an indirect call
// site of that fingerprint.
func OfFunc(sig *types.FuncType) string {
	var b strings.Builder
	b.WriteString(Of(sig.RetType))
	b.WriteString(" (")
	for i, p := range sig.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Of(p))
	}
	if sig.Variadic {
		if len(sig.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteString(")")
	return b.String()
}

// Of returns the canonical fingerprint fragment for a single type.
// Pointer types collapse to "ptr" regardless of pointee or address
// space: the fingerprint tracks call-compatibility, not pointee
// identity, so a bitcast-of-function-pointer call site still matches
// the callee's declared signature.
func Of(t types.Type) string {
	switch v := t.(type) {
	case *types.VoidType:
		return "void"
	case *types.IntType:
		return fmt.Sprintf("i%d", v.BitSize)
	case *types.FloatType:
		return v.Kind.String()
	case *types.PointerType:
		return "ptr"
	case *types.ArrayType:
		return fmt.Sprintf("[%d x %s]", v.Len, Of(v.ElemType))
	case *types.VectorType:
		return fmt.Sprintf("<%d x %s>", v.Len, Of(v.ElemType))
	case *types.StructType:
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Of(f)
		}
		return "{" + strings.Join(fields, ", ") + "}"
	case *types.FuncType:
		return OfFunc(v)
	case *types.LabelType:
		return "label"
	case *types.MetadataType:
		return "metadata"
	default:
		// Fallback for any type kind not enumerated above: use its
		// LLVM syntax verbatim. Still deterministic, just not as
		// aggressively normalized.
		return t.String()
	}
}
