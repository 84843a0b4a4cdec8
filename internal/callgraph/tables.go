package callgraph

import (
	"strings"

	"github.com/nullstream/stackgraph/internal/target"
)

// intrinsicLowering is one row of the intrinsic-lowering table: an
// LLVM intrinsic name prefix maps to its ordered candidate concrete
// lowerings on a given target capability, most-specific-alignment
// first. A row with an empty (non-nil) Lowerings slice means "pure
// intrinsic, no edges"; absence of any matching row (nil) means
// "unknown intrinsic".
type intrinsicLowering struct {
	Prefix     string
	Capability target.Capability
	Lowerings  []string
}

// intrinsicTable is the single declarative table the builder consults
// for intrinsic-lowering edges (§4.4 step 4). Kept as a table, not
// buried logic, so additional lowerings can be added without touching
// the builder.
var intrinsicTable = []intrinsicLowering{
	{Prefix: "llvm.memcpy.", Capability: target.Thumbv6m, Lowerings: []string{"__aeabi_memcpy4", "__aeabi_memcpy8", "__aeabi_memcpy"}},
	{Prefix: "llvm.memcpy.", Capability: target.Thumbv7m, Lowerings: []string{"__aeabi_memcpy4", "__aeabi_memcpy8", "__aeabi_memcpy"}},
	{Prefix: "llvm.memmove.", Capability: target.Thumbv6m, Lowerings: []string{"__aeabi_memmove4", "__aeabi_memmove8", "__aeabi_memmove"}},
	{Prefix: "llvm.memmove.", Capability: target.Thumbv7m, Lowerings: []string{"__aeabi_memmove4", "__aeabi_memmove8", "__aeabi_memmove"}},
	{Prefix: "llvm.memset.", Capability: target.Thumbv6m, Lowerings: []string{"__aeabi_memset4", "__aeabi_memset8", "__aeabi_memset"}},
	{Prefix: "llvm.memset.", Capability: target.Thumbv7m, Lowerings: []string{"__aeabi_memset4", "__aeabi_memset8", "__aeabi_memset"}},
	{Prefix: "llvm.abs.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.smin.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.smax.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.umin.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.umax.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.fabs.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.bswap.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.ctpop.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.dbg.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.lifetime.", Capability: target.Other, Lowerings: []string{}},
	{Prefix: "llvm.assume", Capability: target.Other, Lowerings: []string{}},
}

// lookupIntrinsic returns the candidate lowerings for name on the
// given target, or nil if name matches no table row at all (an
// unknown intrinsic, which should warn). A non-nil, empty result means
// the intrinsic matched a pure-intrinsic row with no lowering edges.
// A row whose Capability is target.Other applies regardless of the
// actual target (pure intrinsics with no machine-code footprint
// anywhere).
func lookupIntrinsic(name string, triple target.Triple) []string {
	cap := triple.Capability()
	for _, row := range intrinsicTable {
		if !strings.HasPrefix(name, row.Prefix) {
			continue
		}
		if row.Capability == target.Other || row.Capability == cap {
			return row.Lowerings
		}
	}
	return nil
}

// formattingHack is one row of the formatting-API hack table: a
// name pattern identifying a type-erased formatting-layer call site,
// and the known implementer set to wire in place of (or in addition
// to) whatever fingerprint matching would produce.
//
// Kept as a table per the explicit instruction that this special case
// must be addable without touching the indirect-edge algorithm.
type formattingHack struct {
	namePattern  string // substring/suffix match against a node ID or fingerprint
	implementers []string
}

func (h formattingHack) match(id string) bool {
	return strings.Contains(id, h.namePattern)
}

func (h formattingHack) fingerprintMatch(fp string) bool {
	return strings.Contains(fp, h.namePattern)
}

// formattingHackTable has no entries by default: the target programs
// this tool analyzes do not link the particular type-erased formatter
// machinery the hack exists for. The table stays in place, and a real
// deployment adds rows here keyed by the formatter's actual erased
// fingerprint string and the concrete Display/Debug implementations it
// should resolve to, without touching addIndirectEdges.
var formattingHackTable = []formattingHack{}
