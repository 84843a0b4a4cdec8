// Package target parses the caller-supplied target identifier and
// decides which disassembler-fallback capability it enables.
package target

import "strings"

// Capability is the disassembler-fallback class a triple maps to.
type Capability int

const (
	// Other means the Thumb disassembler fallback does not apply; the
	// pipeline runs on .stack_sizes alone.
	Other Capability = iota
	// Thumbv6m is the ARMv6-M Cortex-M0/M0+ Thumb encoding subset
	// (no 32-bit Thumb-2 instructions, UDF must be rejected gracefully).
	Thumbv6m
	// Thumbv7m is the ARMv7-M Cortex-M3/M4/M7 Thumb-2 encoding.
	Thumbv7m
)

func (c Capability) String() string {
	switch c {
	case Thumbv6m:
		return "thumbv6m"
	case Thumbv7m:
		return "thumbv7m"
	default:
		return "other"
	}
}

// Triple is a minimal LLVM-style target triple: arch-vendor-os-env,
// with only the architecture field consulted for capability selection.
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	Env    string
	Raw    string
}

// Parse splits a triple string of the form "thumbv7m-none-eabi" (vendor,
// os, env are optional and filled positionally if present).
func Parse(s string) Triple {
	t := Triple{Raw: s}
	parts := strings.Split(s, "-")
	if len(parts) > 0 {
		t.Arch = parts[0]
	}
	if len(parts) > 1 {
		t.Vendor = parts[1]
	}
	if len(parts) > 2 {
		t.OS = parts[2]
	}
	if len(parts) > 3 {
		t.Env = parts[3]
	}
	return t
}

// Capability maps the triple's architecture field to a disassembler
// capability. Spellings with or without the "arm" prefix are accepted
// ("thumbv7m", "armv7m", "thumbv7em" all map to Thumbv7m).
func (t Triple) Capability() Capability {
	arch := strings.ToLower(t.Arch)
	switch {
	case strings.Contains(arch, "v6m"):
		return Thumbv6m
	case strings.Contains(arch, "v7m"), strings.Contains(arch, "v7em"):
		return Thumbv7m
	default:
		return Other
	}
}
