// Package elfx opens the linked ELF object and exposes the symbol
// table, the .stack_sizes section, and raw code bytes per symbol.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNoSymbol  = errors.New("elfx: symbol not found")
	ErrNoSegment = errors.New("elfx: no PT_LOAD segment covers address")
)

// File wraps a debug/elf.File with the convenience methods the
// disassembler and call-graph builder need.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64
}

// Open opens path as an ELF file. Any machine/class is accepted here;
// architecture-specific behavior (the Thumb disassembler) is gated
// separately by the caller-supplied target triple, not by this
// reader.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	return &File{ELF: ef, raw: f, size: info.Size()}, nil
}

// Close releases resources.
func (f *File) Close() error {
	err := f.ELF.Close()
	if c, ok := f.raw.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// FuncSymbol is one defined function symbol.
type FuncSymbol struct {
	Name string
	Addr uint64
	Size uint64
}

// Symbols enumerates every defined function symbol (STT_FUNC with a
// non-undefined section index) in the ELF symbol table. Symbols
// sharing an address are all returned; callers that need one name per
// address group them with Aliases and pick a canonical name themselves.
func (f *File) Symbols() ([]FuncSymbol, error) {
	syms, err := f.ELF.Symbols()
	if err != nil {
		// A stripped binary may have no static symbol table at all;
		// that is not fatal, it just means fewer concrete nodes.
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, nil
		}
		return nil, fmt.Errorf("elfx: symtab: %w", err)
	}
	var out []FuncSymbol
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			continue
		}
		if s.Name == "" {
			continue
		}
		out = append(out, FuncSymbol{Name: s.Name, Addr: s.Value, Size: s.Size})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr != out[j].Addr {
			return out[i].Addr < out[j].Addr
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Aliases groups defined function symbols by address: every address
// with more than one symbol name is an alias group. The caller (the
// call-graph builder) picks the canonical name per group; this
// package only reports the grouping, per the rule that aliases are
// recorded, not merged, at the ELF layer.
func Aliases(syms []FuncSymbol) map[uint64][]string {
	groups := make(map[uint64][]string)
	for _, s := range syms {
		groups[s.Addr] = append(groups[s.Addr], s.Name)
	}
	return groups
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads n bytes starting at the given virtual address,
// clamped to the file's extent.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	avail := f.size - int64(off)
	if avail <= 0 {
		return nil, fmt.Errorf("elfx: offset 0x%x at or past end of file", off)
	}
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// BytesForSymbol reads a function's code bytes using its symbol size.
func (f *File) BytesForSymbol(sym FuncSymbol) ([]byte, error) {
	if sym.Size == 0 {
		return nil, nil
	}
	return f.ReadBytesAtVA(sym.Addr, int(sym.Size))
}

// ByteOrder returns the ELF byte order, used to decode .stack_sizes
// addresses in the target's recorded endianness.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.ELF.ByteOrder
}

// Section returns the named section's raw bytes, or nil if absent.
// Absence of .stack_sizes specifically is not an error at this layer;
// see StackSizes.
func (f *File) Section(name string) ([]byte, error) {
	sec := f.ELF.Section(name)
	if sec == nil {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfx: section %s: %w", name, err)
	}
	return data, nil
}

// AddrSize is the address width, in bytes, .stack_sizes records use:
// 4 on a 32-bit ELF class, 8 on 64-bit.
func (f *File) AddrSize() int {
	if f.ELF.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}
