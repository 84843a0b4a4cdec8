package elfx

import "fmt"

// StackSizes decodes the .stack_sizes section into addr -> local frame
// bytes. Each record is a target-pointer-width address in the ELF's
// recorded byte order, immediately followed by a ULEB128-encoded frame
// byte count, with no padding between records. Absence of the section
// is not an error: it yields an empty map, and callers must treat that
// as "exact-bound computation disabled", not as a malformed-input
// fatal error.
func (f *File) StackSizes() (map[uint64]uint64, error) {
	data, err := f.Section(".stack_sizes")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[uint64]uint64{}, nil
	}

	addrSize := f.AddrSize()
	order := f.ByteOrder()
	out := make(map[uint64]uint64)

	off := 0
	for off < len(data) {
		if off+addrSize > len(data) {
			return out, fmt.Errorf("elfx: .stack_sizes: truncated address record at offset %d", off)
		}
		var addr uint64
		if addrSize == 8 {
			addr = order.Uint64(data[off : off+8])
		} else {
			addr = uint64(order.Uint32(data[off : off+4]))
		}
		off += addrSize

		frame, n, err := decodeULEB128(data[off:])
		if err != nil {
			return out, fmt.Errorf("elfx: .stack_sizes: frame size at offset %d: %w", off, err)
		}
		off += n

		// A later record for the same address overwrites an earlier
		// one rather than erroring: linkers can legitimately emit
		// duplicate records when sections are merged.
		out[addr] = frame
	}
	return out, nil
}

// decodeULEB128 decodes a single unsigned LEB128 value from the front
// of b, returning the value and the number of bytes consumed.
func decodeULEB128(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, by := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("uleb128: value too large")
		}
		result |= uint64(by&0x7f) << shift
		if by&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("uleb128: truncated")
}
