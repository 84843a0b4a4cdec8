package thumb

import "testing"

func TestAnalyzeEmptyCode(t *testing.T) {
	res := Analyze(nil, 0x1000)
	if !res.BranchFree {
		t.Error("empty function should be considered branch-free")
	}
	if res.FrameBytes != 0 {
		t.Errorf("FrameBytes = %d, want 0", res.FrameBytes)
	}
	if res.Anomaly {
		t.Error("empty function should not be an anomaly")
	}
}

// le16Bytes lays out a 16-bit Thumb halfword the way the linker packs
// it into a little-endian ELF .text section.
func le16Bytes(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func TestAnalyzePushR4toR7LR(t *testing.T) {
	// "push {r4-r7, lr}" = 0xb5f0: load=0 (push), pclr=1 (LR),
	// regList=0xf0 (r4-r7) -> (4 + 1) * 4 = 20 bytes.
	code := le16Bytes(0xb5f0)
	res := Analyze(code, 0x1000)
	if res.FrameBytes != 20 {
		t.Errorf("FrameBytes = %d, want 20", res.FrameBytes)
	}
	if !res.BranchFree {
		t.Error("a bare push is branch-free")
	}
	if res.Anomaly {
		t.Error("unexpected anomaly")
	}
}

func TestAnalyzeSubSPImmediate(t *testing.T) {
	// "sub sp, sp, #16" = 0xb084: sign bit (0x80) set, imm=(0x84&0x7f)<<2=16.
	code := le16Bytes(0xb084)
	res := Analyze(code, 0x1000)
	if res.FrameBytes != 16 {
		t.Errorf("FrameBytes = %d, want 16", res.FrameBytes)
	}
}

func TestAnalyzeAddSPImmediateDoesNotGrowFrame(t *testing.T) {
	// "add sp, sp, #16" = 0xb004: sign bit clear, a deallocation, not
	// a frame-growing instruction.
	code := le16Bytes(0xb004)
	res := Analyze(code, 0x1000)
	if res.FrameBytes != 0 {
		t.Errorf("FrameBytes = %d, want 0 for a plain SP increment", res.FrameBytes)
	}
}

func TestAnalyzePushThenSubTakesTheLarger(t *testing.T) {
	code := append(le16Bytes(0xb5f0), le16Bytes(0xb084)...) // push (20) then sub sp,#16
	res := Analyze(code, 0x1000)
	if res.FrameBytes != 20 {
		t.Errorf("FrameBytes = %d, want 20 (the larger of the two)", res.FrameBytes)
	}
}

func TestAnalyzeThumb2BL(t *testing.T) {
	// 32-bit BL T1 encoding: hi=0xf000 (s=0,imm10=0), lo=0xf802
	// (j1=1,j2=1,imm11=2) -> imm32=4, target = pc+4+4 = pc+8.
	code := append(le16Bytes(0xf000), le16Bytes(0xf802)...)
	res := Analyze(code, 0x1000)
	if res.BranchFree {
		t.Error("a BL makes the function not branch-free")
	}
	if len(res.DirectCalls) != 1 || res.DirectCalls[0] != 0x1008 {
		t.Errorf("DirectCalls = %v, want [0x1008]", res.DirectCalls)
	}
}

func TestAnalyzeThumb2BLX(t *testing.T) {
	// Same as above with lo bit 12 cleared: BLX(immediate), an
	// indirect-mode-switching call this tool treats conservatively
	// without computing a target.
	code := append(le16Bytes(0xf000), le16Bytes(0xe802)...)
	res := Analyze(code, 0x1000)
	if !res.Indirect {
		t.Error("BLX(immediate) should be recorded as an indirect call")
	}
}

func TestAnalyzeBXReturnIsNotIndirect(t *testing.T) {
	// "bx lr" = 0x4770: format 5, op=0b11 (bits 9:8), L bit7 clear
	// (BX not BLX), H2 bit6 set + rs bits5:3=6 -> srcReg = 14 (lr).
	code := le16Bytes(0x4770)
	res := Analyze(code, 0x1000)
	if res.Indirect {
		t.Error("bx lr is an ordinary return, not an indirect call")
	}
	if res.BranchFree {
		t.Error("bx is control flow, not branch-free")
	}
}

func TestAnalyzeBXRegisterIsIndirect(t *testing.T) {
	// "bx r0" = 0x4700: srcReg = r0.
	code := le16Bytes(0x4700)
	res := Analyze(code, 0x1000)
	if !res.Indirect {
		t.Error("bx through a register other than lr is an indirect call")
	}
}

func TestAnalyzeUDFStopsGracefully(t *testing.T) {
	// "udf #0" = 0xde00, followed by a push that must not be reached.
	code := append(le16Bytes(0xde00), le16Bytes(0xb5f0)...)
	res := Analyze(code, 0x1000)
	if !res.UDFEncountered {
		t.Error("expected UDFEncountered")
	}
	if res.FrameBytes != 0 {
		t.Errorf("FrameBytes = %d, want 0: decoding must stop at UDF", res.FrameBytes)
	}
}

func TestAnalyzeVPUSH(t *testing.T) {
	// "vpush {s0}" (T2, single-precision): hi=0xed2d (D=0), lo has
	// Vd=0,sz=0,imm8=1 -> lo = 0x0a00 | 1 = 0x0a01; decrement = 1*4 = 4.
	code := append(le16Bytes(0xed2d), le16Bytes(0x0a01)...)
	res := Analyze(code, 0x1000)
	if res.FrameBytes != 4 {
		t.Errorf("FrameBytes = %d, want 4", res.FrameBytes)
	}
}

func TestAnalyzeTruncatedTailIsAnomaly(t *testing.T) {
	res := Analyze([]byte{0xf0}, 0x1000)
	if !res.Anomaly {
		t.Error("a single trailing byte cannot be decoded and must be an anomaly")
	}
}

func TestAnalyzeUnconditionalBranchTarget(t *testing.T) {
	// "b ." = 0xe7fe, the classic self-branch trap: imm11 field
	// (raw, before <<1) is -2, offset = -4, target = pc+4-4 = pc,
	// i.e. the instruction branches to itself.
	code := le16Bytes(0xe7fe)
	res := Analyze(code, 0x1000)
	if res.BranchFree {
		t.Error("an unconditional branch is not branch-free")
	}
	if len(res.DirectBranch) != 1 || res.DirectBranch[0] != 0x1000 {
		t.Errorf("DirectBranch = %v, want [0x1000]", res.DirectBranch)
	}
}
