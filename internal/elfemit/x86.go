package elfemit

import "encoding/binary"

// reg is an x86_64 general-purpose register, numbered the way the ModRM/
// REX encoding wants: 0-7 are the legacy registers, 8-15 need REX.R/X/B.
type reg int

const (
	rax reg = 0
	rcx reg = 1
	rdx reg = 2
	rbx reg = 3
	rsp reg = 4
	rbp reg = 5
	rsi reg = 6
	rdi reg = 7
	r8  reg = 8
	r9  reg = 9
	r10 reg = 10
	r15 reg = 15
)

// asm accumulates native code bytes for one procedure's worth (or the
// whole program's) of instructions. Every method appends to buf; the
// ones that leave a patch site (jmpRel32, jneRel32, callRel32,
// movImm64Patchable) return that site's buffer offset.
type asm struct {
	buf []byte
}

func (a *asm) emit(b ...byte) { a.buf = append(a.buf, b...) }

func (a *asm) len() int { return len(a.buf) }

// rex builds a REX prefix. w selects 64-bit operand size; r/x/b extend
// the reg/index/rm fields for registers 8-15.
func rex(w bool, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, regField, rm byte) byte {
	return mod<<6 | (regField&7)<<3 | (rm & 7)
}

func ext(r reg) bool { return r >= 8 }

func low(r reg) byte { return byte(r & 7) }

// pushReg emits PUSH r64.
func (a *asm) pushReg(r reg) {
	if ext(r) {
		a.emit(0x41)
	}
	a.emit(0x50 + low(r))
}

// popReg emits POP r64.
func (a *asm) popReg(r reg) {
	if ext(r) {
		a.emit(0x41)
	}
	a.emit(0x58 + low(r))
}

// movImm64 emits MOV r64, imm64 (the "movabs" form).
func (a *asm) movImm64(dst reg, imm uint64) {
	a.emit(rex(true, false, false, ext(dst)))
	a.emit(0xB8 + low(dst))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], imm)
	a.emit(b[:]...)
}

// movImm64Patchable emits MOV dst, imm64 with a zero immediate and returns
// the buffer offset of that 8-byte immediate, so the caller can patch it in
// once a value (e.g. a data-segment load address) becomes known after layout.
func (a *asm) movImm64Patchable(dst reg) (immAt int) {
	a.movImm64(dst, 0)
	return len(a.buf) - 8
}

func (a *asm) patchUint64(at int, v uint64) {
	binary.LittleEndian.PutUint64(a.buf[at:at+8], v)
}

// movImm32 emits MOV r32, imm32 (zero-extends to 64 bits), for small
// constants like syscall numbers and file descriptors.
func (a *asm) movImm32(dst reg, imm uint32) {
	if ext(dst) {
		a.emit(0x41)
	}
	a.emit(0xB8 + low(dst))
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], imm)
	a.emit(b[:]...)
}

// loadMem emits MOV dst, [base + disp32].
func (a *asm) loadMem(dst, base reg, disp int32) {
	a.emit(rex(true, ext(dst), false, ext(base)))
	a.emit(0x8B)
	a.emit(modrm(2, byte(dst), byte(base)))
	if low(base) == low(rsp) {
		a.emit(0x24) // SIB: no index, base=rsp/r12
	}
	a.emitDisp32(disp)
}

// storeMem emits MOV [base + disp32], src.
func (a *asm) storeMem(base reg, disp int32, src reg) {
	a.emit(rex(true, ext(src), false, ext(base)))
	a.emit(0x89)
	a.emit(modrm(2, byte(src), byte(base)))
	if low(base) == low(rsp) {
		a.emit(0x24)
	}
	a.emitDisp32(disp)
}

// storeMemWidth stores the low `width` bytes of src into [base+disp32]:
// width 8 uses a 64-bit MOV, width 4 a 32-bit MOV, width 1 an 8-bit MOV.
func (a *asm) storeMemWidth(base reg, disp int32, src reg, width int) {
	switch width {
	case 1:
		if ext(src) || ext(base) {
			a.emit(rex(false, ext(src), false, ext(base)))
		}
		a.emit(0x88)
		a.emit(modrm(2, byte(src), byte(base)))
		if low(base) == low(rsp) {
			a.emit(0x24)
		}
		a.emitDisp32(disp)
	case 4:
		if ext(src) || ext(base) {
			a.emit(rex(false, ext(src), false, ext(base)))
		}
		a.emit(0x89)
		a.emit(modrm(2, byte(src), byte(base)))
		if low(base) == low(rsp) {
			a.emit(0x24)
		}
		a.emitDisp32(disp)
	default:
		a.storeMem(base, disp, src)
	}
}

func (a *asm) emitDisp32(disp int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(disp))
	a.emit(b[:]...)
}

// aluRR emits a two-operand REX.W arithmetic/logic instruction of the
// "op r/m64, r64" encoding family (ADD/SUB/CMP/TEST), dst is r/m, src is
// reg.
func (a *asm) aluRR(opcode byte, dst, src reg) {
	a.emit(rex(true, ext(src), false, ext(dst)))
	a.emit(opcode)
	a.emit(modrm(3, byte(src), byte(dst)))
}

// addImm32 emits ADD dst, imm32 (REX.W 81 /0 id, the "group 1"
// encoding), used for Pop(n)'s constant-count stack adjustment.
func (a *asm) addImm32(dst reg, imm int32) {
	a.emit(rex(true, false, false, ext(dst)))
	a.emit(0x81)
	a.emit(modrm(3, 0, byte(dst)))
	a.emitDisp32(imm)
}

func (a *asm) addRR(dst, src reg)  { a.aluRR(0x01, dst, src) }
func (a *asm) subRR(dst, src reg)  { a.aluRR(0x29, dst, src) }
func (a *asm) cmpRR(dst, src reg)  { a.aluRR(0x39, dst, src) }
func (a *asm) testRR(dst, src reg) { a.aluRR(0x85, dst, src) }
func (a *asm) xorRR(dst, src reg)  { a.aluRR(0x31, dst, src) }

func (a *asm) imulRR(dst, src reg) {
	a.emit(rex(true, ext(dst), false, ext(src)))
	a.emit(0x0F, 0xAF)
	a.emit(modrm(3, byte(dst), byte(src)))
}

// div emits DIV r64 (unsigned rdx:rax / src -> quotient rax, remainder
// rdx), matching the interpreter's unsigned l/r and l%r. Callers must
// zero rdx first (xorRR(rdx, rdx)); there is no sign to extend.
func (a *asm) div(src reg) {
	a.emit(rex(true, false, false, ext(src)))
	a.emit(0xF7)
	a.emit(modrm(3, 6, byte(src)))
}

// setcc emits SETcc al (cc is one of the 0x9x condition codes) followed
// by MOVZX rax, al so the boolean result occupies a full word the way
// the interpreter's boolWord does.
func (a *asm) setcc(cc byte, dst reg) {
	a.emit(0x0F, cc)
	a.emit(modrm(3, 0, 0)) // sets al
	a.emit(rex(true, ext(dst), false, false))
	a.emit(0x0F, 0xB6)
	a.emit(modrm(3, byte(dst), 0)) // movzx dst, al
}

const (
	setb = 0x92 // unsigned below
	seta = 0x97 // unsigned above
	sete = 0x94
)

// jmpRel32, jccRel32, callRel32 each emit the opcode and a 4-byte
// placeholder, returning the buffer offset of that placeholder so a
// second pass can patch in the real displacement once both the
// instruction's end address and its target's address are known.
func (a *asm) jmpRel32() (patchAt int) {
	a.emit(0xE9)
	patchAt = a.len()
	a.emit(0, 0, 0, 0)
	return patchAt
}

func (a *asm) jneRel32() (patchAt int) {
	a.emit(0x0F, 0x85)
	patchAt = a.len()
	a.emit(0, 0, 0, 0)
	return patchAt
}

func (a *asm) callRel32() (patchAt int) {
	a.emit(0xE8)
	patchAt = a.len()
	a.emit(0, 0, 0, 0)
	return patchAt
}

// patchRel32 fills in a previously reserved rel32 site: the displacement
// is relative to the first byte after the 4-byte field itself.
func (a *asm) patchRel32(patchAt int, target int) {
	rel := int32(target - (patchAt + 4))
	binary.LittleEndian.PutUint32(a.buf[patchAt:patchAt+4], uint32(rel))
}

func (a *asm) ret()     { a.emit(0xC3) }
func (a *asm) syscall() { a.emit(0x0F, 0x05) }
