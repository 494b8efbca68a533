package elfemit

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
)

// externSyscalls maps the small set of symbol names this language's
// "внеш" procedures may name to a raw Linux x86_64 syscall number.
// There is no dynamic linker in a statically linked ET_EXEC binary, so
// "external" here means "thin syscall wrapper" rather than "call into
// libc" -- the same scope the interpreter already refuses to run (see
// vm.UnsupportedInInterpreter on CallExternal/Syscall).
var externSyscalls = map[string]int64{
	"чтение": int64(unix.SYS_READ),
	"запись": int64(unix.SYS_WRITE),
	"выход":  int64(unix.SYS_EXIT),
	"read":   int64(unix.SYS_READ),
	"write":  int64(unix.SYS_WRITE),
	"exit":   int64(unix.SYS_EXIT),
}

// argRegs is the System V argument register order this backend marshals
// CallExternal/Syscall operands into, per SPEC_FULL.md §4.4.
var argRegs = []reg{rdi, rsi, rdx, r10, r8, r9}

type relocKind int

const (
	relocCode relocKind = iota // target is a code index, resolved to its native offset
	relocData                 // target is a data-region offset, resolved to dataBase+offset (full 8-byte imm, not rel32)
	relocExit                 // target is the shared exit trampoline
)

// reloc is a deferred patch: at a byte offset in the code buffer, write
// either a rel32 displacement (code/exit) or a full imm64 (data),
// computed once the rest of layout is known.
type reloc struct {
	kind   relocKind
	at     int
	target int // code index, or data-region offset
}

// codegen lowers one ir.Program into a native code buffer, the native
// offset of every instruction (for jump/call targets and for Emit's
// `entry` lookup), and the deferred relocations layout must resolve.
type codegen struct {
	a        asm
	offsets  []int // codegen.offsets[i] = native byte offset of prog.Code[i]
	relocs   []reloc
	exitAt   int // patched in once the exit trampoline is emitted
	dataBase uint64
}

func newCodegen(prog *ir.Program) (*codegen, error) {
	cg := &codegen{offsets: make([]int, len(prog.Code))}
	for i, ins := range prog.Code {
		cg.offsets[i] = cg.a.len()
		if err := cg.emitInstr(ins); err != nil {
			return nil, fmt.Errorf("инструкция %d (%v): %w", i, ins.Op, err)
		}
	}
	cg.exitAt = cg.a.len()
	cg.a.movImm32(rax, uint32(unix.SYS_EXIT))
	cg.a.movImm32(rdi, 0)
	cg.a.syscall()
	return cg, nil
}

// resolve patches every deferred relocation once dataBase (the data
// segment's load address) is known.
func (cg *codegen) resolve(dataBase uint64) {
	cg.dataBase = dataBase
	for _, r := range cg.relocs {
		switch r.kind {
		case relocCode:
			cg.a.patchRel32(r.at, cg.offsets[r.target])
		case relocExit:
			cg.a.patchRel32(r.at, cg.exitAt)
		case relocData:
			cg.a.patchUint64(r.at, dataBase+uint64(r.target))
		}
	}
}

func (cg *codegen) emitInstr(ins ir.Instr) error {
	a := &cg.a
	switch ins.Op {
	case ir.Nop:
		// no native op

	case ir.PushInt:
		a.movImm64(rax, uint64(ins.A))
		a.pushReg(rax)

	case ir.PushPtr:
		at := a.movImm64Patchable(rax)
		cg.relocs = append(cg.relocs, reloc{kind: relocData, at: at, target: int(ins.A)})
		a.pushReg(rax)

	case ir.Pop:
		if ins.A > 0 {
			a.addImm32(rsp, int32(ins.A*memlayout.Word))
		}

	case ir.Swap:
		a.popReg(rax)
		a.popReg(rbx)
		a.pushReg(rax)
		a.pushReg(rbx)

	case ir.SaveFrame:
		a.pushReg(rbp)
		a.movRegReg(rbp, rsp)

	case ir.RestoreFrame:
		a.popReg(rbp)

	case ir.ReadFrame:
		disp := frameDisp(ins.A)
		a.loadMem(rax, rbp, disp)
		a.pushReg(rax)

	case ir.WriteFrame:
		disp := frameDisp(ins.A)
		a.popReg(rax)
		a.storeMem(rbp, disp, rax)

	case ir.CallInternal:
		at := a.callRel32()
		cg.relocs = append(cg.relocs, reloc{kind: relocCode, at: at, target: int(ins.A)})

	case ir.CallExternal:
		sysno, ok := externSyscalls[ins.Sym]
		if !ok {
			return fmt.Errorf("неизвестный внешний символ «%s»", ins.Sym)
		}
		cg.emitSyscall(sysno, int(ins.B), ins.HasRet)

	case ir.Store8:
		cg.emitStore(1)
	case ir.Store32:
		cg.emitStore(4)
	case ir.Store64:
		cg.emitStore(8)

	case ir.Load64:
		a.popReg(rax)
		a.loadMem(rax, rax, 0)
		a.pushReg(rax)

	case ir.IntLT:
		cg.emitCompare(setb)
	case ir.IntGT:
		cg.emitCompare(seta)
	case ir.IntEQ:
		cg.emitCompare(sete)

	case ir.IntAdd:
		a.popReg(rbx)
		a.popReg(rax)
		a.addRR(rax, rbx)
		a.pushReg(rax)
	case ir.IntSub:
		a.popReg(rbx)
		a.popReg(rax)
		a.subRR(rax, rbx)
		a.pushReg(rax)
	case ir.IntMul:
		a.popReg(rbx)
		a.popReg(rax)
		a.imulRR(rax, rbx)
		a.pushReg(rax)
	case ir.IntDiv:
		cg.emitDivMod(rax)
	case ir.IntMod:
		cg.emitDivMod(rdx)

	case ir.LogNot:
		a.popReg(rax)
		a.testRR(rax, rax)
		a.setcc(sete, rax)
		a.pushReg(rax)

	case ir.Jump:
		at := a.jmpRel32()
		cg.relocs = append(cg.relocs, reloc{kind: relocCode, at: at, target: int(ins.A)})

	case ir.JumpIf:
		a.popReg(rax)
		a.testRR(rax, rax)
		at := a.jneRel32()
		cg.relocs = append(cg.relocs, reloc{kind: relocCode, at: at, target: int(ins.A)})

	case ir.PrintStr:
		a.popReg(rsi) // ptr was on top
		a.popReg(rdx) // length beneath it
		a.movImm32(rdi, 1) // stdout
		a.movImm32(rax, uint32(unix.SYS_WRITE))
		a.syscall()

	case ir.Read:
		a.popReg(rsi)
		a.popReg(rdx)
		a.movImm32(rdi, 0) // stdin
		a.movImm32(rax, uint32(unix.SYS_READ))
		a.syscall()
		a.pushReg(rax)

	case ir.Return:
		a.cmpRR(rsp, r15)
		jne := a.jneRel32()
		exitJmp := a.jmpRel32()
		notEqual := a.len()
		a.patchRel32(jne, notEqual)
		cg.relocs = append(cg.relocs, reloc{kind: relocExit, at: exitJmp})
		a.ret()

	case ir.Syscall:
		cg.emitSyscall(ins.A, int(ins.B), ins.HasRet)

	default:
		return fmt.Errorf("кодогенерация не поддерживает инструкцию %v", ins.Op)
	}
	return nil
}

func frameDisp(k int64) int32 { return int32(-(k + 1) * memlayout.Word) }

func (cg *codegen) emitStore(width int) {
	a := &cg.a
	a.popReg(rax) // address, was on top
	a.popReg(rbx)
	a.storeMemWidth(rax, 0, rbx, width)
}

func (cg *codegen) emitCompare(cc byte) {
	a := &cg.a
	a.popReg(rbx) // r, was on top
	a.popReg(rax)   // l
	a.cmpRR(rax, rbx)
	a.setcc(cc, rax)
	a.pushReg(rax)
}

func (cg *codegen) emitDivMod(result reg) {
	a := &cg.a
	a.popReg(rbx) // r, was on top
	a.popReg(rax) // l
	a.xorRR(rdx, rdx)
	a.div(rbx)
	a.pushReg(result)
}

// emitSyscall marshals up to len(argRegs) stack arguments (pushed in
// source order, so the top of the stack holds the last argument) into
// the SysV argument registers, then issues the syscall.
func (cg *codegen) emitSyscall(sysno int64, argc int, hasRet bool) {
	a := &cg.a
	for i := argc - 1; i >= 0; i-- {
		if i >= len(argRegs) {
			a.popReg(rax) // more args than registers: popped and dropped
			continue
		}
		a.popReg(argRegs[i])
	}
	a.movImm64(rax, uint64(sysno))
	a.syscall()
	if hasRet {
		a.pushReg(rax)
	}
}

func (a *asm) movRegReg(dst, src reg) {
	a.emit(rex(true, ext(src), false, ext(dst)))
	a.emit(0x89)
	a.emit(modrm(3, byte(src), byte(dst)))
}
