package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
)

// halt raises a runtime error, unwinding the dispatch loop via panic --
// the same "panic once at a typed boundary" idiom the teacher's
// Core.halt/vmHaltError use, recovered in Interpret (api.go) rather than
// threaded as an (ip, error) return through every opcode below. See
// SPEC_FULL.md §9 for the full rationale.
func (m *Machine) halt(ins ir.Instr, kind Kind, format string, args ...interface{}) {
	panic(&RuntimeError{
		Kind:    kind,
		Loc:     ins.Loc,
		Index:   m.ip,
		Op:      ins.Op,
		Message: fmt.Sprintf(format, args...),
	})
}

// push and pop write/read the u64 words the evaluation stack is built from.
func (m *Machine) push(ins ir.Instr, v uint64) {
	if m.sp < memlayout.Word {
		m.halt(ins, StackOverflow, "стек переполнен")
	}
	m.sp -= memlayout.Word
	binary.LittleEndian.PutUint64(m.memory[m.sp:m.sp+memlayout.Word], v)
}

func (m *Machine) pop(ins ir.Instr) uint64 {
	if m.sp+memlayout.Word > uint64(len(m.memory)) || m.sp < m.topBound() {
		m.halt(ins, StackUnderflow, "недостаточно аргументов для инструкции %v", ins.Op)
	}
	v := binary.LittleEndian.Uint64(m.memory[m.sp : m.sp+memlayout.Word])
	m.sp += memlayout.Word
	return v
}

// topBound returns the lowest valid sp: zero, since the stack occupies
// memory[0..STACK_SIZE) and frames/locals below fp are still legitimate
// evaluation-stack content for arity checks relative to fp per spec.md's
// "words between sp and fp, or between sp and STACK_BASE at top level".
func (m *Machine) topBound() uint64 { return 0 }

// checkArity verifies at least n words are available between sp and
// STACK_BASE before an N-consuming opcode runs, per spec.md §4.2.
func (m *Machine) checkArity(ins ir.Instr, n int) {
	avail := (memlayout.StackBase(m.stackSize) - m.sp) / memlayout.Word
	if avail < uint64(n) {
		m.halt(ins, StackUnderflow, "недостаточно аргументов для инструкции %v: требуется %d, в наличии %d", ins.Op, n, avail)
	}
}

func (m *Machine) checkAddr(ins ir.Instr, addr uint64, width int) {
	if width < 0 || addr > uint64(len(m.memory)) || uint64(len(m.memory))-addr < uint64(width) {
		m.halt(ins, BadAddress, "инструкция попыталась получить доступ к некорректному адресу %d (ширина %d, максимум %d)", addr, width, len(m.memory))
	}
}

// Run executes the dispatch loop per spec.md §4.2's "main loop": fetch,
// dispatch, apply semantics, advance ip -- until Return with an empty
// return-address stack halts successfully, or halt() panics out with a
// *RuntimeError.
func (m *Machine) Run() {
	for {
		if m.ip < 0 || m.ip >= len(m.prog.Code) {
			panic(&RuntimeError{Kind: InvalidIP, Index: m.ip, Message: fmt.Sprintf("некорректный индекс инструкции %d", m.ip)})
		}
		ins := m.prog.Code[m.ip]
		m.logf("%v: %04d: %s", ins.Loc, m.ip, ins)

		if m.debug {
			if halted := m.debugBreak(ins); halted {
				return
			}
		}

		if done := m.step(ins); done {
			return
		}
	}
}

// step executes one instruction and returns true if it was a terminal
// Return (empty return-address stack).
func (m *Machine) step(ins ir.Instr) (halted bool) {
	switch ins.Op {
	case ir.Nop:
		m.ip++

	case ir.PushInt, ir.PushPtr:
		v := uint64(ins.A)
		if ins.Op == ir.PushPtr {
			v = memlayout.DataAddress(m.stackSize, int(ins.A))
		}
		m.push(ins, v)
		m.ip++

	case ir.Pop:
		n := int(ins.A)
		if n > 0 {
			m.checkArity(ins, n)
			for i := 0; i < n; i++ {
				m.pop(ins)
			}
		}
		m.ip++

	case ir.Swap:
		m.checkArity(ins, 2)
		a := m.pop(ins)
		b := m.pop(ins)
		m.push(ins, a)
		m.push(ins, b)
		m.ip++

	case ir.SaveFrame:
		m.push(ins, m.fp)
		m.fp = m.sp
		m.ip++

	case ir.RestoreFrame:
		m.checkArity(ins, 1)
		m.fp = m.pop(ins)
		m.ip++

	case ir.ReadFrame:
		addr, ok := memlayout.FrameSlot(m.fp, ins.A)
		if !ok {
			m.halt(ins, BadAddress, "чтение кадра: отрицательный индекс слота %d при fp=%d", ins.A, m.fp)
		}
		m.checkAddr(ins, addr, memlayout.Word)
		m.push(ins, binary.LittleEndian.Uint64(m.memory[addr:addr+memlayout.Word]))
		m.ip++

	case ir.WriteFrame:
		m.checkArity(ins, 1)
		v := m.pop(ins)
		addr, ok := memlayout.FrameSlot(m.fp, ins.A)
		if !ok {
			m.halt(ins, BadAddress, "запись кадра: отрицательный индекс слота %d при fp=%d", ins.A, m.fp)
		}
		m.checkAddr(ins, addr, memlayout.Word)
		binary.LittleEndian.PutUint64(m.memory[addr:addr+memlayout.Word], v)
		m.ip++

	case ir.CallInternal:
		m.push(ins, uint64(m.ip+1))
		m.ip = int(ins.A)
		m.callDepth++

	case ir.CallExternal:
		m.halt(ins, UnsupportedInInterpreter, "CallExternal{%s} не поддерживается интерпретатором", ins.Sym)

	case ir.Store8:
		m.doStore(ins, 1)
		m.ip++
	case ir.Store32:
		m.doStore(ins, 4)
		m.ip++
	case ir.Store64:
		m.doStore(ins, 8)
		m.ip++

	case ir.Load64:
		m.checkArity(ins, 1)
		addr := m.pop(ins)
		m.checkAddr(ins, addr, 8)
		m.push(ins, binary.LittleEndian.Uint64(m.memory[addr:addr+8]))
		m.ip++

	case ir.IntLT, ir.IntGT, ir.IntEQ:
		m.checkArity(ins, 2)
		r := m.pop(ins)
		l := m.pop(ins)
		var cond bool
		switch ins.Op {
		case ir.IntLT:
			cond = l < r
		case ir.IntGT:
			cond = l > r
		case ir.IntEQ:
			cond = l == r
		}
		m.push(ins, boolWord(cond))
		m.ip++

	case ir.IntAdd, ir.IntSub, ir.IntMul, ir.IntDiv, ir.IntMod:
		m.checkArity(ins, 2)
		r := m.pop(ins)
		l := m.pop(ins)
		if (ins.Op == ir.IntDiv || ins.Op == ir.IntMod) && r == 0 {
			m.halt(ins, DivisionByZero, "деление на ноль")
		}
		var v uint64
		switch ins.Op {
		case ir.IntAdd:
			v = l + r
		case ir.IntSub:
			v = l - r
		case ir.IntMul:
			v = l * r
		case ir.IntDiv:
			v = l / r
		case ir.IntMod:
			v = l % r
		}
		m.push(ins, v)
		m.ip++

	case ir.LogNot:
		m.checkArity(ins, 1)
		v := m.pop(ins)
		m.push(ins, boolWord(v == 0))
		m.ip++

	case ir.Jump:
		m.ip = int(ins.A)

	case ir.JumpIf:
		m.checkArity(ins, 1)
		v := m.pop(ins)
		if v != 0 {
			m.ip = int(ins.A)
		} else {
			m.ip++
		}

	case ir.PrintStr:
		m.checkArity(ins, 2)
		ptr := m.pop(ins)
		length := m.pop(ins)
		m.checkAddr(ins, ptr, int(length))
		if _, err := m.stdout.Write(m.memory[ptr : ptr+length]); err != nil {
			m.halt(ins, IOErrorKind, "ошибка записи в stdout: %v", err)
		}
		m.ip++

	case ir.Read:
		m.checkArity(ins, 2)
		ptr := m.pop(ins)
		length := m.pop(ins)
		m.checkAddr(ins, ptr, int(length))
		n, err := readFill(m.stdin, m.memory[ptr:ptr+length])
		if err != nil && n == 0 {
			m.halt(ins, IOErrorKind, "ошибка чтения из stdin: %v", err)
		}
		m.push(ins, uint64(n))
		m.ip++

	case ir.Return:
		if m.sp >= memlayout.StackBase(m.stackSize) {
			return true
		}
		retAddr := m.pop(ins)
		m.ip = int(retAddr)
		if m.callDepth > 0 {
			m.callDepth--
		}

	case ir.Syscall:
		m.halt(ins, UnsupportedInInterpreter, "Syscall{%d} не поддерживается интерпретатором", ins.A)

	default:
		m.halt(ins, UnsupportedInInterpreter, "неизвестная инструкция %v", ins.Op)
	}
	return false
}

func (m *Machine) doStore(ins ir.Instr, width int) {
	m.checkArity(ins, 2)
	addr := m.pop(ins)
	v := m.pop(ins)
	m.checkAddr(ins, addr, width)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(m.memory[addr:addr+uint64(width)], buf[:width])
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
