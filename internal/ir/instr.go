// Package ir implements the linear bytecode instruction set, the program
// image it is carried in, and the name tables the front-end hands to the
// interpreter and the ELF emitter. This is the contract spec.md §3-4
// specifies; it is immutable once produced by the front-end.
package ir

import (
	"fmt"

	"github.com/q60/good-training-language/internal/diag"
)

// Op is the opcode tag of an Instr. One tag per row of spec.md §4.1's
// table.
type Op int

const (
	Nop Op = iota
	PushInt
	PushPtr
	Pop
	Swap
	SaveFrame
	RestoreFrame
	ReadFrame
	WriteFrame
	CallInternal
	CallExternal
	Store8
	Store32
	Store64
	Load64
	IntLT
	IntGT
	IntEQ
	IntAdd
	IntSub
	IntMul
	IntDiv
	IntMod
	LogNot
	Jump
	JumpIf
	PrintStr
	Read
	Return
	Syscall
)

var opNames = [...]string{
	Nop:          "Nop",
	PushInt:      "PushInt",
	PushPtr:      "PushPtr",
	Pop:          "Pop",
	Swap:         "Swap",
	SaveFrame:    "SaveFrame",
	RestoreFrame: "RestoreFrame",
	ReadFrame:    "ReadFrame",
	WriteFrame:   "WriteFrame",
	CallInternal: "CallInternal",
	CallExternal: "CallExternal",
	Store8:       "Store8",
	Store32:      "Store32",
	Store64:      "Store64",
	Load64:       "Load64",
	IntLT:        "IntLT",
	IntGT:        "IntGT",
	IntEQ:        "IntEQ",
	IntAdd:       "IntAdd",
	IntSub:       "IntSub",
	IntMul:       "IntMul",
	IntDiv:       "IntDiv",
	IntMod:       "IntMod",
	LogNot:       "LogNot",
	Jump:         "Jump",
	JumpIf:       "JumpIf",
	PrintStr:     "PrintStr",
	Read:         "Read",
	Return:       "Return",
	Syscall:      "Syscall",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Instr is one bytecode instruction. Operands are interpreted per Op:
//   - PushInt: A = literal value
//   - PushPtr: A = byte offset into the data region
//   - Pop: A = count
//   - ReadFrame/WriteFrame: A = slot index k
//   - CallInternal/Jump/JumpIf: A = target code index
//   - CallExternal: Sym = symbol name, B = argc, HasRet = has-return
//   - Syscall: A = syscall number, B = argc, HasRet = has-return
type Instr struct {
	Op     Op
	A, B   int64
	HasRet bool
	Sym    string // CallExternal's symbol name
	Loc    diag.Loc
}

// String renders one instruction the way Program.Dump lists it:
// "NNNN: OpcodeName(operands)" minus the index prefix, which Dump adds.
func (ins Instr) String() string {
	switch ins.Op {
	case PushInt:
		return fmt.Sprintf("PushInt(%d)", ins.A)
	case PushPtr:
		return fmt.Sprintf("PushPtr(%d)", ins.A)
	case Pop:
		return fmt.Sprintf("Pop(%d)", ins.A)
	case ReadFrame:
		return fmt.Sprintf("ReadFrame(%d)", ins.A)
	case WriteFrame:
		return fmt.Sprintf("WriteFrame(%d)", ins.A)
	case CallInternal:
		return fmt.Sprintf("CallInternal(%d)", ins.A)
	case CallExternal:
		return fmt.Sprintf("CallExternal{sym=%s,argc=%d,has_ret=%v}", ins.Sym, ins.B, ins.HasRet)
	case Jump:
		return fmt.Sprintf("Jump(%d)", ins.A)
	case JumpIf:
		return fmt.Sprintf("JumpIf(%d)", ins.A)
	case Syscall:
		return fmt.Sprintf("Syscall{n=%d,argc=%d,has_ret=%v}", ins.A, ins.B, ins.HasRet)
	default:
		return ins.Op.String()
	}
}
