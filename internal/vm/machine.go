package vm

import (
	"bufio"
	"io"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
)

// Machine is the transient VM state owned by exactly one Interpret
// invocation, per spec.md §3: ip/fp/sp, a flat byte memory, and the
// step-debugger's call depth. Adapted from the teacher's Core (logging +
// flushable output + closers), retargeted from rune-oriented FIRST/THIRD
// I/O to the byte-oriented PrintStr/Read opcodes spec.md §4.1 defines.
type Machine struct {
	prog  *ir.Program
	names *ir.Names

	ip        int
	fp, sp    uint64
	memory    []byte
	callDepth int

	stackSize int

	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	debug      bool
	cmdin      *bufio.Reader // debugger REPL command source, defaults to stdin
	stepTarget int
	stepping   bool

	logfn func(format string, args ...interface{})
}

// newMachine allocates and zero/initializes VM state per spec.md §4.2's
// entry sequence.
func newMachine(prog *ir.Program, names *ir.Names, entry int, stackSize int) *Machine {
	m := &Machine{
		prog:      prog,
		names:     names,
		ip:        entry,
		stackSize: stackSize,
	}
	m.memory = make([]byte, memlayout.TotalMemSize(stackSize, len(prog.InitData), prog.BSSSize))
	copy(m.memory[stackSize:], prog.InitData)
	m.sp = memlayout.StackBase(stackSize)
	m.fp = m.sp
	return m
}

func (m *Machine) logf(format string, args ...interface{}) {
	if m.logfn != nil {
		m.logfn(format, args...)
	}
}
