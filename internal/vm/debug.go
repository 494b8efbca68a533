package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
)

// debugBreak implements spec.md §4.2's debug-mode prologue and REPL. It
// returns true if the REPL terminated the run (`выход`/`exit`).
//
// Adapted from the teacher's vmDumper (dumper.go): word-aligned stack
// dump and address-width padding carry over directly; the FIRST/THIRD
// dictionary-word scanning (scanWords/formatCode/formatName) does not
// apply to this language's flat variable table and is replaced by a
// straightforward named-variable dump matching
// _examples/original_source/исходники/интерпретатор.rs's debug loop,
// which this extends with `инст N` and `перешаг` per spec.md.
func (m *Machine) debugBreak(ins ir.Instr) (halted bool) {
	if m.stepping && m.callDepth > m.stepTarget {
		return false
	}
	m.stepping = false

	m.printState(ins)

	for {
		fmt.Fprint(m.stderr, "> ")
		line, err := m.cmdin.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" && err != nil {
			// stdin closed: behave like an explicit exit so scripted
			// debug sessions terminate cleanly instead of busy-looping.
			return true
		}
		switch {
		case line == "выход" || line == "exit":
			return true
		case line == "":
			return false
		case line == "стек":
			m.printStack()
		case line == "пер":
			m.printVariables()
		case strings.HasPrefix(line, "инст"):
			m.cmdInst(strings.TrimSpace(strings.TrimPrefix(line, "инст")))
		case line == "перешаг" || line == "step-over":
			m.stepping = true
			m.stepTarget = m.callDepth
			return false
		default:
			fmt.Fprintf(m.stderr, "ОШИБКА: неизвестная команда «%s»\n", line)
		}
	}
}

func (m *Machine) cmdInst(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(m.stderr, "ОШИБКА: «инст» требует числовой индекс, получено «%s»\n", arg)
		return
	}
	if err := m.prog.DumpOne(m.stderr, n); err != nil {
		fmt.Fprintf(m.stderr, "ОШИБКА: %v\n", err)
	}
}

func (m *Machine) printState(ins ir.Instr) {
	fmt.Fprintf(m.stderr, "%v: %04d: %s\n", ins.Loc, m.ip, ins)
	m.printStack()
	fmt.Fprintf(m.stderr, "fp: %d\n", m.fp)
	m.printVariables()
}

func (m *Machine) printStack() {
	base := m.stackBaseAddr()
	fmt.Fprint(m.stderr, "Стек:")
	for addr := base; addr > m.sp; addr -= 8 {
		v := leUint64(m.memory[addr-8 : addr])
		fmt.Fprintf(m.stderr, " %d", v)
	}
	fmt.Fprintln(m.stderr)
}

// printVariables prints each named variable's computed absolute address
// (data-region offset resolved via memlayout.DataAddress, per spec.md
// §3: ir.Names stores a byte offset into the data region, not an absolute
// address) and its current bytes.
func (m *Machine) printVariables() {
	for _, name := range m.names.VarOrder {
		v := m.names.Variables[name]
		size := v.Type.Size()
		addr := memlayout.DataAddress(m.stackSize, v.Address)
		if v.Address < 0 || addr+uint64(size) > uint64(len(m.memory)) {
			fmt.Fprintf(m.stderr, "%s = <вне диапазона>\n", name)
			continue
		}
		fmt.Fprintf(m.stderr, "%s @%d = %v\n", name, addr, m.memory[addr:addr+uint64(size)])
	}
}

func (m *Machine) stackBaseAddr() uint64 {
	return uint64(m.stackSize)
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
