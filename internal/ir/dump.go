package ir

import (
	"fmt"
	"io"
	"strconv"
)

// Dump prints the program's code listing as "NNNN: OpcodeName(operands)",
// one instruction per line, for the whole program from index 0. Used by
// the `пп` CLI command; the debugger's `инст N` command uses DumpOne
// (spec.md §6's "Text IR dump" contract). Index width is padded to the listing's own length, the
// way the teacher's dumper.go pads addresses to memSize's width.
func (p *Program) Dump(w io.Writer, entry int) {
	width := len(strconv.Itoa(len(p.Code) - 1))
	if width < 4 {
		width = 4
	}
	for i, ins := range p.Code {
		fmt.Fprintf(w, "%0*d: %s\n", width, i, ins)
	}
	_ = entry // entry is accepted for interface symmetry with emit/interpret; full dumps list the whole program.
}

// DumpOne formats a single instruction the way the debugger's `инст N`
// command does.
func (p *Program) DumpOne(w io.Writer, index int) error {
	if index < 0 || index >= len(p.Code) {
		return fmt.Errorf("инст: индекс %d вне диапазона [0, %d)", index, len(p.Code))
	}
	fmt.Fprintf(w, "%04d: %s\n", index, p.Code[index])
	return nil
}
