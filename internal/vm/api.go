package vm

import (
	"errors"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
	"github.com/q60/good-training-language/internal/panicerr"
)

// Interpret runs prog starting at the entry code index, per spec.md §4.2.
// Runtime faults raised via Machine.halt propagate as panics internally
// and are recovered here into a returned *RuntimeError, the same
// panic-at-a-boundary idiom the teacher's isolate.go/Core.halt use (see
// SPEC_FULL.md §9).
func Interpret(prog *ir.Program, names *ir.Names, entry int, opts ...Option) error {
	opt := Options(append([]Option{defaultOptions}, opts...)...)

	// stackSize must be known before newMachine allocates the flat
	// memory buffer, so resolve it against a throwaway Machine first.
	probe := &Machine{}
	opt.apply(probe)
	size := memlayout.DefaultStackSize
	if probe.stackSize > 0 {
		size = probe.stackSize
	}

	m := newMachine(prog, names, entry, size)
	opt.apply(m)
	if m.cmdin == nil {
		m.cmdin = m.stdin
	}

	err := panicerr.Recover("интерпретатор", func() error {
		m.Run()
		return nil
	})
	if err == nil {
		return nil
	}

	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return rerr
	}
	return err
}
