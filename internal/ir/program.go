package ir

import "github.com/q60/good-training-language/internal/types"

// Program is the immutable output of the front-end: a linear instruction
// stream plus the initialized and uninitialized static data segments, per
// spec.md §3's PP.
type Program struct {
	Code     []Instr
	InitData []byte
	BSSSize  int
}

// ProcInfo describes one procedure's entry point and signature.
type ProcInfo struct {
	Entry      int
	ParamTypes []types.Type
	Result     types.Type
}

// VarInfo describes one variable's location and type.
type VarInfo struct {
	Address int
	Type    types.Type
}

// Names is the front-end's symbol table, consumed by the interpreter's
// debugger and by the ELF emitter's entry-point resolution.
type Names struct {
	Procedures map[string]ProcInfo
	Variables  map[string]VarInfo

	// VarOrder preserves insertion order for stable debugger output,
	// since Go map iteration order is randomized.
	VarOrder []string
}

// NewNames returns an empty, ready-to-use Names table.
func NewNames() *Names {
	return &Names{
		Procedures: make(map[string]ProcInfo),
		Variables:  make(map[string]VarInfo),
	}
}

// DefineVariable records a variable, preserving insertion order.
func (n *Names) DefineVariable(name string, v VarInfo) {
	if _, exists := n.Variables[name]; !exists {
		n.VarOrder = append(n.VarOrder, name)
	}
	n.Variables[name] = v
}

// EntryProcedure is the designated runnable entry point's name, per
// spec.md §6: "процедура["главная"] ... exists for runnable programs".
const EntryProcedure = "главная"

// DataSize is the total size of the data region: len(InitData) + BSSSize.
func (p *Program) DataSize() int { return len(p.InitData) + p.BSSSize }
