package checker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q60/good-training-language/internal/checker"
	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/lexer"
	"github.com/q60/good-training-language/internal/parser"
)

// compile runs the full lexer/parser/checker pipeline over src, failing
// the test on any reported diagnostic.
func compile(t *testing.T, src string) (*ir.Program, *ir.Names) {
	t.Helper()
	var diagOut strings.Builder
	log := &diag.Logger{}
	log.SetOutput(nopCloser{&diagOut})

	lx := lexer.New("<test>", strings.NewReader(src), log)
	p := parser.New(lx, log)
	file, ok := p.Parse()
	require.True(t, ok, "parse errors:\n%s", diagOut.String())

	prog, names, ok := checker.Check(file, log)
	require.True(t, ok, "check errors:\n%s", diagOut.String())
	return prog, names
}

type nopCloser struct{ *strings.Builder }

func (nopCloser) Close() error { return nil }

func TestEntryProcedureResolved(t *testing.T) {
	prog, names := compile(t, `главная() нч печать "привет"; кц`)
	proc, ok := names.Procedures[ir.EntryProcedure]
	require.True(t, ok)
	require.Less(t, proc.Entry, len(prog.Code))
	assert.Equal(t, ir.SaveFrame, prog.Code[proc.Entry].Op)
}

func TestGlobalConstantFolding(t *testing.T) {
	src := `
конст размер = 2 + 3;
пер итог: цел64 = размер;
главная() нч вернуть; кц
`
	prog, names := compile(t, src)
	v, ok := names.Variables["итог"]
	require.True(t, ok)
	assert.Equal(t, 0, v.Address) // no string literals in this program, so bss starts at offset 0
	assert.NotZero(t, len(prog.Code))

	folded := false
	for _, ins := range prog.Code {
		if ins.Op == ir.PushInt && ins.A == 5 {
			folded = true
		}
	}
	assert.True(t, folded, "размер должен свернуться в PushInt(5) в инициализаторе итог")
}

func TestOrSynthesizedWithoutNativeOpcode(t *testing.T) {
	src := `
главная() нч
    пер а: лог = истина;
    пер б: лог = ложь;
    если а или б нч печать "да"; кц
кц
`
	prog, _ := compile(t, src)
	assertHasOp(t, prog, ir.IntAdd)
	assertHasOp(t, prog, ir.IntGT)
}

func TestAndSynthesizedAsMultiply(t *testing.T) {
	prog, _ := compile(t, `
главная() нч
    пер а: лог = истина;
    пер б: лог = истина;
    если а и б нч печать "да"; кц
кц
`)
	assert.Contains(t, opList(prog), ir.IntMul)
}

func TestExternProcedureTakesNoBSSSlot(t *testing.T) {
	src := `
выход(код: цел64) внешняя "выход";
главная() нч выход(0); кц
`
	prog, names := compile(t, src)
	sig, ok := names.Procedures["выход"]
	require.True(t, ok)
	assert.Len(t, sig.ParamTypes, 1) // signature is still recorded; only the bss slot is skipped
	assert.Equal(t, 0, prog.BSSSize)
	assertHasOp(t, prog, ir.CallExternal)
	assertNoOp(t, prog, ir.CallInternal)
}

func TestProcedureCallUsesInternalCallingConvention(t *testing.T) {
	src := `
удвоить(x: цел64): цел64 нч вернуть x * 2; кц
главная() нч
    пер y: цел64 = удвоить(21);
кц
`
	prog, _ := compile(t, src)
	assertHasOp(t, prog, ir.CallInternal)
	assertHasOp(t, prog, ir.WriteFrame)
	assertHasOp(t, prog, ir.Store64)
}

func TestUndefinedVariableFails(t *testing.T) {
	var diagOut strings.Builder
	log := &diag.Logger{}
	log.SetOutput(nopCloser{&diagOut})

	lx := lexer.New("<test>", strings.NewReader(`главная() нч неизвестная = 1; кц`), log)
	p := parser.New(lx, log)
	file, ok := p.Parse()
	require.True(t, ok)

	_, _, ok = checker.Check(file, log)
	assert.False(t, ok)
	assert.NotZero(t, diagOut.Len())
}

func opList(prog *ir.Program) []ir.Op {
	ops := make([]ir.Op, len(prog.Code))
	for i, ins := range prog.Code {
		ops[i] = ins.Op
	}
	return ops
}

func assertHasOp(t *testing.T, prog *ir.Program, op ir.Op) {
	t.Helper()
	assert.Contains(t, opList(prog), op)
}

func assertNoOp(t *testing.T, prog *ir.Program, op ir.Op) {
	t.Helper()
	assert.NotContains(t, opList(prog), op)
}
