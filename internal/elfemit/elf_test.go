package elfemit

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q60/good-training-language/internal/ir"
)

// TestEmitProducesRunnableELFLayout builds a minimal program (push a
// string, print it via the SysV write syscall, return) and checks the
// written file is a well-formed static ET_EXEC binary: right magic,
// machine, two PT_LOAD segments with the expected permissions, and an
// entry point that lands inside the first (executable) segment.
func TestEmitProducesRunnableELFLayout(t *testing.T) {
	msg := []byte("привет\n")
	prog := &ir.Program{
		InitData: msg,
		BSSSize:  8,
		Code: []ir.Instr{
			{Op: ir.PushInt, A: int64(len(msg))}, // 0
			{Op: ir.PushPtr, A: 0},                // 1
			{Op: ir.PrintStr},                     // 2
			{Op: ir.Return},                       // 3
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	require.NoError(t, Emit(path, prog, 0))

	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, elf.ET_EXEC, f.Type)
	assert.Equal(t, elf.EM_X86_64, f.Machine)
	assert.Equal(t, elf.ELFCLASS64, f.Class)

	require.Len(t, f.Progs, 2)
	text, data := f.Progs[0], f.Progs[1]

	assert.Equal(t, elf.PT_LOAD, text.Type)
	assert.Equal(t, elf.PF_R|elf.PF_X, text.Flags)
	assert.True(t, f.Entry >= text.Vaddr && f.Entry < text.Vaddr+text.Filesz,
		"entry point must fall inside the executable segment")

	assert.Equal(t, elf.PT_LOAD, data.Type)
	assert.Equal(t, elf.PF_R|elf.PF_W, data.Flags)
	assert.Equal(t, uint64(len(msg)), data.Filesz)
	assert.Equal(t, uint64(len(msg)+prog.BSSSize), data.Memsz,
		"memsz must exceed filesz so the loader zero-fills bss")

	initData := make([]byte, len(msg))
	_, err = data.ReadAt(initData, 0)
	require.NoError(t, err)
	assert.Equal(t, msg, initData)
}

func TestEmitRejectsOutOfRangeEntry(t *testing.T) {
	prog := &ir.Program{Code: []ir.Instr{{Op: ir.Return}}}
	path := filepath.Join(t.TempDir(), "out")
	err := Emit(path, prog, 5)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file should be left behind on failure")
}

func TestEmitRejectsUnknownExternSymbol(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.CallExternal, Sym: "не_существует", B: 0},
			{Op: ir.Return},
		},
	}
	path := filepath.Join(t.TempDir(), "out")
	err := Emit(path, prog, 0)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file should be left behind on failure")
}
