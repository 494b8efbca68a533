package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/memlayout"
)

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// TestHelloWorld exercises PushPtr/PushInt/PrintStr against InitData, the
// end-to-end scenario spec.md §8 lists first.
func TestHelloWorld(t *testing.T) {
	msg := []byte("Hello, world!\n")
	prog := &ir.Program{
		InitData: msg,
		Code: []ir.Instr{
			{Op: ir.PushInt, A: int64(len(msg))},
			{Op: ir.PushPtr, A: 0},
			{Op: ir.PrintStr},
			{Op: ir.Return},
		},
	}
	var out bytes.Buffer
	err := Interpret(prog, ir.NewNames(), 0, WithStdout(&out))
	require.NoError(t, err)
	assert.Equal(t, string(msg), out.String())
}

// TestSumAddition checks PushInt/IntAdd produce the correct word without
// going through a full procedure-return sequence.
func TestSumAddition(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.PushInt, A: 1},
			{Op: ir.PushInt, A: 2},
			{Op: ir.IntAdd},
		},
	}
	m := newMachine(prog, ir.NewNames(), 0, memlayout.DefaultStackSize)
	WithStdout(nil).apply(m)
	for _, ins := range prog.Code {
		halted := m.step(ins)
		require.False(t, halted)
	}
	got := binary.LittleEndian.Uint64(m.memory[m.sp : m.sp+8])
	assert.Equal(t, uint64(3), got)
}

// TestCallAndReturn exercises SaveFrame/WriteFrame/ReadFrame/RestoreFrame
// and the CallInternal/Return pairing.
func TestCallAndReturn(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.CallInternal, A: 2}, // 0
			{Op: ir.Return},             // 1: back at top level, halts
			{Op: ir.SaveFrame},          // 2: proc entry
			{Op: ir.PushInt, A: 0},      // 3: reserve local slot 0
			{Op: ir.PushInt, A: 42},     // 4
			{Op: ir.WriteFrame, A: 0},   // 5: local[0] = 42
			{Op: ir.ReadFrame, A: 0},    // 6: push local[0]
			{Op: ir.Pop, A: 1},          // 7: discard it
			{Op: ir.Pop, A: 1},          // 8: discard the reserved slot
			{Op: ir.RestoreFrame},       // 9
			{Op: ir.Return},             // 10: back to caller
		},
	}
	err := Interpret(prog, ir.NewNames(), 0)
	assert.NoError(t, err)
}

// TestCountdownLoop exercises Load64/Store64/PushPtr/IntGT/IntSub and the
// Jump/JumpIf pair driving a counted loop over a data-segment variable.
func TestCountdownLoop(t *testing.T) {
	prog := &ir.Program{
		InitData: le64(3),
		Code: []ir.Instr{
			{Op: ir.PushPtr, A: 0},  // 0
			{Op: ir.Load64},         // 1
			{Op: ir.PushInt, A: 0},  // 2
			{Op: ir.IntGT},          // 3
			{Op: ir.JumpIf, A: 6},   // 4
			{Op: ir.Jump, A: 13},    // 5
			{Op: ir.PushPtr, A: 0},  // 6
			{Op: ir.Load64},         // 7
			{Op: ir.PushInt, A: 1},  // 8
			{Op: ir.IntSub},         // 9
			{Op: ir.PushPtr, A: 0},  // 10
			{Op: ir.Store64},        // 11
			{Op: ir.Jump, A: 0},     // 12
			{Op: ir.Return},         // 13
		},
	}
	m := newMachine(prog, ir.NewNames(), 0, memlayout.DefaultStackSize)
	WithStdout(nil).apply(m)
	m.Run()

	addr := memlayout.DataAddress(m.stackSize, 0)
	got := binary.LittleEndian.Uint64(m.memory[addr : addr+8])
	assert.Equal(t, uint64(0), got)
}

// TestDivisionByZero checks that IntDiv raises DivisionByZero rather than
// panicking the Go runtime with an integer divide fault.
func TestDivisionByZero(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.PushInt, A: 5},
			{Op: ir.PushInt, A: 0},
			{Op: ir.IntDiv},
			{Op: ir.Return},
		},
	}
	err := Interpret(prog, ir.NewNames(), 0)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, DivisionByZero, rerr.Kind)
}

// TestOutOfBoundsWrite checks Store64 rejects an address outside the VM's
// memory buffer instead of corrupting the Go process's own heap.
func TestOutOfBoundsWrite(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.PushInt, A: 123},
			{Op: ir.PushInt, A: 999999999},
			{Op: ir.Store64},
			{Op: ir.Return},
		},
	}
	err := Interpret(prog, ir.NewNames(), 0)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, BadAddress, rerr.Kind)
}

// TestStackUnderflow checks popping from an empty evaluation stack is
// reported rather than reading into the data segment.
func TestStackUnderflow(t *testing.T) {
	prog := &ir.Program{
		Code: []ir.Instr{
			{Op: ir.IntAdd},
			{Op: ir.Return},
		},
	}
	err := Interpret(prog, ir.NewNames(), 0)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, StackUnderflow, rerr.Kind)
}

// TestReadFillsFromStdin exercises the Read opcode against WithStdin.
func TestReadFillsFromStdin(t *testing.T) {
	prog := &ir.Program{
		BSSSize: 8,
		Code: []ir.Instr{
			{Op: ir.PushInt, A: 3},
			{Op: ir.PushPtr, A: 0},
			{Op: ir.Read},
			{Op: ir.Pop, A: 1},
			{Op: ir.Return},
		},
	}
	err := Interpret(prog, ir.NewNames(), 0, WithStdin(bytes.NewBufferString("abc")))
	assert.NoError(t, err)
}
