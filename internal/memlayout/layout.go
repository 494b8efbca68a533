// Package memlayout is the arithmetic specification of where the stack,
// the initialized data, and the uninitialized data live in the VM address
// space (spec.md §3, §9 "shared stack/data memory"). The interpreter uses
// all of it; the native ELF back-end uses only Word, and places its data
// segment at its own load address, so absolute addresses seen by a
// program differ between the two back-ends.
package memlayout

// Word is the size, in bytes, of every evaluation-stack and frame slot.
const Word = 8

// DefaultStackSize is the default size, in bytes, of the downward-growing
// stack region. Sized the way the VM lineage in the example pack sizes
// its address space (see _examples/KTStephano-GVM/vm/bytecode.go's "memory
// segment is 64kb in size minimum"); overridable via vm.WithStackSize.
// The CLI has no flag for it, and the ELF back-end runs on the native
// process stack.
const DefaultStackSize = 65536

// StackBase returns the address one past the top of the stack region,
// which is also the base address of the data region: STACK_BASE =
// STACK_SIZE, per spec.md §3.
func StackBase(stackSize int) uint64 { return uint64(stackSize) }

// DataRegionSize returns the total size of the initialized plus
// uninitialized data segments.
func DataRegionSize(initDataLen, bssSize int) int { return initDataLen + bssSize }

// TotalMemSize returns the size of the VM's flat byte buffer:
// STACK_SIZE + len(init_data) + bss_size.
func TotalMemSize(stackSize, initDataLen, bssSize int) int {
	return stackSize + DataRegionSize(initDataLen, bssSize)
}

// DataAddress resolves a data-segment offset to an absolute address in the
// VM's memory buffer, the computation PushPtr performs.
func DataAddress(stackSize int, offset int) uint64 {
	return StackBase(stackSize) + uint64(offset)
}

// FrameSlot computes the address of frame-relative slot k, per spec.md
// §4.1/§9: mem[fp-(k+1)*WORD]. Returns ok=false if the computation would
// underflow (a frame-underflow condition the interpreter must report).
func FrameSlot(fp uint64, k int64) (addr uint64, ok bool) {
	delta := (k + 1) * Word
	if delta < 0 || uint64(delta) > fp {
		return 0, false
	}
	return fp - uint64(delta), true
}

// Aligned8 reports whether addr is 8-byte aligned, an invariant that must
// hold for sp after every push/pop (spec.md §3, §8).
func Aligned8(addr uint64) bool { return addr%Word == 0 }
