/*
Package main is the command-line driver for a small toolchain: lexer,
parser, type-checker, and IR lowering for a statically-typed imperative
language with Russian-language keywords, plus two backends that run the
resulting IR -- an in-process stack machine with a single-step debugger,
and a Linux x86_64 ELF emitter producing a statically linked executable.

The IR is a linear stream of stack-machine instructions over one flat,
byte-addressed memory region: an evaluation/call stack that grows
downward toward address 0, and a static data region (string literals
followed by zero-initialized storage) directly above it. The
interpreter lays memory out this way (internal/memlayout); the ELF
emitter uses the native process stack and places the data segment at
its own load address, so absolute addresses differ between the two.
Both follow the same instruction semantics (internal/ir,
internal/vm/exec.go); the ELF emitter's job is to make the
native CPU do exactly what the interpreter's step loop does, with rsp
standing in for the interpreter's stack pointer and rbp for its frame
pointer.

Subcommands (see the command table in main.go): комп compiles a source file
straight to a native executable; интер loads and runs the same source
through the interpreter, optionally dropping into the step debugger;
пп prints the lowered IR without running it; справка prints this usage
table, or one command's description.

Procedures declared "внеш" (external) are syscall wrappers: the
interpreter refuses to execute a call to one (there is no syscall
trap inside the stack machine), so programs that need I/O beyond
the built-in печать must be run through комп rather than интер.
*/
package main
