// Command gen_vm_expects compiles a source file through both backends
// -- internal/vm's interpreter and internal/elfemit's native ELF
// emitter -- and checks that both run without error and print the same
// stdout; a failure in either leg fails the check. Adapted
// from a source-to-source generator that piped text through goimports
// concurrently with an errgroup; here the two concurrent legs are the
// two backends instead. The shared timeout context kills the native
// child process; each leg's own error is collected and reported after
// both legs finish rather than cancelling the other leg.
package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"os/exec"
	"time"

	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"

	"github.com/q60/good-training-language/internal/checker"
	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/elfemit"
	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/lexer"
	"github.com/q60/good-training-language/internal/parser"
	"github.com/q60/good-training-language/internal/vm"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("usage: gen_vm_expects <путь_к_файлу>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prog, names, entry, err := compile(args[0])
	if err != nil {
		log.Fatal(err)
	}

	eg, ctx := errgroup.WithContext(ctx)

	var interpOut bytes.Buffer
	var interpErr error
	eg.Go(func() error {
		interpErr = vm.Interpret(prog, names, entry, vm.WithStdout(&interpOut))
		return ctx.Err()
	})

	var nativeOut bytes.Buffer
	var nativeErr error
	eg.Go(func() error {
		nativeErr = runNative(ctx, prog, entry, &nativeOut)
		return ctx.Err()
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}

	ok := true
	if interpErr != nil {
		ok = false
		log.Printf("интерпретатор: %v", interpErr)
	}
	if nativeErr != nil {
		ok = false
		log.Printf("ELF: %v", nativeErr)
	}
	if interpOut.String() != nativeOut.String() {
		ok = false
		log.Printf("несовпадение вывода:\nинтерпретатор: %q\nELF:           %q", interpOut.String(), nativeOut.String())
	}
	if !ok {
		os.Exit(1)
	}
	log.Printf("совпадает: %q", interpOut.String())
}

func compile(path string) (*ir.Program, *ir.Names, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	log := &diag.Logger{}
	log.SetOutput(os.Stderr)

	lx := lexer.New(path, f, log)
	p := parser.New(lx, log)
	file, ok := p.Parse()
	if !ok {
		return nil, nil, 0, errCompileFailed
	}
	prog, names, ok := checker.Check(file, log)
	if !ok {
		return nil, nil, 0, errCompileFailed
	}
	proc, found := names.Procedures[ir.EntryProcedure]
	if !found {
		return nil, nil, 0, errNoEntryProcedure
	}
	return prog, names, proc.Entry, nil
}

var (
	errCompileFailed    = logError("компиляция не удалась")
	errNoEntryProcedure = logError("процедура точки входа не найдена")
)

type logError string

func (e logError) Error() string { return string(e) }

// runNative emits prog to a temp executable and runs it, capturing stdout.
func runNative(ctx context.Context, prog *ir.Program, entry int, out *bytes.Buffer) error {
	dir, err := os.MkdirTemp("", "vm-parity-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	binPath := dir + "/a.out"
	if err := elfemit.Emit(binPath, prog, entry); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
