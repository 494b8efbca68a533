package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/q60/good-training-language/internal/checker"
	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/elfemit"
	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/lexer"
	"github.com/q60/good-training-language/internal/parser"
	"github.com/q60/good-training-language/internal/vm"
)

// command describes one of the program's subcommands, grounded directly
// on хуяк.rs's Команда table and главная() dispatch loop.
type command struct {
	name        string
	signature   string
	description string
	run         func(prog string, args []string) bool // false on failure
}

var commands []command

func init() {
	commands = []command{
		{
			name:        "комп",
			signature:   "[-пуск] <путь_к_файлу>",
			description: "Скомпилировать файл исходного кода в исполняемый файл для платформы Linux x86_64",
			run:         runCompile,
		},
		{
			name:        "интер",
			signature:   "[-отлад] <путь_к_файлу>",
			description: "Интерпретировать Промежуточное Представление скомпилированной программы",
			run:         runInterpret,
		},
		{
			name:        "пп",
			signature:   "<путь_к_файлу>",
			description: "Напечатать Промежуточное Представление скомпилированной программы",
			run:         runDumpIR,
		},
		{
			name:        "справка",
			signature:   "[команда]",
			description: "Напечатать справку по программе и командам",
			run:         runHelp,
		},
	}
}

func main() {
	prog := os.Args[0]
	args := os.Args[1:]

	if len(args) == 0 {
		usage(prog)
		fmt.Fprintln(os.Stderr, "ОШИБКА: требуется команда!")
		os.Exit(1)
	}

	name := args[0]
	for _, cmd := range commands {
		if cmd.name == name {
			if !cmd.run(prog, args[1:]) {
				os.Exit(1)
			}
			return
		}
	}

	usage(prog)
	fmt.Fprintf(os.Stderr, "ОШИБКА: неизвестная команда «%s»\n", name)
	os.Exit(1)
}

func usage(prog string) {
	fmt.Fprintf(os.Stderr, "Пример: %s <команда> [аргументы]\n", prog)
	fmt.Fprintln(os.Stderr, "Команды:")
	nameWidth, sigWidth := 0, 0
	for _, cmd := range commands {
		if len(cmd.name) > nameWidth {
			nameWidth = len(cmd.name)
		}
		if len(cmd.signature) > sigWidth {
			sigWidth = len(cmd.signature)
		}
	}
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "    %-*s %-*s - %s\n", nameWidth, cmd.name, sigWidth, cmd.signature, cmd.description)
	}
}

// parseFileArg walks args looking for one known boolean flag and a single
// positional path, matching хуяк.rs's hand-rolled loop (no flag.FlagSet,
// which keeps комп/интер's error messages consistent with справка's
// column-aligned usage table). The flag is accepted before or after the
// path; a second positional argument is rejected.
func parseFileArg(prog string, args []string, flagName string) (path string, flagSet bool, ok bool) {
	for _, arg := range args {
		if flagName != "" && arg == flagName {
			flagSet = true
			continue
		}
		if path != "" {
			usage(prog)
			fmt.Fprintf(os.Stderr, "ОШИБКА: неизвестный флаг «%s»\n", arg)
			return "", false, false
		}
		path = arg
	}
	if path == "" {
		usage(prog)
		fmt.Fprintln(os.Stderr, "ОШИБКА: требуется файл с программой!")
		return "", false, false
	}
	return path, flagSet, true
}

// compileFile runs the lexer, parser, and checker over path, reporting
// every diagnostic through log. Returns the lowered program and its
// entry procedure's code index, or ok=false if any stage failed.
func compileFile(path string, log *diag.Logger) (prog *ir.Program, names *ir.Names, entry int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Errorf("файл «%s» не найден", path)
		} else {
			log.Errorf("не получилось прочитать файл «%s»: %v", path, err)
		}
		return nil, nil, 0, false
	}
	defer f.Close()

	lx := lexer.New(path, f, log)
	p := parser.New(lx, log)
	file, parseOK := p.Parse()
	if !parseOK {
		return nil, nil, 0, false
	}

	prog, names, checkOK := checker.Check(file, log)
	if !checkOK {
		return nil, nil, 0, false
	}

	proc, found := names.Procedures[ir.EntryProcedure]
	if !found {
		log.Errorf("процедура точки входа «%s» не найдена! Пожалуйста определите её!", ir.EntryProcedure)
		return nil, nil, 0, false
	}
	return prog, names, proc.Entry, true
}

func runCompile(prog string, args []string) bool {
	path, run, ok := parseFileArg(prog, args, "-пуск")
	if !ok {
		return false
	}

	log := &diag.Logger{}
	log.SetOutput(os.Stderr)
	p, _, entry, ok := compileFile(path, log)
	if !ok {
		return false
	}

	outPath := outputPathFor(path)
	if err := elfemit.Emit(outPath, p, entry); err != nil {
		fmt.Fprintf(os.Stderr, "ОШИБКА: %v\n", err)
		return false
	}

	if run {
		fmt.Printf("ИНФО: запускаем «%s»\n", outPath)
		child := exec.Command(outPath)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Stdin = os.Stdin
		if err := child.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "ОШИБКА: не получилось запустить дочерний процесс %s: %v\n", outPath, err)
			return false
		}
	}
	return true
}

// outputPathFor strips path's extension, matching
// Path::new(путь_к_файлу).with_extension("").
func outputPathFor(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}

func runInterpret(prog string, args []string) bool {
	path, debugMode, ok := parseFileArg(prog, args, "-отлад")
	if !ok {
		return false
	}

	log := &diag.Logger{}
	log.SetOutput(os.Stderr)
	p, names, entry, ok := compileFile(path, log)
	if !ok {
		return false
	}

	err := vm.Interpret(p, names, entry,
		vm.WithStdin(os.Stdin),
		vm.WithStdout(os.Stdout),
		vm.WithStderr(os.Stderr),
		vm.WithDebug(debugMode),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ОШИБКА: %v\n", err)
		return false
	}
	return true
}

func runDumpIR(prog string, args []string) bool {
	path, _, ok := parseFileArg(prog, args, "")
	if !ok {
		return false
	}

	log := &diag.Logger{}
	log.SetOutput(os.Stderr)
	p, _, entry, ok := compileFile(path, log)
	if !ok {
		return false
	}

	p.Dump(os.Stdout, entry)
	return true
}

func runHelp(prog string, args []string) bool {
	if len(args) > 0 {
		for _, cmd := range commands {
			if cmd.name == args[0] {
				fmt.Printf("%s %s %s - %s\n", prog, cmd.name, cmd.signature, cmd.description)
				return true
			}
		}
		fmt.Fprintf(os.Stderr, "ОШИБКА: неизвестная команда «%s»\n", args[0])
		return false
	}
	usage(prog)
	return true
}
