package vm

import (
	"bufio"
	"io"
	"io/ioutil"
)

// Option configures a Machine before Interpret runs it. Adapted from the
// teacher's VMOption functional-options pattern (options.go): a flat
// composable interface instead of a struct of optional fields, so zero,
// one, or many options combine uniformly.
type Option interface{ apply(m *Machine) }

var defaultOptions = Options(
	WithStdin(nil),
	WithStdout(ioutil.Discard),
	WithStderr(ioutil.Discard),
	WithStackSize(0),
)

// Options flattens nested option lists the way the teacher's VMOptions
// does, so a caller can group options into a reusable bundle.
func Options(opts ...Option) Option {
	var res optionList
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noOption:
		case optionList:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noOption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noOption struct{}

func (noOption) apply(*Machine) {}

type optionList []Option

func (opts optionList) apply(m *Machine) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(m)
		}
	}
}

type stdinOption struct{ io.Reader }
type stdoutOption struct{ io.Writer }
type stderrOption struct{ io.Writer }
type stackSizeOption int
type debugOption bool
type logfnOption func(string, ...interface{})

// WithStdin sets the stream the Read opcode and, in debug mode, the
// debugger REPL read from. A nil reader yields an always-empty stream.
func WithStdin(r io.Reader) Option { return stdinOption{r} }

// WithStdout sets the stream the PrintStr opcode writes to.
func WithStdout(w io.Writer) Option { return stdoutOption{w} }

// WithStderr sets the stream runtime diagnostics and the debug-mode
// instruction trace are written to, kept separate from stdout per
// spec.md §4.2: "Debug output is written to stderr; program output
// remains on stdout."
func WithStderr(w io.Writer) Option { return stderrOption{w} }

// WithStackSize overrides memlayout.DefaultStackSize. A size of 0 means
// "use the default".
func WithStackSize(size int) Option { return stackSizeOption(size) }

// WithDebug turns on the step debugger (spec.md §4.2).
func WithDebug(on bool) Option { return debugOption(on) }

// WithLogf installs a trace logging function, invoked once per executed
// instruction when non-nil -- independent of debug mode, for headless
// tracing.
func WithLogf(fn func(string, ...interface{})) Option { return logfnOption(fn) }

func (o stdinOption) apply(m *Machine) {
	if o.Reader == nil {
		o.Reader = new(zeroReader)
	}
	m.stdin = bufio.NewReader(o.Reader)
}

func (o stdoutOption) apply(m *Machine) { m.stdout = o.Writer }
func (o stderrOption) apply(m *Machine) { m.stderr = o.Writer }
func (o stackSizeOption) apply(m *Machine) {
	if o > 0 {
		m.stackSize = int(o)
	}
}
func (o debugOption) apply(m *Machine)  { m.debug = bool(o) }
func (o logfnOption) apply(m *Machine)  { m.logfn = o }

type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, io.EOF }
