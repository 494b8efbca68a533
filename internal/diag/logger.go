package diag

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Logger is a leveled, mutex-guarded diagnostic sink, adapted from the
// logio.Logger pattern: it formats one Diagnostic per line to an
// io.WriteCloser and retains whether any error-or-worse diagnostic was
// reported, so a CLI command can do:
//
//	defer os.Exit(log.ExitCode())
type Logger struct {
	sync.Mutex
	output   io.WriteCloser
	buf      bytes.Buffer
	exitCode int
}

// SetOutput sets the logger's output stream, closing any prior one.
func (log *Logger) SetOutput(out io.WriteCloser) {
	log.Lock()
	defer log.Unlock()
	if log.output != nil {
		log.output.Close()
	}
	log.output = out
}

// ExitCode returns 0 if no error-or-worse diagnostic has been reported, 1
// otherwise -- matching spec.md's "exit code: 0 on success, 1 on any
// failure" CLI contract.
func (log *Logger) ExitCode() int {
	log.Lock()
	defer log.Unlock()
	return log.exitCode
}

// Report writes one diagnostic line, prefixed by its location and severity
// tag, and marks the logger's exit code non-zero for SeverityError and
// SeverityRuntime diagnostics.
func (log *Logger) Report(d Diagnostic) {
	log.Lock()
	defer log.Unlock()
	log.buf.Reset()
	log.buf.WriteString(d.String())
	if b := log.buf.Bytes(); len(b) == 0 || b[len(b)-1] != '\n' {
		log.buf.WriteByte('\n')
	}
	log.buf.WriteTo(log.output)
	if d.Severity == SeverityError || d.Severity == SeverityRuntime {
		log.exitCode = 1
	}
}

// Reportf is a convenience wrapper building a Diagnostic from a format
// string.
func (log *Logger) Reportf(loc Loc, sev Severity, format string, args ...interface{}) {
	log.Report(Diagnostic{Loc: loc, Severity: sev, Message: fmt.Sprintf(format, args...)})
}

// Errorf reports a SeverityError diagnostic with no location.
func (log *Logger) Errorf(format string, args ...interface{}) {
	log.Reportf(Loc{}, SeverityError, format, args...)
}
