// Package reporting renders diagnostics and runtime faults for the terminal.
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"monkey/internal/errors"
)

const (
	red    = "\033[31m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

// Reporter writes diagnostics, one per line, optionally colored.
type Reporter struct {
	out   io.Writer
	color bool
	trace bool
}

// New returns a Reporter for out. mode is auto, always or never; auto
// colors only when out is a terminal.
func New(out io.Writer, mode string) *Reporter {
	return &Reporter{out: out, color: UseColor(out, mode)}
}

// WithTrace makes runtime faults include their call stack.
func (r *Reporter) WithTrace(on bool) *Reporter {
	r.trace = on
	return r
}

// UseColor resolves a color mode for w.
func UseColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Report writes each diagnostic and returns how many were written.
func (r *Reporter) Report(diags []*errors.Diagnostic) int {
	for _, d := range diags {
		r.write(d)
	}
	return len(diags)
}

// ReportFile is Report with each line prefixed by a file name.
func (r *Reporter) ReportFile(file string, diags []*errors.Diagnostic) int {
	for _, d := range diags {
		fmt.Fprintf(r.out, "%s: ", file)
		r.write(d)
	}
	return len(diags)
}

func (r *Reporter) write(d *errors.Diagnostic) {
	msg := d.Error()
	if r.trace && d.Kind == errors.RuntimeFault && len(d.CallStack) > 0 {
		msg += "\n" + strings.TrimRight(d.Trace(), "\n")
	}
	if !r.color {
		fmt.Fprintln(r.out, msg)
		return
	}
	c := red
	if d.Kind == errors.SemanticError {
		c = yellow
	}
	fmt.Fprintln(r.out, c+msg+reset)
}
