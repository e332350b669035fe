// Package driver wires the pipeline stages together: scan and parse, type
// check, generate bytecode and execute.
package driver

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"monkey/internal/bytecode"
	"monkey/internal/checker"
	"monkey/internal/compiler"
	"monkey/internal/errors"
	"monkey/internal/parser"
	"monkey/internal/vm"

	pkgerrors "github.com/pkg/errors"
)

// Exit codes of a run.
const (
	ExitOK           = 0
	ExitDiagnostics  = 1
	ExitRuntimeFault = vm.ExitRuntimeFault
)

// Options controls a single run.
type Options struct {
	ExitFromMain bool
	MaxCallDepth int
	// Output receives print output. Defaults to os.Stdout.
	Output io.Writer
	// Hook, when set, observes execution.
	Hook vm.Hook
	// Context, when set, stops execution with a runtime fault once done.
	Context context.Context
	// MaxInstructions bounds the instructions executed; zero is unlimited.
	MaxInstructions int64
}

// Result is the outcome of Run. Diagnostics holds either the static
// diagnostics or the single runtime fault.
type Result struct {
	Diagnostics []*errors.Diagnostic
	ExitCode    int
	Duration    time.Duration
}

// Messages returns the rendered diagnostics, one per entry.
func (r *Result) Messages() []string {
	return errors.Strings(r.Diagnostics)
}

// Check runs the front end and the type checker on source.
func Check(source string) []*errors.Diagnostic {
	prog, diags := parser.Parse(source)
	if len(diags) > 0 {
		return diags
	}
	_, diags = checker.Analyze(prog)
	return diags
}

// Compile turns source into a module. Diagnostics are returned as data;
// the error is reserved for failures of the code generator itself.
func Compile(source string, opts Options) (*bytecode.Module, []*errors.Diagnostic, error) {
	prog, diags := parser.Parse(source)
	if len(diags) > 0 {
		return nil, diags, nil
	}
	if _, diags = checker.Analyze(prog); len(diags) > 0 {
		return nil, diags, nil
	}
	var copts []compiler.Option
	if opts.ExitFromMain {
		copts = append(copts, compiler.WithExitFromMain())
	}
	mod, err := compiler.Generate(prog, copts...)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "generate")
	}
	return mod, nil, nil
}

// Run executes source end to end.
func Run(source string, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{}
	defer func() { res.Duration = time.Since(start) }()

	mod, diags, err := Compile(source, opts)
	if err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		res.Diagnostics = diags
		res.ExitCode = ExitDiagnostics
		return res, nil
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	vmOpts := []vm.Option{
		vm.WithOutput(out),
		vm.WithMaxCallDepth(opts.MaxCallDepth),
		vm.WithMaxInstructions(opts.MaxInstructions),
	}
	if opts.Context != nil {
		vmOpts = append(vmOpts, vm.WithContext(opts.Context))
	}
	if opts.Hook != nil {
		vmOpts = append(vmOpts, vm.WithHook(opts.Hook))
	}
	code, err := vm.Execute(mod, vmOpts...)
	if err != nil {
		fault, ok := err.(*errors.Diagnostic)
		if !ok {
			return nil, pkgerrors.Wrap(err, "execute")
		}
		res.Diagnostics = []*errors.Diagnostic{fault}
	}
	res.ExitCode = code
	return res, nil
}

// RunCaptured is Run with print output collected into a string.
func RunCaptured(source string, opts Options) (*Result, string, error) {
	var buf bytes.Buffer
	opts.Output = &buf
	res, err := Run(source, opts)
	return res, buf.String(), err
}
