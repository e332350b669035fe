// cmd/monkey/commands/inspect.go
package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"monkey/internal/bytecode"
	"monkey/internal/driver"
	"monkey/internal/native"
	"monkey/internal/parser"
)

// compile reads and compiles file, reporting diagnostics.
func compile(env *Env, file string) (*bytecode.Module, int, error) {
	source, err := readSource(file)
	if err != nil {
		return nil, driver.ExitDiagnostics, err
	}
	mod, diags, err := driver.Compile(source, env.runOptions())
	if err != nil {
		return nil, driver.ExitRuntimeFault, err
	}
	if env.reporter().Report(diags) > 0 {
		return nil, driver.ExitDiagnostics, nil
	}
	return mod, driver.ExitOK, nil
}

// DisasmCommand prints the bytecode listing of a program.
func DisasmCommand(env *Env, args []string) (int, error) {
	file, err := oneFile("disasm", args)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	mod, code, err := compile(env, file)
	if mod == nil {
		return code, err
	}
	fmt.Fprint(env.Stdout, bytecode.Disassemble(mod))
	fmt.Fprintf(env.Stdout, "\n%d functions, %s of bytecode\n", len(mod.Functions), humanize.Bytes(uint64(mod.Size())))
	return driver.ExitOK, nil
}

// ASTCommand dumps the syntax tree of a program.
func ASTCommand(env *Env, args []string) (int, error) {
	file, err := oneFile("ast", args)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	source, err := readSource(file)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	prog, diags := parser.Parse(source)
	if env.reporter().Report(diags) > 0 {
		return driver.ExitDiagnostics, nil
	}
	fmt.Fprintf(env.Stdout, "%# v\n", pretty.Formatter(prog))
	return driver.ExitOK, nil
}

// EmitLLVMCommand lowers a program to LLVM IR.
func EmitLLVMCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("emit-llvm", flag.ContinueOnError)
	out := fs.String("o", "", "write the IR to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}
	file, err := oneFile("emit-llvm", fs.Args())
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	mod, code, err := compile(env, file)
	if mod == nil {
		return code, err
	}
	m, err := native.Lower(mod)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	if *out == "" {
		fmt.Fprint(env.Stdout, m.String())
		return driver.ExitOK, nil
	}
	if err := os.WriteFile(*out, []byte(m.String()), 0o644); err != nil {
		return driver.ExitDiagnostics, errors.Wrapf(err, "write %s", *out)
	}
	return driver.ExitOK, nil
}
