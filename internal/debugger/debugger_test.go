package debugger

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"monkey/internal/bytecode"
	"monkey/internal/compiler"
	"monkey/internal/parser"
	"monkey/internal/vm"
)

const squares = `fn sq(n: int): int {
	return n * n
}
print(sq(3))
print(sq(4))`

func run(t *testing.T, src string, d *Debugger) string {
	t.Helper()
	prog, diags := parser.Parse(src)
	if len(diags) > 0 {
		t.Fatalf("parse: %v", diags)
	}
	mod, err := compiler.Generate(prog)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var out bytes.Buffer
	if _, err := vm.Execute(mod, vm.WithOutput(&out), vm.WithHook(d)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return out.String()
}

func TestBreakpoints(t *testing.T) {
	var log bytes.Buffer
	d := NewDebugger(&log)
	if id := d.AddBreakpoint(2); id != 1 {
		t.Errorf("first breakpoint id = %d", id)
	}

	if out := run(t, squares, d); out != "9\n16\n" {
		t.Errorf("program output = %q", out)
	}
	want := `breakpoint 1 at line 2 (hit 1)
  at sq [L2, C9]
  at <entry> [L4, C7]
breakpoint 1 at line 2 (hit 2)
  at sq [L2, C9]
  at <entry> [L5, C7]
`
	if log.String() != want {
		t.Errorf("log:\n%s\nwant:\n%s", log.String(), want)
	}
	if bps := d.Breakpoints(); len(bps) != 1 || bps[0].HitCount != 2 {
		t.Errorf("breakpoints = %# v", pretty.Formatter(bps))
	}
	if len(d.CallStack()) != 0 {
		t.Errorf("call stack should be empty after the run: %v", d.CallStack())
	}
}

func TestProfile(t *testing.T) {
	d := NewDebugger(io.Discard)
	run(t, squares, d)

	want := []Profile{
		{Function: bytecode.EntryName, Calls: 1, Instructions: 8},
		{Function: "sq", Calls: 2, Instructions: 8},
	}
	if diff := pretty.Diff(want, d.Profiles()); len(diff) > 0 {
		t.Errorf("profiles: %v", diff)
	}

	var table bytes.Buffer
	d.WriteProfile(&table)
	if !strings.Contains(table.String(), "sq") || !strings.HasPrefix(table.String(), "function") {
		t.Errorf("profile table:\n%s", table.String())
	}
}

func TestTrace(t *testing.T) {
	var log bytes.Buffer
	d := NewDebugger(&log)
	d.SetTrace(true)
	run(t, `print(1 + 2)`, d)

	lines := strings.Split(strings.TrimRight(log.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 traced instructions, got:\n%s", log.String())
	}
	if !strings.Contains(lines[2], "OpAddInt") || !strings.Contains(lines[2], "[L1, C9]") {
		t.Errorf("third instruction = %q", lines[2])
	}
}
