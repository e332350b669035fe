package driver

import (
	"context"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		output   string
		code     int
		messages []string
	}{
		{
			name:   "clean program",
			src:    `fn main():void { let x:int=10 let y:int=5 print(x+y) }`,
			output: "15\n",
			code:   ExitOK,
		},
		{
			name:     "return mismatch",
			src:      `fn bad(a:int):int { return true }`,
			code:     ExitDiagnostics,
			messages: []string{"[L1, C21] return type mismatch: expected int, found bool"},
		},
		{
			name: "duplicate declaration",
			src: `fn main(): void {
	let value: int = 1
	let value: int = 2
}`,
			code:     ExitDiagnostics,
			messages: []string{"[L3, C2] 'value' is already declared in this scope"},
		},
		{
			name: "hash indexed with int",
			src: `let users:hash<string,int> = {"ana":1}
let n: int = users[0]`,
			code:     ExitDiagnostics,
			messages: []string{"[L2, C19] cannot index hash<string,int> with int: expected string"},
		},
		{
			name:     "syntax error",
			src:      `let x: int = `,
			code:     ExitDiagnostics,
			messages: []string{"[L1, C14] Token '<EOF>': expected expression"},
		},
		{
			name:     "runtime fault",
			src:      `print("a") print(1 / 0)`,
			output:   "a\n",
			code:     ExitRuntimeFault,
			messages: []string{"[L1, C20] RuntimeFault: division by zero"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, out, err := RunCaptured(tt.src, Options{})
			if err != nil {
				t.Fatalf("RunCaptured: %v", err)
			}
			if res.ExitCode != tt.code {
				t.Errorf("exit code = %d, want %d", res.ExitCode, tt.code)
			}
			if out != tt.output {
				t.Errorf("output = %q, want %q", out, tt.output)
			}
			if diff := pretty.Diff(tt.messages, res.Messages()); len(diff) > 0 {
				t.Errorf("messages %q: %v", res.Messages(), diff)
			}
		})
	}
}

func TestCompileSkipsGenerationOnDiagnostics(t *testing.T) {
	mod, diags, err := Compile(`fn bad(a:int):int { return true }`, Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if mod != nil {
		t.Errorf("a module was generated for an ill-typed program")
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Error(), "return") {
		t.Errorf("diagnostics = %v", diags)
	}
}

func TestCheck(t *testing.T) {
	if diags := Check(`fn main(): void { print(len("abc")) }`); len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	diags := Check(`let a: int = "x"
let b: bool = 1`)
	if len(diags) != 2 {
		t.Errorf("Check should report every diagnostic, got %v", diags)
	}
}

func TestExitFromMain(t *testing.T) {
	src := `fn main(): int { print("bye") return 4 }`
	res, out, err := RunCaptured(src, Options{ExitFromMain: true})
	if err != nil {
		t.Fatalf("RunCaptured: %v", err)
	}
	if res.ExitCode != 4 || out != "bye\n" {
		t.Errorf("exit %d output %q", res.ExitCode, out)
	}

	res, _, _ = RunCaptured(src, Options{})
	if res.ExitCode != ExitOK {
		t.Errorf("main's result should be ignored by default, got %d", res.ExitCode)
	}
}

func TestMaxCallDepth(t *testing.T) {
	src := `fn down(n: int): int { if n == 0 { return 0 } return down(n - 1) }
print(down(50))`
	res, out, err := RunCaptured(src, Options{})
	if err != nil || res.ExitCode != ExitOK || out != "0\n" {
		t.Fatalf("default depth: exit %d output %q err %v", res.ExitCode, out, err)
	}
	res, _, _ = RunCaptured(src, Options{MaxCallDepth: 10})
	if res.ExitCode != ExitRuntimeFault {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitRuntimeFault)
	}
	if msgs := res.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "call depth exceeded 10") {
		t.Errorf("messages = %q", msgs)
	}
}

func TestRunLimits(t *testing.T) {
	src := `fn down(n: int): int { if n == 0 { return 0 } return down(n - 1) }
print(down(200))`
	res, _, err := RunCaptured(src, Options{MaxInstructions: 100})
	if err != nil || res.ExitCode != ExitRuntimeFault {
		t.Fatalf("budget: exit %d err %v", res.ExitCode, err)
	}
	if msgs := res.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "instruction budget of 100 exceeded") {
		t.Errorf("messages = %q", msgs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, _, err = RunCaptured(src, Options{Context: ctx})
	if err != nil || res.ExitCode != ExitRuntimeFault {
		t.Fatalf("cancelled: exit %d err %v", res.ExitCode, err)
	}
	if msgs := res.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "context canceled") {
		t.Errorf("messages = %q", msgs)
	}
}
