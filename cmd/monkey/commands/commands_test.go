package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"

	"monkey/internal/config"
	"monkey/internal/driver"
)

func testEnv(t *testing.T) (*Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Color = "never"
	var stdout, stderr bytes.Buffer
	return &Env{Config: cfg, Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

func writeFile(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const okProgram = `fn main(): void { let x: int = 10 let y: int = 5 print(x + y) }`

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		code   int
		stdout string
		stderr string
	}{
		{"ok", okProgram, driver.ExitOK, "15\n", ""},
		{"diagnostic", `fn bad(a: int): int { return true }`, driver.ExitDiagnostics, "", "[L1, C23] return type mismatch: expected int, found bool\n"},
		{"fault", `fn main(): void { print(1 / 0) }`, driver.ExitRuntimeFault, "",
			"[L1, C27] RuntimeFault: division by zero\nCall Stack:\n  at main [L1, C27]\n  at <entry>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, stdout, stderr := testEnv(t)
			code, err := RunCommand(env, []string{writeFile(t, "prog.mk", tt.src)})
			if err != nil {
				t.Fatalf("RunCommand: %v", err)
			}
			if code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
			if stdout.String() != tt.stdout {
				t.Errorf("stdout = %q, want %q", stdout, tt.stdout)
			}
			if stderr.String() != tt.stderr {
				t.Errorf("stderr = %q, want %q", stderr, tt.stderr)
			}
		})
	}
}

func TestRunCommandUsage(t *testing.T) {
	env, _, _ := testEnv(t)
	if _, err := RunCommand(env, nil); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected a usage error, got %v", err)
	}
	if _, err := RunCommand(env, []string{filepath.Join(t.TempDir(), "missing.mk")}); err == nil {
		t.Errorf("expected a read error")
	}
}

func TestRunCommandRecordsHistory(t *testing.T) {
	env, stdout, stderr := testEnv(t)
	env.Config.History.Enabled = true
	env.Config.History.DSN = filepath.Join(t.TempDir(), "history.db")

	file := writeFile(t, "prog.mk", okProgram)
	if code, err := RunCommand(env, []string{file}); err != nil || code != driver.ExitOK {
		t.Fatalf("RunCommand: %d %v", code, err)
	}
	if stderr.Len() > 0 {
		t.Fatalf("stderr: %s", stderr)
	}

	stdout.Reset()
	if code, err := HistoryCommand(env, []string{"-n", "5"}); err != nil || code != driver.ExitOK {
		t.Fatalf("HistoryCommand: %d %v", code, err)
	}
	if !strings.Contains(stdout.String(), file) || !strings.Contains(stdout.String(), "exit=0") {
		t.Errorf("history listing:\n%s", stdout)
	}
}

func TestCheckCommand(t *testing.T) {
	env, stdout, stderr := testEnv(t)
	good := writeFile(t, "good.mk", okProgram)
	bad := writeFile(t, "bad.mk", `let x: int = "s"`)

	code, err := CheckCommand(env, []string{good, good})
	if err != nil || code != driver.ExitOK {
		t.Fatalf("CheckCommand: %d %v", code, err)
	}
	if stdout.String() != "2 file(s) OK\n" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout.Reset()
	code, err = CheckCommand(env, []string{good, bad})
	if err != nil || code != driver.ExitDiagnostics {
		t.Fatalf("CheckCommand: %d %v", code, err)
	}
	want := bad + ": [L1, C14] cannot assign string to 'x' of type int\n"
	if stderr.String() != want {
		t.Errorf("stderr = %q, want %q", stderr, want)
	}
	if stdout.Len() != 0 {
		t.Errorf("no summary expected on failure, got %q", stdout)
	}
}

func TestCheckCommandErrors(t *testing.T) {
	env, _, _ := testEnv(t)
	if _, err := CheckCommand(env, nil); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("no files: err = %v", err)
	}

	missing := filepath.Join(t.TempDir(), "absent.mk")
	code, err := CheckCommand(env, []string{missing})
	if err == nil || code != driver.ExitDiagnostics {
		t.Fatalf("missing file: %d %v", code, err)
	}
	if !strings.HasPrefix(err.Error(), missing+": could not read file") {
		t.Errorf("err = %q", err)
	}
	if !os.IsNotExist(pkgerrors.Cause(err)) {
		t.Errorf("cause should be the open error, got %T", pkgerrors.Cause(err))
	}
}

func TestInspectCommands(t *testing.T) {
	file := writeFile(t, "prog.mk", okProgram)
	tests := []struct {
		name string
		cmd  func(*Env, []string) (int, error)
		want []string
	}{
		{"disasm", DisasmCommand, []string{"fn main arity=0", "OpPrint", "fn <entry>", "functions,"}},
		{"ast", ASTCommand, []string{"parser.Program", "Main:", `"main"`}},
		{"emit-llvm", EmitLLVMCommand, []string{"define i32 @main()", "@monkey.main", "@printf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, stdout, stderr := testEnv(t)
			code, err := tt.cmd(env, []string{file})
			if err != nil || code != driver.ExitOK {
				t.Fatalf("exit %d err %v stderr %s", code, err, stderr)
			}
			for _, w := range tt.want {
				if !strings.Contains(stdout.String(), w) {
					t.Errorf("output missing %q:\n%s", w, stdout)
				}
			}
		})
	}
}

func TestEmitLLVMToFile(t *testing.T) {
	env, stdout, _ := testEnv(t)
	out := filepath.Join(t.TempDir(), "prog.ll")
	code, err := EmitLLVMCommand(env, []string{"-o", out, writeFile(t, "prog.mk", okProgram)})
	if err != nil || code != driver.ExitOK {
		t.Fatalf("EmitLLVMCommand: %d %v", code, err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout should be empty with -o")
	}
	ir, err := os.ReadFile(out)
	if err != nil || !bytes.Contains(ir, []byte("@main")) {
		t.Errorf("IR file: %v", err)
	}
}

func TestEmitLLVMUnsupported(t *testing.T) {
	env, _, _ := testEnv(t)
	file := writeFile(t, "prog.mk", `fn main(): void { print([1, 2]) }`)
	if _, err := EmitLLVMCommand(env, []string{file}); err == nil {
		t.Errorf("arrays should not lower natively")
	}
}

func TestFmtCommand(t *testing.T) {
	env, stdout, _ := testEnv(t)
	file := writeFile(t, "prog.mk", "fn main():void{print(1+2)}")

	if code, err := FmtCommand(env, []string{"-stdout", file}); err != nil || code != driver.ExitOK {
		t.Fatalf("FmtCommand -stdout: %d %v", code, err)
	}
	want := "fn main(): void {\n    print(1 + 2)\n}\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q", stdout)
	}

	stdout.Reset()
	if code, err := FmtCommand(env, []string{file}); err != nil || code != driver.ExitOK {
		t.Fatalf("FmtCommand: %d %v", code, err)
	}
	got, _ := os.ReadFile(file)
	if string(got) != want {
		t.Errorf("file = %q", got)
	}
	if stdout.String() != file+": formatted\n" {
		t.Errorf("stdout = %q", stdout)
	}

	env, _, stderr := testEnv(t)
	bad := writeFile(t, "bad.mk", "let x: int = ")
	if code, _ := FmtCommand(env, []string{bad}); code != driver.ExitDiagnostics || stderr.Len() == 0 {
		t.Errorf("syntax errors should be reported, exit %d", code)
	}
}

func TestRunCommandDebugger(t *testing.T) {
	env, stdout, stderr := testEnv(t)
	file := writeFile(t, "prog.mk", "fn sq(n: int): int {\n\treturn n * n\n}\nprint(sq(3))")
	code, err := RunCommand(env, []string{"-break", "2", "-profile", file})
	if err != nil || code != driver.ExitOK {
		t.Fatalf("RunCommand: %d %v", code, err)
	}
	if stdout.String() != "9\n" {
		t.Errorf("stdout = %q", stdout)
	}
	for _, want := range []string{"breakpoint 1 at line 2 (hit 1)", "  at sq [L2, C9]", "function", "sq"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}

	if _, err := RunCommand(env, []string{"-break", "x", file}); err == nil {
		t.Errorf("invalid breakpoint accepted")
	}
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "ok.mk"), []byte("print(1 + 1) // expect: 2\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "bad.mk"), []byte("print(1) // expect: 2\n"), 0o644)

	env, stdout, _ := testEnv(t)
	code, err := TestCommand(env, []string{"-run", "ok", dir})
	if err != nil || code != driver.ExitOK {
		t.Fatalf("TestCommand -run ok: %d %v\n%s", code, err, stdout)
	}

	stdout.Reset()
	code, err = TestCommand(env, []string{dir})
	if err != nil || code != driver.ExitDiagnostics {
		t.Fatalf("TestCommand: %d %v", code, err)
	}
	if !strings.Contains(stdout.String(), "FAIL bad") || !strings.Contains(stdout.String(), "1 passed, 1 failed") {
		t.Errorf("report:\n%s", stdout)
	}
}

func TestLSPCommand(t *testing.T) {
	env, stdout, stderr := testEnv(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"shutdown"}`
	exit := `{"jsonrpc":"2.0","method":"exit"}`
	env.Stdin = strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%sContent-Length: %d\r\n\r\n%s", len(body), body, len(exit), exit))
	code, err := LSPCommand(env, nil)
	if err != nil || code != driver.ExitOK {
		t.Fatalf("LSPCommand = %d, %v", code, err)
	}
	if !strings.Contains(stdout.String(), `"id":1`) {
		t.Errorf("no shutdown response in %q", stdout)
	}
	if stderr.Len() > 0 {
		t.Errorf("stderr = %q", stderr)
	}
}
