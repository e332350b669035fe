package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"monkey/internal/bytecode"
	"monkey/internal/errors"
	"monkey/internal/parser"
)

func generate(t *testing.T, src string, opts ...Option) *bytecode.Module {
	t.Helper()
	prog, errs := parser.Parse(src)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errors.Strings(errs))
	}
	mod, err := Generate(prog, opts...)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return mod
}

// ops decodes a chunk into "OpName operand..." strings.
func ops(c *bytecode.Chunk) []string {
	var out []string
	for ip := 0; ip < len(c.Code); {
		op := bytecode.OpCode(c.Code[ip])
		def, _ := bytecode.Lookup(op)
		parts := []string{def.Name}
		offset := ip + 1
		for _, width := range def.Operands {
			switch width {
			case 1:
				parts = append(parts, fmt.Sprint(c.Code[offset]))
			case 2:
				parts = append(parts, fmt.Sprint(c.ReadShort(offset)))
			}
			offset += width
		}
		out = append(out, strings.Join(parts, " "))
		ip = offset
	}
	return out
}

func fnOps(t *testing.T, mod *bytecode.Module, name string) []string {
	t.Helper()
	fn, ok := mod.Lookup(name)
	if !ok {
		t.Fatalf("function %s not found", name)
	}
	return ops(fn.Chunk)
}

func TestFunctionBodies(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		want []string
	}{
		{
			"int addition",
			`fn add(a: int, b: int): int { return a + b }`,
			"add",
			[]string{"OpGetLocal 0", "OpGetLocal 1", "OpAddInt", "OpReturnValue", "OpReturn"},
		},
		{
			"string concatenation",
			`fn cat(a: string, b: string): string { return a + b }`,
			"cat",
			[]string{"OpGetLocal 0", "OpGetLocal 1", "OpConcat", "OpReturnValue", "OpReturn"},
		},
		{
			"if else",
			`fn f(b: bool): int { if b { return 1 } else { return 2 } }`,
			"f",
			[]string{"OpGetLocal 0", "OpJumpIfFalse 7", "OpConstant 0", "OpReturnValue", "OpJump 4", "OpConstant 1", "OpReturnValue", "OpReturn"},
		},
		{
			"if without else",
			`fn f(b: bool): void { if b { print(1) } }`,
			"f",
			[]string{"OpGetLocal 0", "OpJumpIfFalse 4", "OpConstant 0", "OpPrint", "OpReturn"},
		},
		{
			"array index unboxes",
			`fn g(xs: array<int>): int { return xs[0] }`,
			"g",
			[]string{"OpGetLocal 0", "OpConstant 0", "OpIndexArray", "OpUnbox 1", "OpReturnValue", "OpReturn"},
		},
		{
			"hash of arrays does not unbox",
			`fn g(h: hash<string, array<int>>): array<int> { return h["k"] }`,
			"g",
			[]string{"OpGetLocal 0", "OpConstant 0", "OpIndexHash", "OpReturnValue", "OpReturn"},
		},
		{
			"string index",
			`fn g(s: string): char { return s[1] }`,
			"g",
			[]string{"OpGetLocal 0", "OpConstant 0", "OpIndexString", "OpReturnValue", "OpReturn"},
		},
		{
			"builtins",
			`fn h(xs: array<bool>): bool { let n: int = len(xs) return first(xs) }`,
			"h",
			[]string{"OpGetLocal 0", "OpCallBuiltin 0 1", "OpSetLocal 1", "OpGetLocal 0", "OpCallBuiltin 1 1", "OpUnbox 2", "OpReturnValue", "OpReturn"},
		},
		{
			"containers",
			`fn c(): void { let a: array<int> = [1, 2] let h: hash<string, int> = {"x": 1} }`,
			"c",
			[]string{
				"OpArray", "OpConstant 0", "OpArrayAppend", "OpConstant 1", "OpArrayAppend", "OpSetLocal 0",
				"OpHash", "OpConstant 2", "OpConstant 0", "OpHashInsert", "OpSetLocal 1", "OpReturn",
			},
		},
		{
			"comparison and expression statement",
			`fn f(a: int): void { a < 2 a != 3 }`,
			"f",
			[]string{"OpGetLocal 0", "OpConstant 0", "OpLess", "OpPop", "OpGetLocal 0", "OpConstant 1", "OpNotEqual", "OpPop", "OpReturn"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := generate(t, tt.src)
			if diff := pretty.Diff(tt.want, fnOps(t, mod, tt.fn)); len(diff) > 0 {
				t.Errorf("got %q\n%v", fnOps(t, mod, tt.fn), diff)
			}
		})
	}
}

func TestEntryFunction(t *testing.T) {
	src := `let g: int = 1
fn main(): int { print(g) return 7 }`

	mod := generate(t, src)
	if mod.Main != 0 || mod.Entry != 1 {
		t.Fatalf("Main = %d, Entry = %d", mod.Main, mod.Entry)
	}
	if diff := pretty.Diff([]string{"g"}, mod.Globals); len(diff) > 0 {
		t.Errorf("globals: %v", diff)
	}
	want := []string{"OpConstant 0", "OpSetGlobal 0", "OpCall 0 0", "OpPop", "OpConstant 1", "OpReturnValue"}
	if diff := pretty.Diff(want, fnOps(t, mod, bytecode.EntryName)); len(diff) > 0 {
		t.Errorf("entry: %v", diff)
	}
	if diff := pretty.Diff([]string{"OpGetGlobal 0", "OpPrint", "OpConstant 0", "OpReturnValue", "OpReturn"}, fnOps(t, mod, "main")); len(diff) > 0 {
		t.Errorf("main: %v", diff)
	}

	mod = generate(t, src, WithExitFromMain())
	want = []string{"OpConstant 0", "OpSetGlobal 0", "OpCall 0 0", "OpReturnValue"}
	if diff := pretty.Diff(want, fnOps(t, mod, bytecode.EntryName)); len(diff) > 0 {
		t.Errorf("entry with exit from main: %v", diff)
	}
}

func TestEntryWithoutMain(t *testing.T) {
	mod := generate(t, `print("hi")`)
	if mod.Main != -1 {
		t.Errorf("Main = %d, want -1", mod.Main)
	}
	want := []string{"OpConstant 0", "OpPrint", "OpConstant 1", "OpReturnValue"}
	if diff := pretty.Diff(want, fnOps(t, mod, bytecode.EntryName)); len(diff) > 0 {
		t.Errorf("entry: %v", diff)
	}
}

func TestClosures(t *testing.T) {
	mod := generate(t, `fn main(): void {
	let k: int = 2
	let f: fn(int): int = fn(n: int): int { return n * k }
	let id: fn(int): int = fn(n: int): int { return n }
	print(f(3))
}`)

	want := []string{
		"OpConstant 0", "OpSetLocal 0",
		"OpGetLocal 0", "OpClosure 2 1", "OpSetLocal 1",
		"OpFunction 3", "OpSetLocal 2",
		"OpGetLocal 1", "OpConstant 1", "OpCallValue 1", "OpPrint",
		"OpReturn",
	}
	if diff := pretty.Diff(want, fnOps(t, mod, "main")); len(diff) > 0 {
		t.Errorf("main: %q\n%v", fnOps(t, mod, "main"), diff)
	}

	lit, ok := mod.Lookup("main$fn1")
	if !ok {
		t.Fatalf("closure main$fn1 not emitted")
	}
	if diff := pretty.Diff([]int{1}, lit.CaptureSlots); len(diff) > 0 || lit.NumLocals != 2 || lit.Arity != 1 {
		t.Errorf("closure layout: captures %v locals %d arity %d", lit.CaptureSlots, lit.NumLocals, lit.Arity)
	}
	if diff := pretty.Diff([]string{"OpGetLocal 0", "OpGetLocal 1", "OpMul", "OpReturnValue", "OpReturn"}, ops(lit.Chunk)); len(diff) > 0 {
		t.Errorf("closure body: %v", diff)
	}
	if plain, _ := mod.Lookup("main$fn2"); len(plain.CaptureSlots) != 0 {
		t.Errorf("main$fn2 should capture nothing")
	}
}

func TestNestedCapture(t *testing.T) {
	mod := generate(t, `fn main(): void {
	let x: int = 1
	let outer: fn(): fn(): int = fn(): fn(): int {
		return fn(): int { return x }
	}
	print(outer()())
}`)
	outer, _ := mod.Lookup("main$fn1")
	inner, _ := mod.Lookup("main$fn1$fn2")
	if outer == nil || inner == nil {
		t.Fatalf("literals not emitted: %v", mod.Index)
	}
	if len(outer.CaptureSlots) != 1 || len(inner.CaptureSlots) != 1 {
		t.Errorf("x should be captured through both literals: %v %v", outer.CaptureSlots, inner.CaptureSlots)
	}
}

func TestGenerateRejectsIllTyped(t *testing.T) {
	prog, _ := parser.Parse(`let x: int = "s"`)
	if _, err := Generate(prog); err == nil {
		t.Errorf("expected Generate to refuse an ill-typed program")
	}
}

func TestDebugInfo(t *testing.T) {
	mod := generate(t, "fn main(): void {\n\tprint(1 / 0)\n}")
	main, _ := mod.Lookup("main")
	for ip, b := range main.Chunk.Code {
		if bytecode.OpCode(b) == bytecode.OpDiv {
			d := main.Chunk.GetDebugInfo(ip)
			if d.Line != 2 || d.Column != 10 || d.Function != "main" {
				t.Errorf("OpDiv debug info = %+v", d)
			}
			return
		}
	}
	t.Errorf("no OpDiv emitted")
}
