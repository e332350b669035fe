package bytecode

import (
	"strings"
	"testing"

	"monkey/internal/types"
)

func TestEmit(t *testing.T) {
	c := NewChunk()
	d := DebugInfo{Line: 3, Column: 7, Function: "f"}
	if pos := c.Emit(d, OpConstant, 65534); pos != 0 {
		t.Errorf("first Emit at %d", pos)
	}
	if pos := c.Emit(d, OpCall, 300, 2); pos != 3 {
		t.Errorf("second Emit at %d", pos)
	}
	want := []byte{byte(OpConstant), 0xff, 0xfe, byte(OpCall), 0x01, 0x2c, 2}
	if string(c.Code) != string(want) {
		t.Errorf("code = %v, want %v", c.Code, want)
	}
	if got := c.ReadShort(4); got != 300 {
		t.Errorf("ReadShort = %d", got)
	}
	if len(c.Debug) != len(c.Code) || c.GetDebugInfo(6) != d {
		t.Errorf("debug info not recorded per byte")
	}
	if c.GetDebugInfo(99) != (DebugInfo{}) {
		t.Errorf("out of range debug info should be zero")
	}
}

func TestPatchShort(t *testing.T) {
	c := NewChunk()
	pos := c.Emit(DebugInfo{}, OpJump, 0xffff) + 1
	c.PatchShort(pos, 12)
	if c.ReadShort(pos) != 12 {
		t.Errorf("patched operand = %d", c.ReadShort(pos))
	}
}

func TestAddConstantInterns(t *testing.T) {
	c := NewChunk()
	a := c.AddConstant(int64(1))
	b := c.AddConstant("1")
	if c.AddConstant(int64(1)) != a || c.AddConstant("1") != b || a == b {
		t.Errorf("constants not interned by value and type: %v", c.Constants)
	}
}

func TestWidth(t *testing.T) {
	tests := map[OpCode]int{
		OpPop:         1,
		OpUnbox:       2,
		OpConstant:    3,
		OpCall:        4,
		OpCallBuiltin: 3,
		OpCode(250):   1,
	}
	for op, want := range tests {
		if got := op.Width(); got != want {
			t.Errorf("%s width = %d, want %d", op, got, want)
		}
	}
}

func TestBuiltinIDs(t *testing.T) {
	for _, name := range []string{"len", "first", "last", "rest", "push"} {
		id, ok := BuiltinID(name)
		if !ok || BuiltinName(id) != name {
			t.Errorf("round trip of %s failed", name)
		}
	}
	if _, ok := BuiltinID("print"); ok {
		t.Errorf("print is a statement, not a builtin")
	}
}

func TestModuleDeclare(t *testing.T) {
	m := NewModule()
	idx, err := m.Declare("add", []*types.Type{types.Int, types.Int}, types.Int)
	if err != nil || idx != 0 {
		t.Fatalf("Declare = %d, %v", idx, err)
	}
	if _, err := m.Declare("add", nil, types.Void); err == nil {
		t.Errorf("duplicate declaration accepted")
	}
	fn, ok := m.Lookup("add")
	if !ok || fn.Arity != 2 {
		t.Errorf("Lookup = %+v, %v", fn, ok)
	}
	if _, ok := m.Lookup("sub"); ok {
		t.Errorf("Lookup of unknown function succeeded")
	}
}

func TestDisassemble(t *testing.T) {
	m := NewModule()
	idx, _ := m.Declare("main", nil, types.Void)
	m.Globals = []string{"total"}
	c := m.Functions[idx].Chunk
	var d DebugInfo
	c.Emit(d, OpConstant, c.AddConstant("hi"))
	c.Emit(d, OpSetGlobal, 0)
	c.Emit(d, OpCallBuiltin, int(BuiltinLen), 1)
	c.Emit(d, OpJump, 2)
	c.Emit(d, OpReturn)

	got := Disassemble(m)
	for _, want := range []string{
		"globals: total",
		"fn main arity=0 captures=0 locals=0",
		`0000 OpConstant      0	("hi")`,
		"0003 OpSetGlobal     0	(total)",
		"0006 OpCallBuiltin   0 1	(len)",
		"0009 OpJump          2	(-> 0014)",
		"0012 OpReturn",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("listing missing %q:\n%s", want, got)
		}
	}
	if m.Size() != 13 {
		t.Errorf("Size = %d", m.Size())
	}
}
