package bytecode

import (
	"fmt"
	"strings"

	"monkey/internal/types"
)

// EntryName is the synthesized function that runs global statements and
// then main.
const EntryName = "<entry>"

// Function is one compiled function. Slots 0..Arity-1 hold arguments;
// CaptureSlots lists, in capture order, the slots that receive the values
// copied into a closure when it is created.
type Function struct {
	Name         string
	Arity        int
	CaptureSlots []int
	NumLocals    int
	Params       []*types.Type
	Return       *types.Type
	Chunk        *Chunk
}

// Module is the output of code generation.
type Module struct {
	Functions []*Function
	Index     map[string]int
	// Entry is the index of the entry function; Main is -1 without main.
	Entry   int
	Main    int
	Globals []string
}

func NewModule() *Module {
	return &Module{
		Index: make(map[string]int),
		Entry: -1,
		Main:  -1,
	}
}

// Declare adds a function signature and returns its index. The body chunk
// is attached later so calls can refer to functions not yet emitted.
func (m *Module) Declare(name string, params []*types.Type, ret *types.Type) (int, error) {
	if _, exists := m.Index[name]; exists {
		return 0, fmt.Errorf("function %s declared twice", name)
	}
	fn := &Function{
		Name:   name,
		Arity:  len(params),
		Params: params,
		Return: ret,
		Chunk:  NewChunk(),
	}
	m.Functions = append(m.Functions, fn)
	m.Index[name] = len(m.Functions) - 1
	return len(m.Functions) - 1, nil
}

// Lookup finds a function by name.
func (m *Module) Lookup(name string) (*Function, bool) {
	idx, ok := m.Index[name]
	if !ok {
		return nil, false
	}
	return m.Functions[idx], true
}

// Size returns the total encoded size of all function bodies.
func (m *Module) Size() int {
	n := 0
	for _, fn := range m.Functions {
		n += len(fn.Chunk.Code)
	}
	return n
}

// Disassemble renders a human-readable listing of every function.
func Disassemble(m *Module) string {
	var sb strings.Builder
	if len(m.Globals) > 0 {
		sb.WriteString(fmt.Sprintf("globals: %s\n\n", strings.Join(m.Globals, ", ")))
	}
	for i, fn := range m.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("fn %s arity=%d captures=%d locals=%d\n", fn.Name, fn.Arity, len(fn.CaptureSlots), fn.NumLocals))
		sb.WriteString(DisassembleChunk(fn.Chunk, m))
	}
	return sb.String()
}

// DisassembleChunk renders the instructions of a single chunk. m may be nil.
func DisassembleChunk(c *Chunk, m *Module) string {
	var sb strings.Builder
	for ip := 0; ip < len(c.Code); {
		op := OpCode(c.Code[ip])
		def, ok := Lookup(op)
		if !ok {
			sb.WriteString(fmt.Sprintf("%04d ?? %d\n", ip, c.Code[ip]))
			ip++
			continue
		}
		operands := make([]int, len(def.Operands))
		offset := ip + 1
		for i, width := range def.Operands {
			switch width {
			case 1:
				operands[i] = int(c.Code[offset])
			case 2:
				operands[i] = c.ReadShort(offset)
			}
			offset += width
		}
		sb.WriteString(fmt.Sprintf("%04d %-15s", ip, def.Name))
		for _, o := range operands {
			sb.WriteString(fmt.Sprintf(" %d", o))
		}
		sb.WriteString(annotate(op, operands, c, m, offset))
		sb.WriteString("\n")
		ip = offset
	}
	return sb.String()
}

func annotate(op OpCode, operands []int, c *Chunk, m *Module, next int) string {
	switch op {
	case OpConstant:
		if operands[0] < len(c.Constants) {
			return fmt.Sprintf("\t(%#v)", c.Constants[operands[0]])
		}
	case OpCall, OpFunction, OpClosure:
		if m != nil && operands[0] < len(m.Functions) {
			return "\t(" + m.Functions[operands[0]].Name + ")"
		}
	case OpGetGlobal, OpSetGlobal:
		if m != nil && operands[0] < len(m.Globals) {
			return "\t(" + m.Globals[operands[0]] + ")"
		}
	case OpCallBuiltin:
		return "\t(" + BuiltinName(byte(operands[0])) + ")"
	case OpJump, OpJumpIfFalse:
		return fmt.Sprintf("\t(-> %04d)", next+operands[0])
	}
	return ""
}
