package bytecode

type OpCode byte

const (
	OpConstant OpCode = iota
	OpNull
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpSetGlobal
	OpArray
	OpArrayAppend
	OpHash
	OpHashInsert
	OpAdd
	OpAddInt
	OpConcat
	OpSub
	OpMul
	OpDiv
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpCall
	OpCallValue
	OpCallBuiltin
	OpFunction
	OpClosure
	OpIndex
	OpIndexArray
	OpIndexHash
	OpIndexString
	OpUnbox
	OpJump
	OpJumpIfFalse
	OpReturn
	OpReturnValue
	OpPrint
	OpPop
)

// Definition describes an opcode's name and operand widths in bytes.
type Definition struct {
	Name     string
	Operands []int
}

var definitions = map[OpCode]*Definition{
	OpConstant:     {"OpConstant", []int{2}},
	OpNull:         {"OpNull", nil},
	OpGetLocal:     {"OpGetLocal", []int{2}},
	OpSetLocal:     {"OpSetLocal", []int{2}},
	OpGetGlobal:    {"OpGetGlobal", []int{2}},
	OpSetGlobal:    {"OpSetGlobal", []int{2}},
	OpArray:        {"OpArray", nil},
	OpArrayAppend:  {"OpArrayAppend", nil},
	OpHash:         {"OpHash", nil},
	OpHashInsert:   {"OpHashInsert", nil},
	OpAdd:          {"OpAdd", nil},
	OpAddInt:       {"OpAddInt", nil},
	OpConcat:       {"OpConcat", nil},
	OpSub:          {"OpSub", nil},
	OpMul:          {"OpMul", nil},
	OpDiv:          {"OpDiv", nil},
	OpEqual:        {"OpEqual", nil},
	OpNotEqual:     {"OpNotEqual", nil},
	OpLess:         {"OpLess", nil},
	OpLessEqual:    {"OpLessEqual", nil},
	OpGreater:      {"OpGreater", nil},
	OpGreaterEqual: {"OpGreaterEqual", nil},
	OpCall:         {"OpCall", []int{2, 1}},
	OpCallValue:    {"OpCallValue", []int{1}},
	OpCallBuiltin:  {"OpCallBuiltin", []int{1, 1}},
	OpFunction:     {"OpFunction", []int{2}},
	OpClosure:      {"OpClosure", []int{2, 1}},
	OpIndex:        {"OpIndex", nil},
	OpIndexArray:   {"OpIndexArray", nil},
	OpIndexHash:    {"OpIndexHash", nil},
	OpIndexString:  {"OpIndexString", nil},
	OpUnbox:        {"OpUnbox", []int{1}},
	OpJump:         {"OpJump", []int{2}},
	OpJumpIfFalse:  {"OpJumpIfFalse", []int{2}},
	OpReturn:       {"OpReturn", nil},
	OpReturnValue:  {"OpReturnValue", nil},
	OpPrint:        {"OpPrint", nil},
	OpPop:          {"OpPop", nil},
}

// Lookup returns the definition of op.
func Lookup(op OpCode) (*Definition, bool) {
	def, ok := definitions[op]
	return def, ok
}

func (op OpCode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return "OpUnknown"
}

// Width returns the encoded size of op including its operands.
func (op OpCode) Width() int {
	w := 1
	if def, ok := definitions[op]; ok {
		for _, n := range def.Operands {
			w += n
		}
	}
	return w
}

// Builtin identifiers used as the first operand of OpCallBuiltin.
const (
	BuiltinLen byte = iota
	BuiltinFirst
	BuiltinLast
	BuiltinRest
	BuiltinPush
)

var builtinNames = []string{"len", "first", "last", "rest", "push"}

// BuiltinID maps a builtin name to its identifier.
func BuiltinID(name string) (byte, bool) {
	for i, n := range builtinNames {
		if n == name {
			return byte(i), true
		}
	}
	return 0, false
}

// BuiltinName is the inverse of BuiltinID.
func BuiltinName(id byte) string {
	if int(id) < len(builtinNames) {
		return builtinNames[id]
	}
	return "?"
}

// Unbox kinds, the operand of OpUnbox.
const (
	UnboxInt byte = iota + 1
	UnboxBool
	UnboxChar
	UnboxString
)
