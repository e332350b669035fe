package bytecode

import "encoding/binary"

// DebugInfo stores source location for each bytecode instruction
type DebugInfo struct {
	Line     int
	Column   int
	Function string
}

// Chunk is the encoded instruction stream of one function. Operands are
// big-endian. Constants hold int64, bool, rune and string values.
type Chunk struct {
	Code      []byte
	Constants []interface{}
	Debug     []DebugInfo // Debug info for each byte of Code
}

func NewChunk() *Chunk {
	return &Chunk{
		Code:      []byte{},
		Constants: []interface{}{},
		Debug:     []DebugInfo{},
	}
}

// Emit appends op and its operands and returns the offset of op.
func (c *Chunk) Emit(debug DebugInfo, op OpCode, operands ...int) int {
	pos := len(c.Code)
	c.WriteOpWithDebug(op, debug)
	def, ok := Lookup(op)
	if !ok {
		return pos
	}
	for i, width := range def.Operands {
		var operand int
		if i < len(operands) {
			operand = operands[i]
		}
		switch width {
		case 1:
			c.WriteByteWithDebug(byte(operand), debug)
		case 2:
			c.WriteByteWithDebug(byte(operand>>8), debug)
			c.WriteByteWithDebug(byte(operand), debug)
		}
	}
	return pos
}

func (c *Chunk) WriteOp(op OpCode) {
	c.Code = append(c.Code, byte(op))
	c.Debug = append(c.Debug, DebugInfo{})
}

func (c *Chunk) WriteOpWithDebug(op OpCode, debug DebugInfo) {
	c.Code = append(c.Code, byte(op))
	c.Debug = append(c.Debug, debug)
}

func (c *Chunk) WriteByte(b byte) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, DebugInfo{})
}

func (c *Chunk) WriteByteWithDebug(b byte, debug DebugInfo) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, debug)
}

// PatchShort overwrites the two-byte operand at pos.
func (c *Chunk) PatchShort(pos, value int) {
	binary.BigEndian.PutUint16(c.Code[pos:], uint16(value))
}

// ReadShort decodes the two-byte operand at pos.
func (c *Chunk) ReadShort(pos int) int {
	return int(binary.BigEndian.Uint16(c.Code[pos:]))
}

// AddConstant interns val and returns its index.
func (c *Chunk) AddConstant(val interface{}) int {
	for i, existing := range c.Constants {
		if existing == val {
			return i
		}
	}
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

func (c *Chunk) GetDebugInfo(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}
