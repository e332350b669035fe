// internal/compiler/compiler.go
package compiler

import (
	"fmt"

	"monkey/internal/bytecode"
	"monkey/internal/checker"
	"monkey/internal/parser"
	"monkey/internal/symbols"
	"monkey/internal/types"
)

// Option configures Generate.
type Option func(*Compiler)

// WithExitFromMain makes the entry function return the result of an
// int-returning main instead of 0.
func WithExitFromMain() Option {
	return func(c *Compiler) { c.exitFromMain = true }
}

type Compiler struct {
	module       *bytecode.Module
	info         *checker.Info
	globals      map[*symbols.Symbol]int
	functions    map[*symbols.Symbol]int
	current      *funcScope
	pos          parser.Pos
	literals     int
	exitFromMain bool
}

// funcScope tracks slot assignment for the function being emitted.
type funcScope struct {
	fn     *bytecode.Function
	parent *funcScope
	slots  map[*symbols.Symbol]int
	// captured lists the outer symbols copied into this function, in the
	// order of fn.CaptureSlots.
	captured []*symbols.Symbol
}

func (s *funcScope) alloc() int {
	slot := s.fn.NumLocals
	s.fn.NumLocals++
	return slot
}

// Generate emits a Module for a program that has passed type checking.
func Generate(prog *parser.Program, opts ...Option) (mod *bytecode.Module, err error) {
	info, diags := checker.Analyze(prog)
	if len(diags) > 0 {
		return nil, fmt.Errorf("compiler: program is not well typed: %s", diags[0])
	}
	c := &Compiler{
		module:    bytecode.NewModule(),
		info:      info,
		globals:   make(map[*symbols.Symbol]int),
		functions: make(map[*symbols.Symbol]int),
	}
	for _, opt := range opts {
		opt(c)
	}

	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, fmt.Errorf("compiler: %v", r)
		}
	}()
	c.compileProgram(prog)
	return c.module, nil
}

func (c *Compiler) compileProgram(prog *parser.Program) {
	decls := prog.Functions
	if prog.Main != nil {
		decls = append(decls[:len(decls):len(decls)], prog.Main)
	}

	// Pass 1: the whole function table, so bodies can call forward.
	for _, fn := range decls {
		sym := c.info.Defs[fn]
		idx, err := c.module.Declare(fn.Name, sym.Type.Params, sym.Type.Return)
		if err != nil {
			panic(err)
		}
		c.functions[sym] = idx
	}
	entry, _ := c.module.Declare(bytecode.EntryName, nil, types.Int)
	c.module.Entry = entry
	if prog.Main != nil {
		c.module.Main = c.functions[c.info.Defs[prog.Main]]
	}
	for _, stmt := range prog.Globals {
		if let, ok := stmt.(*parser.LetStmt); ok {
			c.globals[c.info.Defs[let]] = len(c.module.Globals)
			c.module.Globals = append(c.module.Globals, let.Name)
		}
	}

	// Pass 2: bodies.
	for _, fn := range decls {
		c.compileFunction(c.module.Functions[c.functions[c.info.Defs[fn]]], fn.Params, fn.Body)
	}
	c.compileEntry(prog)
}

func (c *Compiler) compileEntry(prog *parser.Program) {
	c.current = &funcScope{
		fn:    c.module.Functions[c.module.Entry],
		slots: make(map[*symbols.Symbol]int),
	}
	defer func() { c.current = nil }()

	for _, stmt := range prog.Globals {
		c.compileStmt(stmt)
	}
	c.pos = parser.Pos{}
	if prog.Main != nil {
		c.emit(bytecode.OpCall, c.module.Main, 0)
		main := c.module.Functions[c.module.Main]
		if c.exitFromMain && main.Return.Kind == types.KindInt {
			c.emit(bytecode.OpReturnValue)
			return
		}
		c.emit(bytecode.OpPop)
	}
	c.emit(bytecode.OpConstant, c.constant(int64(0)))
	c.emit(bytecode.OpReturnValue)
}

// compileFunction emits the body of fn. Parameters occupy the first slots.
func (c *Compiler) compileFunction(fn *bytecode.Function, params []*parser.Param, body *parser.BlockStmt) *funcScope {
	scope := &funcScope{
		fn:     fn,
		parent: c.current,
		slots:  make(map[*symbols.Symbol]int),
	}
	c.current = scope
	defer func() { c.current = scope.parent }()

	for _, p := range params {
		scope.slots[c.info.Defs[p]] = scope.alloc()
	}
	for _, stmt := range body.Statements {
		c.compileStmt(stmt)
	}
	c.pos = body.Pos()
	c.emit(bytecode.OpReturn)
	return scope
}

func (c *Compiler) emit(op bytecode.OpCode, operands ...int) int {
	debug := bytecode.DebugInfo{
		Line:     c.pos.Line,
		Column:   c.pos.Column,
		Function: c.current.fn.Name,
	}
	return c.current.fn.Chunk.Emit(debug, op, operands...)
}

// emitJump emits a jump with a placeholder offset and returns the operand
// position for patchJump.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	return c.emit(op, 0xffff) + 1
}

// patchJump points the jump at operand position pos to the current end of
// the chunk.
func (c *Compiler) patchJump(pos int) {
	chunk := c.current.fn.Chunk
	offset := len(chunk.Code) - (pos + 2)
	if offset > 0xffff {
		panic("jump offset out of range")
	}
	chunk.PatchShort(pos, offset)
}

func (c *Compiler) constant(v interface{}) int {
	return c.current.fn.Chunk.AddConstant(v)
}

type refKind int

const (
	refLocal refKind = iota
	refGlobal
	refFunction
)

// resolve finds where sym lives from the point of view of scope. A local
// of an enclosing function is copied into scope as a capture.
func (c *Compiler) resolve(scope *funcScope, sym *symbols.Symbol) (refKind, int) {
	if slot, ok := scope.slots[sym]; ok {
		return refLocal, slot
	}
	if g, ok := c.globals[sym]; ok {
		return refGlobal, g
	}
	if f, ok := c.functions[sym]; ok {
		return refFunction, f
	}
	if scope.parent != nil && c.visibleLocal(scope.parent, sym) {
		slot := scope.alloc()
		scope.slots[sym] = slot
		scope.captured = append(scope.captured, sym)
		scope.fn.CaptureSlots = append(scope.fn.CaptureSlots, slot)
		return refLocal, slot
	}
	panic(fmt.Sprintf("unresolved symbol %s", sym.Name))
}

func (c *Compiler) visibleLocal(scope *funcScope, sym *symbols.Symbol) bool {
	for s := scope; s != nil; s = s.parent {
		if _, ok := s.slots[sym]; ok {
			return true
		}
	}
	return false
}

func unboxKind(t *types.Type) (byte, bool) {
	switch t.Kind {
	case types.KindInt:
		return bytecode.UnboxInt, true
	case types.KindBool:
		return bytecode.UnboxBool, true
	case types.KindChar:
		return bytecode.UnboxChar, true
	case types.KindString:
		return bytecode.UnboxString, true
	}
	return 0, false
}

// emitUnbox asserts the runtime tag of a value taken out of a container.
func (c *Compiler) emitUnbox(t *types.Type) {
	if kind, ok := unboxKind(t); ok {
		c.emit(bytecode.OpUnbox, int(kind))
	}
}
