// internal/compiler/stmt_compiler.go
package compiler

import (
	"fmt"

	"monkey/internal/bytecode"
	"monkey/internal/parser"
)

func (c *Compiler) compileStmt(stmt parser.Stmt) {
	c.pos = stmt.Pos()
	switch s := stmt.(type) {
	case *parser.LetStmt:
		c.compileExpr(s.Value)
		c.pos = s.Pos()
		sym := c.info.Defs[s]
		if g, ok := c.globals[sym]; ok {
			c.emit(bytecode.OpSetGlobal, g)
			return
		}
		slot := c.current.alloc()
		c.current.slots[sym] = slot
		c.emit(bytecode.OpSetLocal, slot)

	case *parser.ReturnStmt:
		if s.Value == nil {
			c.emit(bytecode.OpReturn)
			return
		}
		c.compileExpr(s.Value)
		c.pos = s.Pos()
		c.emit(bytecode.OpReturnValue)

	case *parser.ExpressionStmt:
		c.compileExpr(s.Expr)
		c.emit(bytecode.OpPop)

	case *parser.IfStmt:
		c.compileIf(s)

	case *parser.BlockStmt:
		for _, inner := range s.Statements {
			c.compileStmt(inner)
		}

	case *parser.PrintStmt:
		c.compileExpr(s.Value)
		c.pos = s.Pos()
		c.emit(bytecode.OpPrint)

	default:
		panic(fmt.Sprintf("unexpected statement %T", stmt))
	}
}

// compileIf lays out: condition, jump-if-false to else (or join),
// consequence, jump to join (only with an alternative), alternative, join.
func (c *Compiler) compileIf(s *parser.IfStmt) {
	c.compileExpr(s.Condition)
	c.pos = s.Pos()
	toElse := c.emitJump(bytecode.OpJumpIfFalse)

	c.compileStmt(s.Consequence)
	if s.Alternative == nil {
		c.patchJump(toElse)
		return
	}

	c.pos = s.Pos()
	toJoin := c.emitJump(bytecode.OpJump)
	c.patchJump(toElse)
	c.compileStmt(s.Alternative)
	c.patchJump(toJoin)
}
