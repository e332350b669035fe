package checker

import (
	"fmt"

	"monkey/internal/parser"
	"monkey/internal/symbols"
	"monkey/internal/types"
)

func (c *Checker) checkStmt(stmt parser.Stmt) {
	switch s := stmt.(type) {
	case *parser.LetStmt:
		c.checkLet(s)
	case *parser.ReturnStmt:
		c.checkReturn(s)
	case *parser.ExpressionStmt:
		c.checkExpr(s.Expr)
	case *parser.IfStmt:
		c.checkIf(s)
	case *parser.BlockStmt:
		c.checkBlock(s)
	case *parser.PrintStmt:
		c.checkExpr(s.Value)
	default:
		panic(fmt.Sprintf("checker: unexpected statement %T", stmt))
	}
}

func (c *Checker) checkLet(s *parser.LetStmt) {
	declared := c.resolveType(s.Type)
	if declared.Kind == types.KindVoid {
		c.errorf(s, "variable '%s' cannot have type void", s.Name)
	}
	_, redeclared := c.table.LookupCurrent(s.Name)
	if redeclared {
		c.errorf(s, "'%s' is already declared in this scope", s.Name)
	}

	// The value is checked before the name is visible, so `let x:int = x`
	// does not resolve to itself.
	actual := c.checkExpr(s.Value)

	if !redeclared {
		sym := &symbols.Symbol{Name: s.Name, Type: declared, Category: symbols.Variable, IsConst: s.Const}
		if err := c.table.Declare(sym); err == nil {
			c.info.Defs[s] = sym
		}
	}
	if declared.Kind != types.KindVoid && !types.Compatible(declared, actual) {
		c.errorf(s.Value, "cannot assign %s to '%s' of type %s", actual, s.Name, declared)
	}
}

func (c *Checker) checkReturn(s *parser.ReturnStmt) {
	if len(c.returns) == 0 {
		c.errorf(s, "return outside of a function")
		if s.Value != nil {
			c.checkExpr(s.Value)
		}
		return
	}
	expected := c.returns[len(c.returns)-1]
	if expected.Kind == types.KindVoid {
		if s.Value != nil {
			c.checkExpr(s.Value)
			c.errorf(s, "return with a value in a function returning void")
		}
		return
	}
	if s.Value == nil {
		c.errorf(s, "return without a value in a function returning %s", expected)
		return
	}
	actual := c.checkExpr(s.Value)
	if !types.Compatible(expected, actual) {
		c.errorf(s, "return type mismatch: expected %s, found %s", expected, actual)
	}
}

func (c *Checker) checkIf(s *parser.IfStmt) {
	cond := c.checkExpr(s.Condition)
	if !types.Compatible(types.Bool, cond) {
		c.errorf(s.Condition, "if condition must be bool, found %s", cond)
	}
	c.checkBlock(s.Consequence)
	if s.Alternative != nil {
		c.checkStmt(s.Alternative)
	}
}

func (c *Checker) checkBlock(b *parser.BlockStmt) {
	c.table.Push()
	defer c.table.Pop()
	for _, stmt := range b.Statements {
		c.checkStmt(stmt)
	}
}
