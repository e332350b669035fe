package compiler

import (
	"fmt"

	"monkey/internal/bytecode"
	"monkey/internal/parser"
	"monkey/internal/symbols"
	"monkey/internal/types"
)

// compileExpr emits code leaving exactly one value on the stack.
func (c *Compiler) compileExpr(e parser.Expr) {
	c.pos = e.Pos()
	switch e := e.(type) {
	case *parser.IntLiteral:
		c.emit(bytecode.OpConstant, c.constant(e.Value))
	case *parser.StringLiteral:
		c.emit(bytecode.OpConstant, c.constant(e.Value))
	case *parser.BoolLiteral:
		c.emit(bytecode.OpConstant, c.constant(e.Value))
	case *parser.CharLiteral:
		c.emit(bytecode.OpConstant, c.constant(e.Value))

	case *parser.Identifier:
		c.loadSymbol(c.info.Uses[e])

	case *parser.ArrayLiteral:
		c.emit(bytecode.OpArray)
		for _, el := range e.Elements {
			c.compileExpr(el)
			c.emit(bytecode.OpArrayAppend)
		}

	case *parser.HashLiteral:
		c.emit(bytecode.OpHash)
		for _, pair := range e.Pairs {
			c.compileExpr(pair.Key)
			c.compileExpr(pair.Value)
			c.emit(bytecode.OpHashInsert)
		}

	case *parser.FunctionLiteral:
		c.compileLiteral(e)

	case *parser.CallExpr:
		c.compileCall(e)

	case *parser.IndexExpr:
		c.compileIndex(e)

	case *parser.InfixExpr:
		c.compileInfix(e)

	default:
		panic(fmt.Sprintf("unexpected expression %T", e))
	}
}

func (c *Compiler) loadSymbol(sym *symbols.Symbol) {
	if sym == nil {
		panic("identifier without a resolved symbol")
	}
	kind, idx := c.resolve(c.current, sym)
	switch kind {
	case refLocal:
		c.emit(bytecode.OpGetLocal, idx)
	case refGlobal:
		c.emit(bytecode.OpGetGlobal, idx)
	case refFunction:
		c.emit(bytecode.OpFunction, idx)
	}
}

// compileLiteral emits a function literal as its own function and pushes
// either a plain function value or a closure over copies of the outer
// locals it uses.
func (c *Compiler) compileLiteral(lit *parser.FunctionLiteral) {
	fnType := c.info.TypeOf(lit)
	c.literals++
	name := fmt.Sprintf("%s$fn%d", c.current.fn.Name, c.literals)
	idx, err := c.module.Declare(name, fnType.Params, fnType.Return)
	if err != nil {
		panic(err)
	}

	scope := c.compileFunction(c.module.Functions[idx], lit.Params, lit.Body)
	c.pos = lit.Pos()
	if len(scope.captured) == 0 {
		c.emit(bytecode.OpFunction, idx)
		return
	}
	for _, sym := range scope.captured {
		c.loadSymbol(sym)
	}
	c.pos = lit.Pos()
	c.emit(bytecode.OpClosure, idx, len(scope.captured))
}

func (c *Compiler) compileCall(call *parser.CallExpr) {
	if id, ok := call.Callee.(*parser.Identifier); ok {
		sym := c.info.Uses[id]
		switch {
		case sym != nil && sym.Category == symbols.BuiltIn:
			c.compileBuiltinCall(id.Name, call)
			return
		case sym != nil && sym.Category == symbols.Function:
			for _, arg := range call.Args {
				c.compileExpr(arg)
			}
			c.pos = call.Pos()
			c.emit(bytecode.OpCall, c.functions[sym], len(call.Args))
			return
		}
	}

	c.compileExpr(call.Callee)
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	c.pos = call.Pos()
	c.emit(bytecode.OpCallValue, len(call.Args))
}

func (c *Compiler) compileBuiltinCall(name string, call *parser.CallExpr) {
	id, ok := bytecode.BuiltinID(name)
	if !ok {
		panic("unknown builtin " + name)
	}
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	c.pos = call.Pos()
	c.emit(bytecode.OpCallBuiltin, int(id), len(call.Args))
	if name == "first" || name == "last" {
		c.emitUnbox(c.info.TypeOf(call))
	}
}

func (c *Compiler) compileIndex(ix *parser.IndexExpr) {
	c.compileExpr(ix.Target)
	c.compileExpr(ix.Index)
	c.pos = ix.Pos()
	switch c.info.TypeOf(ix.Target).Kind {
	case types.KindArray:
		c.emit(bytecode.OpIndexArray)
		c.emitUnbox(c.info.TypeOf(ix))
	case types.KindHash:
		c.emit(bytecode.OpIndexHash)
		c.emitUnbox(c.info.TypeOf(ix))
	case types.KindString:
		c.emit(bytecode.OpIndexString)
	default:
		c.emit(bytecode.OpIndex)
	}
}

func (c *Compiler) compileInfix(in *parser.InfixExpr) {
	c.compileExpr(in.Left)
	c.compileExpr(in.Right)
	c.pos = in.Pos()

	left, right := c.info.TypeOf(in.Left), c.info.TypeOf(in.Right)
	switch in.Operator {
	case "+":
		switch {
		case left.Kind == types.KindInt && right.Kind == types.KindInt:
			c.emit(bytecode.OpAddInt)
		case left.Kind == types.KindString && right.Kind == types.KindString:
			c.emit(bytecode.OpConcat)
		default:
			c.emit(bytecode.OpAdd)
		}
	case "-":
		c.emit(bytecode.OpSub)
	case "*":
		c.emit(bytecode.OpMul)
	case "/":
		c.emit(bytecode.OpDiv)
	case "<":
		c.emit(bytecode.OpLess)
	case "<=":
		c.emit(bytecode.OpLessEqual)
	case ">":
		c.emit(bytecode.OpGreater)
	case ">=":
		c.emit(bytecode.OpGreaterEqual)
	case "==":
		c.emit(bytecode.OpEqual)
	case "!=":
		c.emit(bytecode.OpNotEqual)
	default:
		panic("unknown operator " + in.Operator)
	}
}
