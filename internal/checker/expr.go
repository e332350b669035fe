package checker

import (
	"fmt"

	"monkey/internal/parser"
	"monkey/internal/symbols"
	"monkey/internal/types"
)

// checkExpr types e, records the result and returns it. Errors yield Any so
// checking continues without cascading.
func (c *Checker) checkExpr(e parser.Expr) *types.Type {
	t := c.typeOf(e)
	c.info.Types[e] = t
	return t
}

func (c *Checker) typeOf(e parser.Expr) *types.Type {
	switch e := e.(type) {
	case *parser.IntLiteral:
		return types.Int
	case *parser.StringLiteral:
		return types.String
	case *parser.BoolLiteral:
		return types.Bool
	case *parser.CharLiteral:
		return types.Char
	case *parser.Identifier:
		return c.checkIdentifier(e)
	case *parser.ArrayLiteral:
		return c.checkArray(e)
	case *parser.HashLiteral:
		return c.checkHash(e)
	case *parser.FunctionLiteral:
		ret := c.resolveType(e.ReturnType)
		params := c.checkBody(e.Params, ret, e.Body)
		return types.FunctionOf(params, ret)
	case *parser.CallExpr:
		return c.checkCall(e)
	case *parser.IndexExpr:
		return c.checkIndex(e)
	case *parser.InfixExpr:
		return c.checkInfix(e)
	}
	panic(fmt.Sprintf("checker: unexpected expression %T", e))
}

func (c *Checker) checkIdentifier(id *parser.Identifier) *types.Type {
	sym, ok := c.table.Lookup(id.Name)
	if !ok {
		c.errorf(id, "'%s' used before declared", id.Name)
		return types.Any
	}
	if sym.Category == symbols.BuiltIn {
		c.errorf(id, "builtin '%s' must be called", id.Name)
		return types.Any
	}
	c.info.Uses[id] = sym
	return sym.Type
}

func (c *Checker) checkArray(lit *parser.ArrayLiteral) *types.Type {
	if len(lit.Elements) == 0 {
		return types.ArrayOf(types.Any)
	}
	anchor := c.checkExpr(lit.Elements[0])
	mismatched := false
	for _, el := range lit.Elements[1:] {
		t := c.checkExpr(el)
		if !mismatched && !types.Compatible(anchor, t) {
			c.errorf(el, "array elements must share a type: expected %s, found %s", anchor, t)
			mismatched = true
		}
	}
	return types.ArrayOf(anchor)
}

func (c *Checker) checkHash(lit *parser.HashLiteral) *types.Type {
	if len(lit.Pairs) == 0 {
		return types.HashOf(types.Any, types.Any)
	}
	key := c.checkExpr(lit.Pairs[0].Key)
	value := c.checkExpr(lit.Pairs[0].Value)
	badKey, badValue := false, false
	for _, pair := range lit.Pairs[1:] {
		k := c.checkExpr(pair.Key)
		v := c.checkExpr(pair.Value)
		if !badKey && !types.Compatible(key, k) {
			c.errorf(pair.Key, "hash keys must share a type: expected %s, found %s", key, k)
			badKey = true
		}
		if !badValue && !types.Compatible(value, v) {
			c.errorf(pair.Value, "hash values must share a type: expected %s, found %s", value, v)
			badValue = true
		}
	}
	return types.HashOf(key, value)
}

func (c *Checker) checkCall(call *parser.CallExpr) *types.Type {
	if id, ok := call.Callee.(*parser.Identifier); ok {
		sym, found := c.table.Lookup(id.Name)
		if !found {
			// Nothing is known about the callee; checking its arguments
			// against a guessed signature would only produce noise.
			c.errorf(id, "'%s' used before declared", id.Name)
			return types.Any
		}
		if sym.Category == symbols.BuiltIn {
			c.info.Uses[id] = sym
			return c.checkBuiltin(id.Name, call)
		}
	}

	callee := c.checkExpr(call.Callee)
	argTypes := make([]*types.Type, len(call.Args))
	for i, arg := range call.Args {
		argTypes[i] = c.checkExpr(arg)
	}
	if callee.Kind == types.KindAny {
		return types.Any
	}
	if callee.Kind != types.KindFunction {
		c.errorf(call, "cannot call a value of type %s", callee)
		return types.Any
	}

	name := calleeName(call.Callee)
	if len(call.Args) != len(callee.Params) {
		c.errorf(call, "wrong number of arguments to %s: expected %d, found %d", name, len(callee.Params), len(call.Args))
		return callee.Return
	}
	for i, want := range callee.Params {
		if !types.Compatible(want, argTypes[i]) {
			c.errorf(call.Args[i], "argument %d of %s: expected %s, found %s", i+1, name, want, argTypes[i])
		}
	}
	return callee.Return
}

func calleeName(e parser.Expr) string {
	if id, ok := e.(*parser.Identifier); ok {
		return id.Name
	}
	return "function"
}

func (c *Checker) checkIndex(ix *parser.IndexExpr) *types.Type {
	target := c.checkExpr(ix.Target)
	index := c.checkExpr(ix.Index)
	switch target.Kind {
	case types.KindArray:
		if !types.Compatible(types.Int, index) {
			c.errorf(ix, "cannot index %s with %s: expected int", target, index)
		}
		return target.Elem
	case types.KindHash:
		if !types.Compatible(target.Key, index) {
			c.errorf(ix, "cannot index %s with %s: expected %s", target, index, target.Key)
		}
		return target.Value
	case types.KindString:
		if !types.Compatible(types.Int, index) {
			c.errorf(ix, "cannot index string with %s: expected int", index)
		}
		return types.Char
	case types.KindAny:
		return types.Any
	}
	c.errorf(ix, "type %s is not indexable", target)
	return types.Any
}

func (c *Checker) checkInfix(in *parser.InfixExpr) *types.Type {
	left := c.checkExpr(in.Left)
	right := c.checkExpr(in.Right)
	eitherAny := left.Kind == types.KindAny || right.Kind == types.KindAny

	switch in.Operator {
	case "+", "-", "*", "/":
		switch {
		case left.Kind == types.KindInt && right.Kind == types.KindInt:
			return types.Int
		case in.Operator == "+" && left.Kind == types.KindString && right.Kind == types.KindString:
			return types.String
		case eitherAny:
			return types.Any
		}
		c.errorf(in, "operator %s not defined for %s and %s", in.Operator, left, right)
		return types.Any
	case "<", "<=", ">", ">=":
		if !types.Compatible(types.Int, left) || !types.Compatible(types.Int, right) {
			c.errorf(in, "operator %s requires int operands, found %s and %s", in.Operator, left, right)
		}
		return types.Bool
	case "==", "!=":
		if !types.Compatible(left, right) {
			c.errorf(in, "cannot compare %s with %s", left, right)
		}
		return types.Bool
	}
	panic(fmt.Sprintf("checker: unknown operator %q", in.Operator))
}
