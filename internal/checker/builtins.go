package checker

import (
	"monkey/internal/parser"
	"monkey/internal/types"
)

// checkBuiltin applies the per-builtin typing rules. Arguments are always
// checked so that their own diagnostics are reported.
func (c *Checker) checkBuiltin(name string, call *parser.CallExpr) *types.Type {
	args := make([]*types.Type, len(call.Args))
	for i, arg := range call.Args {
		args[i] = c.checkExpr(arg)
	}

	switch name {
	case "len":
		if len(args) != 1 {
			c.errorf(call, "len expects 1 argument, found %d", len(args))
			return types.Int
		}
		switch args[0].Kind {
		case types.KindArray, types.KindString, types.KindAny:
		default:
			c.errorf(call.Args[0], "len expects an array or string, found %s", args[0])
		}
		return types.Int

	case "first", "last":
		if len(args) != 1 {
			c.errorf(call, "%s expects 1 argument, found %d", name, len(args))
			return types.Any
		}
		switch args[0].Kind {
		case types.KindArray:
			return args[0].Elem
		case types.KindAny:
			return types.Any
		}
		c.errorf(call.Args[0], "%s expects an array, found %s", name, args[0])
		return types.Any

	case "rest":
		if len(args) != 1 {
			c.errorf(call, "rest expects 1 argument, found %d", len(args))
			return types.Any
		}
		switch args[0].Kind {
		case types.KindArray, types.KindAny:
			return args[0]
		}
		c.errorf(call.Args[0], "rest expects an array, found %s", args[0])
		return types.Any

	case "push":
		if len(args) != 2 {
			c.errorf(call, "push expects 2 arguments, found %d", len(args))
			return types.Any
		}
		switch args[0].Kind {
		case types.KindArray:
			if !types.Compatible(args[0].Elem, args[1]) {
				c.errorf(call.Args[1], "cannot push %s onto %s", args[1], args[0])
			}
			return args[0]
		case types.KindAny:
			return types.Any
		}
		c.errorf(call.Args[0], "push expects an array as its first argument, found %s", args[0])
		return types.Any
	}
	c.errorf(call, "unknown builtin '%s'", name)
	return types.Any
}
