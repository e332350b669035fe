package vm

import (
	"fmt"
	"unicode/utf8"

	"monkey/internal/bytecode"
)

// NativeFunction represents a built-in function
type NativeFunction struct {
	Name     string
	Arity    int
	Function func(args []Value) Value
}

var builtins = [...]*NativeFunction{
	bytecode.BuiltinLen:   {Name: "len", Arity: 1, Function: builtinLen},
	bytecode.BuiltinFirst: {Name: "first", Arity: 1, Function: builtinFirst},
	bytecode.BuiltinLast:  {Name: "last", Arity: 1, Function: builtinLast},
	bytecode.BuiltinRest:  {Name: "rest", Arity: 1, Function: builtinRest},
	bytecode.BuiltinPush:  {Name: "push", Arity: 2, Function: builtinPush},
}

// CallBuiltin invokes the built-in with the given identifier.
func CallBuiltin(id byte, args []Value) (Value, error) {
	if int(id) >= len(builtins) {
		return nil, fmt.Errorf("unknown builtin %d", id)
	}
	b := builtins[id]
	if len(args) != b.Arity {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", b.Name, b.Arity, len(args))
	}
	return b.Function(args), nil
}

func builtinLen(args []Value) Value {
	switch arg := args[0].(type) {
	case String:
		return Int(utf8.RuneCountInString(string(arg)))
	case *Array:
		return Int(len(arg.Elements))
	}
	return Int(0)
}

func builtinFirst(args []Value) Value {
	switch arg := args[0].(type) {
	case String:
		for _, r := range string(arg) {
			return Char(r)
		}
	case *Array:
		if len(arg.Elements) > 0 {
			return arg.Elements[0]
		}
	}
	return Null{}
}

func builtinLast(args []Value) Value {
	switch arg := args[0].(type) {
	case String:
		if r, size := utf8.DecodeLastRuneInString(string(arg)); size > 0 {
			return Char(r)
		}
	case *Array:
		if n := len(arg.Elements); n > 0 {
			return arg.Elements[n-1]
		}
	}
	return Null{}
}

// builtinRest drops the first element into a new value. Inputs with at
// most one element are returned unchanged.
func builtinRest(args []Value) Value {
	switch arg := args[0].(type) {
	case String:
		runes := []rune(string(arg))
		if len(runes) > 1 {
			return String(runes[1:])
		}
	case *Array:
		if len(arg.Elements) > 1 {
			rest := make([]Value, len(arg.Elements)-1)
			copy(rest, arg.Elements[1:])
			return &Array{Elements: rest}
		}
	}
	return args[0]
}

// builtinPush appends to the array in place and returns the same array.
// Other containers are returned unchanged.
func builtinPush(args []Value) Value {
	if arr, ok := args[0].(*Array); ok {
		arr.Elements = append(arr.Elements, args[1])
		return arr
	}
	return args[0]
}
