// Package symbols implements the lexically scoped symbol table used by the
// type checker.
package symbols

import (
	"errors"

	"monkey/internal/types"
)

// Category separates user variables from functions and built-ins.
type Category int

const (
	Variable Category = iota
	Function
	BuiltIn
)

func (c Category) String() string {
	switch c {
	case Function:
		return "function"
	case BuiltIn:
		return "builtin"
	default:
		return "variable"
	}
}

// Symbol is the compile-time record of a declared name. Symbols are
// compared by pointer: two declarations of the same name are distinct.
type Symbol struct {
	Name        string
	Type        *types.Type
	Category    Category
	IsConst     bool
	IsParameter bool
	// Depth is the scope depth the symbol was declared at; 0 is global.
	Depth int
}

// ErrRedeclared is returned by Declare when the name already exists in the
// innermost scope.
var ErrRedeclared = errors.New("symbol already declared in this scope")

// BuiltinNames lists the built-in functions in their canonical order.
var BuiltinNames = []string{"len", "first", "last", "rest", "push"}

type scope map[string]*Symbol

// Table is a LIFO stack of scopes. Index 0 is the global scope.
type Table struct {
	scopes []scope
}

// NewTable returns a table holding only the global scope, pre-populated
// with the built-in functions.
func NewTable() *Table {
	t := &Table{scopes: []scope{{}}}
	for _, name := range BuiltinNames {
		t.scopes[0][name] = &Symbol{
			Name:     name,
			Type:     types.FunctionOf(nil, types.Any),
			Category: BuiltIn,
			IsConst:  true,
		}
	}
	return t
}

func (t *Table) Push() {
	t.scopes = append(t.scopes, scope{})
}

// Pop discards the innermost scope. The global scope is never popped.
func (t *Table) Pop() {
	if len(t.scopes) == 1 {
		panic("symbols: pop of global scope")
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// Depth returns the index of the innermost scope.
func (t *Table) Depth() int {
	return len(t.scopes) - 1
}

// Declare adds sym to the innermost scope.
func (t *Table) Declare(sym *Symbol) error {
	current := t.scopes[len(t.scopes)-1]
	if _, exists := current[sym.Name]; exists {
		return ErrRedeclared
	}
	sym.Depth = t.Depth()
	current[sym.Name] = sym
	return nil
}

// Lookup resolves name from the innermost scope outwards.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if sym, ok := t.scopes[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupCurrent resolves name in the innermost scope only.
func (t *Table) LookupCurrent(name string) (*Symbol, bool) {
	sym, ok := t.scopes[len(t.scopes)-1][name]
	return sym, ok
}
