// Package checker implements static type checking of Monkey programs.
package checker

import (
	"fmt"
	"sort"

	"monkey/internal/errors"
	"monkey/internal/parser"
	"monkey/internal/symbols"
	"monkey/internal/types"
)

// Result is the outcome of Check. Success is true iff Errors is empty.
type Result struct {
	Success bool
	Errors  []string
}

// Info records what the checker learned about a program. The code
// generator relies on it for operator dispatch, boxing and name resolution.
type Info struct {
	// Types holds the static type of every checked expression.
	Types map[parser.Expr]*types.Type
	// Defs maps declaring nodes (*LetStmt, *Param, *FunctionDecl) to the
	// symbol they introduce.
	Defs map[parser.Node]*symbols.Symbol
	// Uses maps identifiers to the symbol they resolve to.
	Uses map[*parser.Identifier]*symbols.Symbol
}

// TypeOf returns the recorded type of e, or Any.
func (info *Info) TypeOf(e parser.Expr) *types.Type {
	if t, ok := info.Types[e]; ok {
		return t
	}
	return types.Any
}

// Checker holds per-run state. The zero value is not usable; call New.
type Checker struct {
	table       *symbols.Table
	diagnostics []*errors.Diagnostic
	returns     []*types.Type
	info        *Info
}

func New() *Checker {
	return &Checker{}
}

// Check type checks prog using a fresh Checker.
func Check(prog *parser.Program) Result {
	return New().Check(prog)
}

// Check type checks prog. All state from a previous call is discarded.
func (c *Checker) Check(prog *parser.Program) Result {
	c.run(prog)
	return Result{
		Success: len(c.diagnostics) == 0,
		Errors:  errors.Strings(c.diagnostics),
	}
}

// Diagnostics returns the diagnostics of the last Check as values.
func (c *Checker) Diagnostics() []*errors.Diagnostic {
	return c.diagnostics
}

// Info returns the facts recorded by the last Check.
func (c *Checker) Info() *Info {
	return c.info
}

// Analyze checks prog and returns its Info together with any diagnostics.
func Analyze(prog *parser.Program) (*Info, []*errors.Diagnostic) {
	c := New()
	c.run(prog)
	return c.info, c.diagnostics
}

func (c *Checker) run(prog *parser.Program) {
	c.table = symbols.NewTable()
	c.diagnostics = nil
	c.returns = nil
	c.info = &Info{
		Types: make(map[parser.Expr]*types.Type),
		Defs:  make(map[parser.Node]*symbols.Symbol),
		Uses:  make(map[*parser.Identifier]*symbols.Symbol),
	}
	if prog == nil {
		return
	}

	decls := prog.Functions
	if prog.Main != nil {
		decls = append(decls[:len(decls):len(decls)], prog.Main)
	}

	// Phase 1: every signature is visible before any body is checked.
	// Signatures are declared in source order so a duplicate is reported
	// on the later declaration, main included.
	ordered := append([]*parser.FunctionDecl(nil), decls...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].At, ordered[j].At
		return a.Line < b.Line || (a.Line == b.Line && a.Column < b.Column)
	})
	for _, fn := range ordered {
		c.declareFunction(fn)
	}
	if prog.Main != nil && len(prog.Main.Params) > 0 {
		c.errorf(prog.Main, "main must not declare parameters")
	}

	// Phase 2: globals, then bodies in declaration order, then main.
	for _, stmt := range prog.Globals {
		c.checkStmt(stmt)
	}
	for _, fn := range decls {
		c.checkFunction(fn)
	}
}

func (c *Checker) declareFunction(fn *parser.FunctionDecl) {
	params := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = c.resolveType(p.Type)
	}
	sym := &symbols.Symbol{
		Name:     fn.Name,
		Type:     types.FunctionOf(params, c.resolveType(fn.ReturnType)),
		Category: symbols.Function,
		IsConst:  true,
	}
	if err := c.table.Declare(sym); err != nil {
		c.errorf(fn, "function '%s' is already declared", fn.Name)
		return
	}
	c.info.Defs[fn] = sym
}

func (c *Checker) checkFunction(fn *parser.FunctionDecl) {
	var ret *types.Type
	if sym, ok := c.info.Defs[fn]; ok {
		ret = sym.Type.Return
	} else {
		ret = c.resolveType(fn.ReturnType)
	}
	c.checkBody(fn.Params, ret, fn.Body)
}

// checkBody checks a function or function-literal body in a new scope
// holding its parameters.
func (c *Checker) checkBody(params []*parser.Param, ret *types.Type, body *parser.BlockStmt) []*types.Type {
	c.table.Push()
	c.returns = append(c.returns, ret)
	defer func() {
		c.returns = c.returns[:len(c.returns)-1]
		c.table.Pop()
	}()

	paramTypes := make([]*types.Type, len(params))
	for i, p := range params {
		t := c.resolveType(p.Type)
		paramTypes[i] = t
		if t.Kind == types.KindVoid {
			c.errorf(p, "parameter '%s' cannot have type void", p.Name)
		}
		sym := &symbols.Symbol{Name: p.Name, Type: t, Category: symbols.Variable, IsParameter: true}
		if err := c.table.Declare(sym); err != nil {
			c.errorf(p, "'%s' is already declared in this scope", p.Name)
			continue
		}
		c.info.Defs[p] = sym
	}
	for _, stmt := range body.Statements {
		c.checkStmt(stmt)
	}
	return paramTypes
}

// resolveType converts a type annotation into a descriptor.
func (c *Checker) resolveType(t parser.TypeExpr) *types.Type {
	switch t := t.(type) {
	case *parser.NamedType:
		switch t.Name {
		case "int":
			return types.Int
		case "string":
			return types.String
		case "bool":
			return types.Bool
		case "char":
			return types.Char
		case "void":
			return types.Void
		}
	case *parser.ArrayType:
		return types.ArrayOf(c.resolveType(t.Elem))
	case *parser.HashType:
		return types.HashOf(c.resolveType(t.Key), c.resolveType(t.Value))
	case *parser.FunctionType:
		params := make([]*types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveType(p)
		}
		return types.FunctionOf(params, c.resolveType(t.Return))
	}
	panic(fmt.Sprintf("checker: malformed type annotation %T", t))
}

func (c *Checker) errorf(n parser.Node, format string, args ...interface{}) {
	pos := n.Pos()
	c.diagnostics = append(c.diagnostics, errors.NewSemanticError(fmt.Sprintf(format, args...), pos.Line, pos.Column))
}
