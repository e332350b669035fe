// Package formatter prints a parsed program back as canonical source.
package formatter

import (
	"sort"
	"strconv"
	"strings"

	"monkey/internal/errors"
	"monkey/internal/parser"
)

type Formatter struct {
	indent    int
	indentStr string
	output    strings.Builder
	lineBreak string
}

func NewFormatter() *Formatter {
	return &Formatter{
		indentStr: "    ",
		lineBreak: "\n",
	}
}

// Source parses and formats src. Nothing is formatted when src has
// lexical or syntax errors.
func Source(src string) (string, []*errors.Diagnostic) {
	prog, diags := parser.Parse(src)
	if len(diags) > 0 {
		return "", diags
	}
	return NewFormatter().Format(prog), nil
}

// Format renders prog with top-level items in source order.
func (f *Formatter) Format(prog *parser.Program) string {
	f.output.Reset()
	f.indent = 0
	if prog == nil {
		return ""
	}

	var items []parser.Node
	for _, fn := range prog.Functions {
		items = append(items, fn)
	}
	for _, stmt := range prog.Globals {
		items = append(items, stmt)
	}
	if prog.Main != nil {
		items = append(items, prog.Main)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Pos(), items[j].Pos()
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	for i, item := range items {
		if i > 0 && f.needsBlankLine(items[i-1], item) {
			f.output.WriteString(f.lineBreak)
		}
		switch n := item.(type) {
		case *parser.FunctionDecl:
			f.formatFunction(n)
		case parser.Stmt:
			f.formatStmt(n)
		}
	}
	return f.output.String()
}

// Function declarations are separated from their neighbours by a blank line.
func (f *Formatter) needsBlankLine(curr, next parser.Node) bool {
	_, currIsFunc := curr.(*parser.FunctionDecl)
	_, nextIsFunc := next.(*parser.FunctionDecl)
	return currIsFunc || nextIsFunc
}

func (f *Formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.output.WriteString(f.indentStr)
	}
}

func (f *Formatter) formatFunction(fn *parser.FunctionDecl) {
	f.writeIndent()
	f.output.WriteString("fn ")
	f.output.WriteString(fn.Name)
	f.formatSignature(fn.Params, fn.ReturnType)
	f.output.WriteString(" ")
	f.formatBlock(fn.Body)
	f.output.WriteString(f.lineBreak)
}

func (f *Formatter) formatSignature(params []*parser.Param, ret parser.TypeExpr) {
	f.output.WriteString("(")
	for i, p := range params {
		if i > 0 {
			f.output.WriteString(", ")
		}
		f.output.WriteString(p.Name)
		f.output.WriteString(": ")
		f.formatType(p.Type)
	}
	f.output.WriteString("): ")
	f.formatType(ret)
}

// formatBlock writes a braced block without the trailing line break.
func (f *Formatter) formatBlock(b *parser.BlockStmt) {
	if len(b.Statements) == 0 {
		f.output.WriteString("{}")
		return
	}
	f.output.WriteString("{")
	f.output.WriteString(f.lineBreak)
	f.indent++
	for _, stmt := range b.Statements {
		f.formatStmt(stmt)
	}
	f.indent--
	f.writeIndent()
	f.output.WriteString("}")
}

func (f *Formatter) formatStmt(stmt parser.Stmt) {
	if stmt == nil {
		return
	}
	f.writeIndent()

	switch s := stmt.(type) {
	case *parser.LetStmt:
		if s.Const {
			f.output.WriteString("const ")
		} else {
			f.output.WriteString("let ")
		}
		f.output.WriteString(s.Name)
		f.output.WriteString(": ")
		f.formatType(s.Type)
		f.output.WriteString(" = ")
		f.formatExpr(s.Value)

	case *parser.ReturnStmt:
		f.output.WriteString("return")
		if s.Value != nil {
			f.output.WriteString(" ")
			f.formatExpr(s.Value)
		}

	case *parser.IfStmt:
		f.formatIf(s)

	case *parser.BlockStmt:
		f.formatBlock(s)

	case *parser.PrintStmt:
		f.output.WriteString("print(")
		f.formatExpr(s.Value)
		f.output.WriteString(")")

	case *parser.ExpressionStmt:
		// A statement starting with '{' would parse as a block.
		if _, ok := s.Expr.(*parser.HashLiteral); ok {
			f.output.WriteString("(")
			f.formatExpr(s.Expr)
			f.output.WriteString(")")
		} else {
			f.formatExpr(s.Expr)
		}
	}
	f.output.WriteString(f.lineBreak)
}

func (f *Formatter) formatIf(s *parser.IfStmt) {
	f.output.WriteString("if ")
	f.formatExpr(s.Condition)
	f.output.WriteString(" ")
	f.formatBlock(s.Consequence)
	switch alt := s.Alternative.(type) {
	case *parser.IfStmt:
		f.output.WriteString(" else ")
		f.formatIf(alt)
	case *parser.BlockStmt:
		f.output.WriteString(" else ")
		f.formatBlock(alt)
	}
}

var precedence = map[string]int{
	"==": 1, "!=": 1,
	"<": 2, ">": 2, "<=": 2, ">=": 2,
	"+": 3, "-": 3,
	"*": 4, "/": 4,
}

const precPostfix = 5

func exprPrec(e parser.Expr) int {
	if in, ok := e.(*parser.InfixExpr); ok {
		return precedence[in.Operator]
	}
	return precPostfix + 1
}

// formatOperand parenthesizes e when it binds looser than min.
func (f *Formatter) formatOperand(e parser.Expr, min int) {
	if exprPrec(e) < min {
		f.output.WriteString("(")
		f.formatExpr(e)
		f.output.WriteString(")")
		return
	}
	f.formatExpr(e)
}

func (f *Formatter) formatExpr(expr parser.Expr) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *parser.InfixExpr:
		prec := precedence[e.Operator]
		// Operators are left associative.
		f.formatOperand(e.Left, prec)
		f.output.WriteString(" ")
		f.output.WriteString(e.Operator)
		f.output.WriteString(" ")
		f.formatOperand(e.Right, prec+1)

	case *parser.Identifier:
		f.output.WriteString(e.Name)

	case *parser.IntLiteral:
		f.output.WriteString(strconv.FormatInt(e.Value, 10))

	case *parser.BoolLiteral:
		f.output.WriteString(strconv.FormatBool(e.Value))

	case *parser.StringLiteral:
		f.output.WriteString(quote(e.Value, '"'))

	case *parser.CharLiteral:
		f.output.WriteString(quote(string(e.Value), '\''))

	case *parser.CallExpr:
		if _, ok := e.Callee.(*parser.FunctionLiteral); ok {
			f.output.WriteString("(")
			f.formatExpr(e.Callee)
			f.output.WriteString(")")
		} else {
			f.formatOperand(e.Callee, precPostfix)
		}
		f.output.WriteString("(")
		for i, arg := range e.Args {
			if i > 0 {
				f.output.WriteString(", ")
			}
			f.formatExpr(arg)
		}
		f.output.WriteString(")")

	case *parser.IndexExpr:
		f.formatOperand(e.Target, precPostfix)
		f.output.WriteString("[")
		f.formatExpr(e.Index)
		f.output.WriteString("]")

	case *parser.ArrayLiteral:
		f.output.WriteString("[")
		for i, elem := range e.Elements {
			if i > 0 {
				f.output.WriteString(", ")
			}
			f.formatExpr(elem)
		}
		f.output.WriteString("]")

	case *parser.HashLiteral:
		f.output.WriteString("{")
		for i, pair := range e.Pairs {
			if i > 0 {
				f.output.WriteString(", ")
			}
			f.formatExpr(pair.Key)
			f.output.WriteString(": ")
			f.formatExpr(pair.Value)
		}
		f.output.WriteString("}")

	case *parser.FunctionLiteral:
		f.output.WriteString("fn")
		f.formatSignature(e.Params, e.ReturnType)
		f.output.WriteString(" ")
		f.formatBlock(e.Body)
	}
}

func (f *Formatter) formatType(t parser.TypeExpr) {
	switch t := t.(type) {
	case *parser.NamedType:
		f.output.WriteString(t.Name)
	case *parser.ArrayType:
		f.output.WriteString("array<")
		f.formatType(t.Elem)
		f.output.WriteString(">")
	case *parser.HashType:
		f.output.WriteString("hash<")
		f.formatType(t.Key)
		f.output.WriteString(", ")
		f.formatType(t.Value)
		f.output.WriteString(">")
	case *parser.FunctionType:
		f.output.WriteString("fn(")
		for i, p := range t.Params {
			if i > 0 {
				f.output.WriteString(", ")
			}
			f.formatType(p)
		}
		f.output.WriteString("): ")
		f.formatType(t.Return)
	}
}

// quote writes s between delim using only the escapes the scanner reads.
func quote(s string, delim byte) string {
	var sb strings.Builder
	sb.WriteByte(delim)
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		case '\\':
			sb.WriteString(`\\`)
		case rune(delim):
			sb.WriteByte('\\')
			sb.WriteByte(delim)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(delim)
	return sb.String()
}
