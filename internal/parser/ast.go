package parser

// Pos is a source position; Column is 1-based.
type Pos struct {
	Line   int
	Column int
}

// Node is implemented by every AST node.
type Node interface {
	Pos() Pos
}

// Stmt is the closed set of statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the closed set of expression nodes.
type Expr interface {
	Node
	exprNode()
}

// TypeExpr is a type annotation as written in source.
type TypeExpr interface {
	Node
	typeNode()
}

// Program is the root of a parsed source file. Main is the `fn main`
// declaration and is not repeated in Functions.
type Program struct {
	Functions []*FunctionDecl
	Globals   []Stmt
	Main      *FunctionDecl
}

type Param struct {
	At   Pos
	Name string
	Type TypeExpr
}

func (p *Param) Pos() Pos { return p.At }

type FunctionDecl struct {
	At         Pos
	Name       string
	Params     []*Param
	ReturnType TypeExpr
	Body       *BlockStmt
}

func (f *FunctionDecl) Pos() Pos { return f.At }

// Statements

// Let statement: let x:int = 5 (or const x:int = 5)
type LetStmt struct {
	At    Pos
	Name  string
	Type  TypeExpr
	Value Expr
	Const bool
}

// Return statement; Value is nil for a bare return.
type ReturnStmt struct {
	At    Pos
	Value Expr
}

type ExpressionStmt struct {
	At   Pos
	Expr Expr
}

// If statement. Alternative is nil, a *BlockStmt, or an *IfStmt for else-if.
type IfStmt struct {
	At          Pos
	Condition   Expr
	Consequence *BlockStmt
	Alternative Stmt
}

type BlockStmt struct {
	At         Pos
	Statements []Stmt
}

type PrintStmt struct {
	At    Pos
	Value Expr
}

func (s *LetStmt) Pos() Pos        { return s.At }
func (s *ReturnStmt) Pos() Pos     { return s.At }
func (s *ExpressionStmt) Pos() Pos { return s.At }
func (s *IfStmt) Pos() Pos         { return s.At }
func (s *BlockStmt) Pos() Pos      { return s.At }
func (s *PrintStmt) Pos() Pos      { return s.At }

func (*LetStmt) stmtNode()        {}
func (*ReturnStmt) stmtNode()     {}
func (*ExpressionStmt) stmtNode() {}
func (*IfStmt) stmtNode()         {}
func (*BlockStmt) stmtNode()      {}
func (*PrintStmt) stmtNode()      {}

// Expressions

type Identifier struct {
	At   Pos
	Name string
}

type IntLiteral struct {
	At    Pos
	Value int64
}

type StringLiteral struct {
	At    Pos
	Value string
}

type BoolLiteral struct {
	At    Pos
	Value bool
}

type CharLiteral struct {
	At    Pos
	Value rune
}

// Array literal: [1, 2, 3]
type ArrayLiteral struct {
	At       Pos
	Elements []Expr
}

type HashPair struct {
	Key   Expr
	Value Expr
}

// Hash literal: {"a": 1, "b": 2}
type HashLiteral struct {
	At    Pos
	Pairs []HashPair
}

// Function literal: fn(a:int):int { return a }
type FunctionLiteral struct {
	At         Pos
	Params     []*Param
	ReturnType TypeExpr
	Body       *BlockStmt
}

// Call expression: callee(args...)
type CallExpr struct {
	At     Pos
	Callee Expr
	Args   []Expr
}

// Index expression: target[index]
type IndexExpr struct {
	At     Pos
	Target Expr
	Index  Expr
}

// Infix expression: a + b
type InfixExpr struct {
	At       Pos
	Left     Expr
	Operator string
	Right    Expr
}

func (e *Identifier) Pos() Pos      { return e.At }
func (e *IntLiteral) Pos() Pos      { return e.At }
func (e *StringLiteral) Pos() Pos   { return e.At }
func (e *BoolLiteral) Pos() Pos     { return e.At }
func (e *CharLiteral) Pos() Pos     { return e.At }
func (e *ArrayLiteral) Pos() Pos    { return e.At }
func (e *HashLiteral) Pos() Pos     { return e.At }
func (e *FunctionLiteral) Pos() Pos { return e.At }
func (e *CallExpr) Pos() Pos        { return e.At }
func (e *IndexExpr) Pos() Pos       { return e.At }
func (e *InfixExpr) Pos() Pos       { return e.At }

func (*Identifier) exprNode()      {}
func (*IntLiteral) exprNode()      {}
func (*StringLiteral) exprNode()   {}
func (*BoolLiteral) exprNode()     {}
func (*CharLiteral) exprNode()     {}
func (*ArrayLiteral) exprNode()    {}
func (*HashLiteral) exprNode()     {}
func (*FunctionLiteral) exprNode() {}
func (*CallExpr) exprNode()        {}
func (*IndexExpr) exprNode()       {}
func (*InfixExpr) exprNode()       {}

// Type annotations

// NamedType is one of int, string, bool, char, void.
type NamedType struct {
	At   Pos
	Name string
}

// ArrayType: array<T>
type ArrayType struct {
	At   Pos
	Elem TypeExpr
}

// HashType: hash<K,V>
type HashType struct {
	At    Pos
	Key   TypeExpr
	Value TypeExpr
}

// FunctionType: fn(T1, T2): R
type FunctionType struct {
	At     Pos
	Params []TypeExpr
	Return TypeExpr
}

func (t *NamedType) Pos() Pos    { return t.At }
func (t *ArrayType) Pos() Pos    { return t.At }
func (t *HashType) Pos() Pos     { return t.At }
func (t *FunctionType) Pos() Pos { return t.At }

func (*NamedType) typeNode()    {}
func (*ArrayType) typeNode()    {}
func (*HashType) typeNode()     {}
func (*FunctionType) typeNode() {}
