// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"

	"monkey/internal/errors"
	"monkey/internal/lexer"
)

const (
	precLowest = iota
	precEquality
	precCompare
	precSum
	precProduct
	precCall
)

var precedence = map[lexer.TokenType]int{
	lexer.TokenDoubleEqual: precEquality,
	lexer.TokenNotEqual:    precEquality,
	lexer.TokenLT:          precCompare,
	lexer.TokenGT:          precCompare,
	lexer.TokenLE:          precCompare,
	lexer.TokenGE:          precCompare,
	lexer.TokenPlus:        precSum,
	lexer.TokenMinus:       precSum,
	lexer.TokenStar:        precProduct,
	lexer.TokenSlash:       precProduct,
	lexer.TokenLParen:      precCall,
	lexer.TokenLBracket:    precCall,
}

// bailout unwinds the parser on the first syntax error; malformed input is
// not recovered from.
type bailout struct{}

type Parser struct {
	tokens  []lexer.Token
	current int
	Errors  []*errors.Diagnostic
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
	}
}

// Parse scans and parses source. A non-empty diagnostic list means the
// returned program is nil.
func Parse(source string) (*Program, []*errors.Diagnostic) {
	tokens, lexErrs := lexer.Scan(source)
	if len(lexErrs) > 0 {
		return nil, lexErrs
	}
	p := NewParser(tokens)
	prog := p.Parse()
	if len(p.Errors) > 0 {
		return nil, p.Errors
	}
	return prog, nil
}

func (p *Parser) Parse() (prog *Program) {
	prog = &Program{}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			prog = nil
		}
	}()

	for !p.isAtEnd() {
		if p.match(lexer.TokenSemicolon) {
			continue
		}
		if p.check(lexer.TokenFn) && p.peekNext().Type == lexer.TokenIdent {
			fn := p.function()
			if fn.Name == "main" && prog.Main == nil {
				prog.Main = fn
			} else {
				prog.Functions = append(prog.Functions, fn)
			}
			continue
		}
		prog.Globals = append(prog.Globals, p.statement())
	}
	return prog
}

func (p *Parser) function() *FunctionDecl {
	fnTok := p.advance()
	name := p.consume(lexer.TokenIdent, "expected function name")
	params := p.parameters()
	p.consume(lexer.TokenColon, "expected ':' before return type")
	ret := p.typeExpr()
	body := p.block()
	return &FunctionDecl{
		At:         posOf(fnTok),
		Name:       name.Lexeme,
		Params:     params,
		ReturnType: ret,
		Body:       body,
	}
}

func (p *Parser) parameters() []*Param {
	p.consume(lexer.TokenLParen, "expected '(' before parameters")
	var params []*Param
	if !p.check(lexer.TokenRParen) {
		for {
			name := p.consume(lexer.TokenIdent, "expected parameter name")
			p.consume(lexer.TokenColon, "expected ':' after parameter name")
			params = append(params, &Param{At: posOf(name), Name: name.Lexeme, Type: p.typeExpr()})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after parameters")
	return params
}

func (p *Parser) typeExpr() TypeExpr {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenIntT, lexer.TokenStringT, lexer.TokenBoolT, lexer.TokenCharT, lexer.TokenVoidT:
		return &NamedType{At: posOf(tok), Name: tok.Lexeme}
	case lexer.TokenArrayT:
		p.consume(lexer.TokenLT, "expected '<' after array")
		elem := p.typeExpr()
		p.closeAngle("expected '>' after array element type")
		return &ArrayType{At: posOf(tok), Elem: elem}
	case lexer.TokenHashT:
		p.consume(lexer.TokenLT, "expected '<' after hash")
		key := p.typeExpr()
		p.consume(lexer.TokenComma, "expected ',' between hash key and value types")
		value := p.typeExpr()
		p.closeAngle("expected '>' after hash value type")
		return &HashType{At: posOf(tok), Key: key, Value: value}
	case lexer.TokenFn:
		p.consume(lexer.TokenLParen, "expected '(' in function type")
		var params []TypeExpr
		if !p.check(lexer.TokenRParen) {
			for {
				params = append(params, p.typeExpr())
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		p.consume(lexer.TokenRParen, "expected ')' in function type")
		p.consume(lexer.TokenColon, "expected ':' before return type")
		return &FunctionType{At: posOf(tok), Params: params, Return: p.typeExpr()}
	}
	p.failAt(tok, "expected type")
	return nil
}

// Expressions, precedence climbing.

func (p *Parser) expression(prec int) Expr {
	left := p.prefix()
	for {
		next := p.peek()
		np, ok := precedence[next.Type]
		if !ok || np <= prec {
			return left
		}
		// A call or index must start on the line of its target, otherwise
		// `f()` on the next line would be glued to the previous statement.
		if (next.Type == lexer.TokenLParen || next.Type == lexer.TokenLBracket) && next.Line != p.previous().Line {
			return left
		}
		p.advance()
		switch next.Type {
		case lexer.TokenLParen:
			left = &CallExpr{At: left.Pos(), Callee: left, Args: p.arguments()}
		case lexer.TokenLBracket:
			index := p.expression(precLowest)
			p.consume(lexer.TokenRBracket, "expected ']' after index")
			left = &IndexExpr{At: posOf(next), Target: left, Index: index}
		default:
			right := p.expression(np)
			left = &InfixExpr{At: posOf(next), Left: left, Operator: next.Lexeme, Right: right}
		}
	}
}

func (p *Parser) prefix() Expr {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenIdent:
		return &Identifier{At: posOf(tok), Name: tok.Lexeme}
	case lexer.TokenNumber:
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.failAt(tok, "integer literal out of range")
		}
		return &IntLiteral{At: posOf(tok), Value: v}
	case lexer.TokenString:
		return &StringLiteral{At: posOf(tok), Value: tok.Lexeme}
	case lexer.TokenChar:
		return &CharLiteral{At: posOf(tok), Value: []rune(tok.Lexeme)[0]}
	case lexer.TokenTrue, lexer.TokenFalse:
		return &BoolLiteral{At: posOf(tok), Value: tok.Type == lexer.TokenTrue}
	case lexer.TokenLParen:
		expr := p.expression(precLowest)
		p.consume(lexer.TokenRParen, "expected ')' after expression")
		return expr
	case lexer.TokenLBracket:
		return p.arrayLiteral(tok)
	case lexer.TokenLBrace:
		return p.hashLiteral(tok)
	case lexer.TokenFn:
		params := p.parameters()
		p.consume(lexer.TokenColon, "expected ':' before return type")
		ret := p.typeExpr()
		body := p.block()
		return &FunctionLiteral{At: posOf(tok), Params: params, ReturnType: ret, Body: body}
	}
	p.failAt(tok, "expected expression")
	return nil
}

func (p *Parser) arguments() []Expr {
	var args []Expr
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression(precLowest))
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after arguments")
	return args
}

func (p *Parser) arrayLiteral(open lexer.Token) Expr {
	lit := &ArrayLiteral{At: posOf(open)}
	if !p.check(lexer.TokenRBracket) {
		for {
			lit.Elements = append(lit.Elements, p.expression(precLowest))
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRBracket, "expected ']' after array elements")
	return lit
}

func (p *Parser) hashLiteral(open lexer.Token) Expr {
	lit := &HashLiteral{At: posOf(open)}
	if !p.check(lexer.TokenRBrace) {
		for {
			key := p.expression(precLowest)
			p.consume(lexer.TokenColon, "expected ':' after hash key")
			value := p.expression(precLowest)
			lit.Pairs = append(lit.Pairs, HashPair{Key: key, Value: value})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' after hash pairs")
	return lit
}

// Token helpers

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) peekNext() lexer.Token {
	if p.current+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+1]
}

func (p *Parser) previous() lexer.Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) consume(t lexer.TokenType, message string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.failAt(p.peek(), message)
	return lexer.Token{}
}

// closeAngle consumes the '>' ending a generic type. In `array<int>=[1]`
// the scanner produces '>=', which is split into '>' and '='.
func (p *Parser) closeAngle(message string) {
	if p.match(lexer.TokenGT) {
		return
	}
	if p.check(lexer.TokenGE) {
		tok := &p.tokens[p.current]
		tok.Type = lexer.TokenEqual
		tok.Lexeme = "="
		tok.Column++
		return
	}
	p.failAt(p.peek(), message)
}

func (p *Parser) failAt(tok lexer.Token, message string) {
	text := tok.Lexeme
	if tok.Type == lexer.TokenEOF {
		text = "<EOF>"
	}
	p.Errors = append(p.Errors, errors.NewSyntaxError(message, text, tok.Line, tok.Column))
	panic(bailout{})
}

func posOf(tok lexer.Token) Pos {
	return Pos{Line: tok.Line, Column: tok.Column}
}

// TypeString renders a type annotation in surface syntax.
func TypeString(t TypeExpr) string {
	switch t := t.(type) {
	case *NamedType:
		return t.Name
	case *ArrayType:
		return "array<" + TypeString(t.Elem) + ">"
	case *HashType:
		return "hash<" + TypeString(t.Key) + "," + TypeString(t.Value) + ">"
	case *FunctionType:
		s := "fn("
		for i, param := range t.Params {
			if i > 0 {
				s += ","
			}
			s += TypeString(param)
		}
		return s + "):" + TypeString(t.Return)
	}
	return fmt.Sprintf("%T", t)
}
