package parser

import (
	"monkey/internal/lexer"
)

func (p *Parser) statement() Stmt {
	tok := p.peek()
	switch {
	case p.match(lexer.TokenLet), p.match(lexer.TokenConst):
		return p.letStatement(tok)
	case p.match(lexer.TokenReturn):
		return p.returnStatement(tok)
	case p.match(lexer.TokenIf):
		return p.ifStatement(tok)
	case p.match(lexer.TokenPrint):
		p.consume(lexer.TokenLParen, "expected '(' after print")
		value := p.expression(precLowest)
		p.consume(lexer.TokenRParen, "expected ')' after print argument")
		return &PrintStmt{At: posOf(tok), Value: value}
	case p.check(lexer.TokenLBrace):
		return p.block()
	}
	expr := p.expression(precLowest)
	return &ExpressionStmt{At: posOf(tok), Expr: expr}
}

func (p *Parser) letStatement(kw lexer.Token) Stmt {
	name := p.consume(lexer.TokenIdent, "expected variable name")
	p.consume(lexer.TokenColon, "expected ':' after variable name")
	typ := p.typeExpr()
	p.consume(lexer.TokenEqual, "expected '=' after variable type")
	value := p.expression(precLowest)
	return &LetStmt{
		At:    posOf(kw),
		Name:  name.Lexeme,
		Type:  typ,
		Value: value,
		Const: kw.Type == lexer.TokenConst,
	}
}

func (p *Parser) returnStatement(kw lexer.Token) Stmt {
	stmt := &ReturnStmt{At: posOf(kw)}
	next := p.peek()
	// A value must start on the same line as `return`.
	if next.Line != kw.Line || next.Type == lexer.TokenRBrace || next.Type == lexer.TokenSemicolon || next.Type == lexer.TokenEOF {
		return stmt
	}
	stmt.Value = p.expression(precLowest)
	return stmt
}

func (p *Parser) ifStatement(kw lexer.Token) Stmt {
	stmt := &IfStmt{At: posOf(kw)}
	stmt.Condition = p.expression(precLowest)
	stmt.Consequence = p.block()
	if elseTok := p.peek(); p.match(lexer.TokenElse) {
		if nested := p.peek(); p.match(lexer.TokenIf) {
			stmt.Alternative = p.ifStatement(nested)
		} else if p.check(lexer.TokenLBrace) {
			stmt.Alternative = p.block()
		} else {
			p.failAt(elseTok, "expected '{' or 'if' after else")
		}
	}
	return stmt
}

func (p *Parser) block() *BlockStmt {
	open := p.consume(lexer.TokenLBrace, "expected '{'")
	block := &BlockStmt{At: posOf(open)}
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		if p.match(lexer.TokenSemicolon) {
			continue
		}
		block.Statements = append(block.Statements, p.statement())
	}
	p.consume(lexer.TokenRBrace, "expected '}' after block")
	return block
}
