package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"monkey/internal/errors"
)

type TokenType string

const (
	// Keywords
	TokenFn     TokenType = "FN"
	TokenLet    TokenType = "LET"
	TokenConst  TokenType = "CONST"
	TokenIf     TokenType = "IF"
	TokenElse   TokenType = "ELSE"
	TokenReturn TokenType = "RETURN"
	TokenPrint  TokenType = "PRINT"

	// Literals
	TokenTrue   TokenType = "TRUE"
	TokenFalse  TokenType = "FALSE"
	TokenIdent  TokenType = "IDENT"
	TokenString TokenType = "STRING"
	TokenChar   TokenType = "CHAR"
	TokenNumber TokenType = "NUMBER"

	// Type names
	TokenIntT    TokenType = "INT_T"
	TokenStringT TokenType = "STRING_T"
	TokenBoolT   TokenType = "BOOL_T"
	TokenCharT   TokenType = "CHAR_T"
	TokenVoidT   TokenType = "VOID_T"
	TokenArrayT  TokenType = "ARRAY_T"
	TokenHashT   TokenType = "HASH_T"

	// Symbols
	TokenLParen      TokenType = "("
	TokenRParen      TokenType = ")"
	TokenLBrace      TokenType = "{"
	TokenRBrace      TokenType = "}"
	TokenLBracket    TokenType = "["
	TokenRBracket    TokenType = "]"
	TokenPlus        TokenType = "+"
	TokenMinus       TokenType = "-"
	TokenStar        TokenType = "*"
	TokenSlash       TokenType = "/"
	TokenEqual       TokenType = "="
	TokenColon       TokenType = ":"
	TokenDoubleEqual TokenType = "=="
	TokenNotEqual    TokenType = "!="
	TokenLT          TokenType = "<"
	TokenGT          TokenType = ">"
	TokenLE          TokenType = "<="
	TokenGE          TokenType = ">="
	TokenComma       TokenType = ","
	TokenSemicolon   TokenType = ";"
	TokenEOF         TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"fn":     TokenFn,
	"let":    TokenLet,
	"const":  TokenConst,
	"if":     TokenIf,
	"else":   TokenElse,
	"return": TokenReturn,
	"print":  TokenPrint,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"int":    TokenIntT,
	"string": TokenStringT,
	"bool":   TokenBoolT,
	"char":   TokenCharT,
	"void":   TokenVoidT,
	"array":  TokenArrayT,
	"hash":   TokenHashT,
}

// Token is a lexeme with its source position. For string and char literals
// Lexeme holds the decoded value.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s'", t.Type, t.Lexeme)
}

type Scanner struct {
	source    string
	tokens    []Token
	errors    []*errors.Diagnostic
	start     int
	current   int
	line      int
	lineStart int
	startLine int
	startCol  int
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// Scan tokenizes source and returns the token stream together with any
// lexical errors found along the way.
func Scan(source string) ([]Token, []*errors.Diagnostic) {
	s := NewScanner(source)
	tokens := s.ScanTokens()
	return tokens, s.Errors()
}

func (s *Scanner) ScanTokens() []Token {
	for !s.isAtEnd() {
		s.sanitize()
		if s.isAtEnd() {
			break
		}
		s.start = s.current
		s.startLine = s.line
		s.startCol = s.column()
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF, Lexeme: "", Line: s.line, Column: s.column()})
	return s.tokens
}

// Errors returns the lexical errors collected by ScanTokens.
func (s *Scanner) Errors() []*errors.Diagnostic {
	return s.errors
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '{':
		s.addToken(TokenLBrace)
	case '}':
		s.addToken(TokenRBrace)
	case '[':
		s.addToken(TokenLBracket)
	case ']':
		s.addToken(TokenRBracket)
	case '+':
		s.addToken(TokenPlus)
	case '-':
		s.addToken(TokenMinus)
	case '*':
		s.addToken(TokenStar)
	case '/':
		s.addToken(TokenSlash)
	case ',':
		s.addToken(TokenComma)
	case ';':
		s.addToken(TokenSemicolon)
	case ':':
		s.addToken(TokenColon)
	case '=':
		if s.match('=') {
			s.addToken(TokenDoubleEqual)
		} else {
			s.addToken(TokenEqual)
		}
	case '!':
		if s.match('=') {
			s.addToken(TokenNotEqual)
		} else {
			s.errorAt("invalid character", "!")
		}
	case '<':
		if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case '"':
		s.string()
	case '\'':
		s.char()
	default:
		if isDigit(c) {
			s.number()
		} else if isAlpha(c) {
			s.identifier()
		} else {
			// Re-decode so multi-byte characters are reported whole.
			r, size := utf8.DecodeRuneInString(s.source[s.start:])
			s.current = s.start + size
			s.errorAt("invalid character", string(r))
		}
	}
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	if t, ok := keywords[text]; ok {
		s.addToken(t)
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) string() {
	var value []rune
	bad := false
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\n' {
			break
		}
		if s.peek() == '\\' {
			s.advance()
			r, ok := s.escape()
			if !ok {
				bad = true
				continue
			}
			value = append(value, r)
			continue
		}
		r, size := utf8.DecodeRuneInString(s.source[s.current:])
		s.current += size
		value = append(value, r)
	}
	if s.isAtEnd() || s.peek() == '\n' {
		s.errorAt("unterminated string", s.source[s.start:s.current])
		return
	}
	s.advance()
	if bad {
		return
	}
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: string(value), Line: s.startLine, Column: s.startCol})
}

func (s *Scanner) char() {
	if s.peek() == '\'' {
		s.advance()
		s.errorAt("empty character literal", s.source[s.start:s.current])
		return
	}
	if s.isAtEnd() || s.peek() == '\n' {
		s.errorAt("unterminated character literal", s.source[s.start:s.current])
		return
	}
	var r rune
	if s.peek() == '\\' {
		s.advance()
		var ok bool
		if r, ok = s.escape(); !ok {
			return
		}
	} else {
		var size int
		r, size = utf8.DecodeRuneInString(s.source[s.current:])
		s.current += size
	}
	if !s.match('\'') {
		for !s.isAtEnd() && s.peek() != '\'' && s.peek() != '\n' {
			s.advance()
		}
		if s.match('\'') {
			s.errorAt("character literal must hold exactly one character", s.source[s.start:s.current])
			return
		}
		s.errorAt("unterminated character literal", s.source[s.start:s.current])
		return
	}
	s.tokens = append(s.tokens, Token{Type: TokenChar, Lexeme: string(r), Line: s.startLine, Column: s.startCol})
}

func (s *Scanner) escape() (rune, bool) {
	if s.isAtEnd() {
		s.errorAt("unterminated escape sequence", s.source[s.start:s.current])
		return 0, false
	}
	switch c := s.advance(); c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\', '\'', '"':
		return rune(c), true
	default:
		s.errorAt("invalid escape sequence", "\\"+string(c))
		return 0, false
	}
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Line: s.startLine, Column: s.startCol})
}

func (s *Scanner) errorAt(message, text string) {
	s.errors = append(s.errors, errors.NewLexicalError(message, text, s.startLine, s.startCol))
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

// column is the 1-based rune column of the current offset.
func (s *Scanner) column() int {
	return utf8.RuneCountInString(s.source[s.lineStart:s.current]) + 1
}

// sanitize skips whitespace and // comments, tracking line starts.
func (s *Scanner) sanitize() {
	for !s.isAtEnd() {
		c := s.peek()
		switch {
		case c == '\n':
			s.advance()
			s.line++
			s.lineStart = s.current
		case c == '/' && s.current+1 < len(s.source) && s.source[s.current+1] == '/':
			for !s.isAtEnd() && s.peek() != '\n' {
				s.advance()
			}
		case unicode.IsSpace(rune(c)):
			s.advance()
		default:
			return
		}
	}
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
