// Package lsp is a language server for Monkey speaking JSON-RPC over
// stdio. It publishes checker diagnostics and answers hover, definition,
// completion, document symbol and formatting requests.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"monkey/internal/checker"
	"monkey/internal/errors"
	"monkey/internal/formatter"
	"monkey/internal/parser"
	"monkey/internal/symbols"
)

const (
	LSPVersion = "2.0"
	source     = "monkey"
)

// Server is the LSP server implementation for Monkey
type Server struct {
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	mu      sync.Mutex
	docs    map[string]*Document
	running bool
}

// Document is an open text document and the result of analysing it.
type Document struct {
	URI     string
	Content string
	Version int

	prog  *parser.Program
	info  *checker.Info
	diags []*errors.Diagnostic
}

func NewServer(in io.Reader, out, errOut io.Writer) *Server {
	return &Server{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		docs:   make(map[string]*Document),
	}
}

// Start serves messages until exit, EOF or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.running = true
	for s.running {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.handleMessage(); err != nil {
			if err == io.EOF {
				return nil
			}
			fmt.Fprintf(s.errOut, "lsp: %v\n", err)
		}
	}
	return nil
}

// handleMessage reads and processes a single LSP message
func (s *Server) handleMessage() error {
	contentLength := 0
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lengthStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return fmt.Errorf("invalid Content-Length: %v", err)
			}
		}
	}
	if contentLength == 0 {
		return nil
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, content); err != nil {
		return err
	}
	var msg Message
	if err := json.Unmarshal(content, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %v", err)
	}
	return s.dispatch(&msg)
}

// Message represents a JSON-RPC message
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) dispatch(msg *Message) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.running = false
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	case "textDocument/formatting":
		return s.handleFormatting(msg)
	default:
		if msg.ID != nil {
			return s.sendError(msg.ID, -32601, "Method not found: "+msg.Method)
		}
		return nil
	}
}

func (s *Server) sendResponse(id *json.RawMessage, result interface{}) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id *json.RawMessage, code int, message string) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"id":      id,
		"error":   ResponseError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params interface{}) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"method":  method,
		"params":  params,
	})
}

// writeMessage writes a message with LSP headers
func (s *Server) writeMessage(msg interface{}) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(content)); err != nil {
		return err
	}
	_, err = s.out.Write(content)
	return err
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

type ServerCapabilities struct {
	TextDocumentSync           int                `json:"textDocumentSync"`
	CompletionProvider         *CompletionOptions `json:"completionProvider,omitempty"`
	HoverProvider              bool               `json:"hoverProvider"`
	DefinitionProvider         bool               `json:"definitionProvider"`
	DocumentSymbolProvider     bool               `json:"documentSymbolProvider"`
	DocumentFormattingProvider bool               `json:"documentFormattingProvider"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
	ResolveProvider   bool     `json:"resolveProvider"`
}

func (s *Server) handleInitialize(msg *Message) error {
	return s.sendResponse(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:           1, // full sync
			CompletionProvider:         &CompletionOptions{TriggerCharacters: []string{"("}},
			HoverProvider:              true,
			DefinitionProvider:         true,
			DocumentSymbolProvider:     true,
			DocumentFormattingProvider: true,
		},
	})
}

type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type DidChangeParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentPositionParams is shared by hover, definition and completion.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// open stores and analyses a document.
func (s *Server) open(uri, content string, version int) *Document {
	doc := &Document{URI: uri, Content: content, Version: version}
	prog, diags := parser.Parse(content)
	doc.diags = diags
	if len(diags) == 0 {
		doc.prog = prog
		doc.info, doc.diags = checker.Analyze(prog)
	}
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

func (s *Server) document(uri string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

func (s *Server) handleDidOpen(msg *Message) error {
	var params DidOpenParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc := s.open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	return s.publishDiagnostics(doc)
}

func (s *Server) handleDidChange(msg *Message) error {
	var params DidChangeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	doc := s.open(params.TextDocument.URI, text, params.TextDocument.Version)
	return s.publishDiagnostics(doc)
}

func (s *Server) handleDidClose(msg *Message) error {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
}

type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Position is zero-based, unlike source positions.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func toPosition(p parser.Pos) Position {
	return Position{Line: p.Line - 1, Character: p.Column - 1}
}

// span is the range of width characters starting at p.
func span(p parser.Pos, width int) Range {
	start := toPosition(p)
	return Range{Start: start, End: Position{Line: start.Line, Character: start.Character + width}}
}

func (s *Server) publishDiagnostics(doc *Document) error {
	diagnostics := make([]Diagnostic, 0, len(doc.diags))
	for _, d := range doc.diags {
		width := len([]rune(d.Token))
		if width == 0 {
			width = 1
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    span(parser.Pos{Line: d.Location.Line, Column: d.Location.Column}, width),
			Severity: 1,
			Message:  d.Message,
			Source:   source,
		})
	}
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diagnostics,
	})
}

// identifierAt finds the resolved identifier covering pos.
func (doc *Document) identifierAt(pos Position) (*parser.Identifier, *symbols.Symbol) {
	if doc.info == nil {
		return nil, nil
	}
	for id, sym := range doc.info.Uses {
		p := toPosition(id.At)
		if p.Line == pos.Line && pos.Character >= p.Character && pos.Character < p.Character+len(id.Name) {
			return id, sym
		}
	}
	return nil, nil
}

// declaration returns the node that introduced sym.
func (doc *Document) declaration(sym *symbols.Symbol) parser.Node {
	for node, def := range doc.info.Defs {
		if def == sym {
			return node
		}
	}
	return nil
}

type CompletionItem struct {
	Label         string `json:"label"`
	Kind          int    `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

const (
	CompletionItemKindFunction = 3
	CompletionItemKindVariable = 6
	CompletionItemKindKeyword  = 14
	CompletionItemKindConstant = 21
)

var monkeyKeywords = []CompletionItem{
	{Label: "fn", Kind: CompletionItemKindKeyword, Detail: "Function declaration or literal"},
	{Label: "let", Kind: CompletionItemKindKeyword, Detail: "Variable declaration"},
	{Label: "const", Kind: CompletionItemKindKeyword, Detail: "Constant declaration"},
	{Label: "if", Kind: CompletionItemKindKeyword, Detail: "Conditional statement"},
	{Label: "else", Kind: CompletionItemKindKeyword, Detail: "Else clause"},
	{Label: "return", Kind: CompletionItemKindKeyword, Detail: "Return statement"},
	{Label: "print", Kind: CompletionItemKindKeyword, Detail: "Print statement"},
	{Label: "true", Kind: CompletionItemKindConstant, Detail: "Boolean true"},
	{Label: "false", Kind: CompletionItemKindConstant, Detail: "Boolean false"},
}

var monkeyBuiltins = []CompletionItem{
	{Label: "len", Kind: CompletionItemKindFunction, Detail: "fn len(array<T> | string): int", Documentation: "Number of elements or characters. Other values have length 0."},
	{Label: "first", Kind: CompletionItemKindFunction, Detail: "fn first(array<T>): T", Documentation: "First element, absent for an empty array."},
	{Label: "last", Kind: CompletionItemKindFunction, Detail: "fn last(array<T>): T", Documentation: "Last element, absent for an empty array."},
	{Label: "rest", Kind: CompletionItemKindFunction, Detail: "fn rest(array<T>): array<T>", Documentation: "A copy without the first element."},
	{Label: "push", Kind: CompletionItemKindFunction, Detail: "fn push(array<T>, T): array<T>", Documentation: "Appends in place and returns the same array."},
}

func (s *Server) handleCompletion(msg *Message) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	items := []CompletionItem{}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, items)
	}

	prefix := wordBefore(doc.Content, params.Position)
	for _, group := range [][]CompletionItem{monkeyKeywords, monkeyBuiltins, topLevel(doc)} {
		for _, item := range group {
			if strings.HasPrefix(item.Label, prefix) {
				items = append(items, item)
			}
		}
	}
	return s.sendResponse(msg.ID, items)
}

// topLevel lists the functions and globals of the last successful parse.
func topLevel(doc *Document) []CompletionItem {
	var items []CompletionItem
	if doc.prog == nil || doc.info == nil {
		return items
	}
	decls := doc.prog.Functions
	if doc.prog.Main != nil {
		decls = append(decls[:len(decls):len(decls)], doc.prog.Main)
	}
	for _, fn := range decls {
		if sym, ok := doc.info.Defs[fn]; ok {
			items = append(items, CompletionItem{Label: fn.Name, Kind: CompletionItemKindFunction, Detail: sym.Type.String()})
		}
	}
	for _, stmt := range doc.prog.Globals {
		if let, ok := stmt.(*parser.LetStmt); ok {
			if sym, ok := doc.info.Defs[let]; ok {
				items = append(items, CompletionItem{Label: let.Name, Kind: CompletionItemKindVariable, Detail: sym.Type.String()})
			}
		}
	}
	return items
}

func wordBefore(content string, pos Position) string {
	lines := strings.Split(content, "\n")
	if pos.Line >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	if pos.Character > len(line) {
		return ""
	}
	start := pos.Character
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	return line[start:pos.Character]
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (s *Server) handleHover(msg *Message) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	id, sym := doc.identifierAt(params.Position)
	if id == nil {
		return s.sendResponse(msg.ID, nil)
	}

	value := fmt.Sprintf("```monkey\n%s: %s\n```\n\n%s", sym.Name, sym.Type, sym.Category)
	if sym.Category == symbols.BuiltIn {
		for _, b := range monkeyBuiltins {
			if b.Label == sym.Name {
				value = fmt.Sprintf("```monkey\n%s\n```\n\n%s", b.Detail, b.Documentation)
			}
		}
	}
	r := span(id.At, len(id.Name))
	return s.sendResponse(msg.ID, Hover{
		Contents: MarkupContent{Kind: "markdown", Value: value},
		Range:    &r,
	})
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

func (s *Server) handleDefinition(msg *Message) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	_, sym := doc.identifierAt(params.Position)
	if sym == nil {
		return s.sendResponse(msg.ID, nil)
	}
	node := doc.declaration(sym)
	if node == nil {
		// Built-ins have no declaration.
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, Location{URI: doc.URI, Range: span(node.Pos(), 1)})
}

type DocumentSymbol struct {
	Name           string `json:"name"`
	Detail         string `json:"detail,omitempty"`
	Kind           int    `json:"kind"`
	Range          Range  `json:"range"`
	SelectionRange Range  `json:"selectionRange"`
}

const (
	SymbolKindFunction = 12
	SymbolKindVariable = 13
	SymbolKindConstant = 14
)

func (s *Server) handleDocumentSymbol(msg *Message) error {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	result := []DocumentSymbol{}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok || doc.prog == nil || doc.info == nil {
		return s.sendResponse(msg.ID, result)
	}
	add := func(node parser.Node, name string, kind int) {
		sym, ok := doc.info.Defs[node]
		if !ok {
			return
		}
		r := span(node.Pos(), len(name))
		result = append(result, DocumentSymbol{Name: name, Detail: sym.Type.String(), Kind: kind, Range: r, SelectionRange: r})
	}
	for _, fn := range doc.prog.Functions {
		add(fn, fn.Name, SymbolKindFunction)
	}
	for _, stmt := range doc.prog.Globals {
		if let, ok := stmt.(*parser.LetStmt); ok {
			kind := SymbolKindVariable
			if let.Const {
				kind = SymbolKindConstant
			}
			add(let, let.Name, kind)
		}
	}
	if doc.prog.Main != nil {
		add(doc.prog.Main, doc.prog.Main.Name, SymbolKindFunction)
	}
	return s.sendResponse(msg.ID, result)
}

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// handleFormatting replaces the whole document. Documents with syntax
// errors are left alone.
func (s *Server) handleFormatting(msg *Message) error {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok || doc.prog == nil {
		return s.sendResponse(msg.ID, []TextEdit{})
	}
	formatted := formatter.NewFormatter().Format(doc.prog)
	if formatted == doc.Content {
		return s.sendResponse(msg.ID, []TextEdit{})
	}
	lines := strings.Count(doc.Content, "\n")
	return s.sendResponse(msg.ID, []TextEdit{{
		Range:   Range{End: Position{Line: lines + 1}},
		NewText: formatted,
	}})
}
