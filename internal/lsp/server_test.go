package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

const sample = `let total: int = 2

fn double(x: int): int {
    return x * total
}

fn main(): void {
    print(double(total))
}
`

type reply struct {
	ID     *int            `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Params json.RawMessage `json:"params"`
	Error  *ResponseError  `json:"error"`
}

// session feeds requests to a fresh server and returns everything it wrote.
func session(t *testing.T, requests ...map[string]interface{}) []reply {
	t.Helper()
	var in bytes.Buffer
	for _, req := range requests {
		req["jsonrpc"] = LSPVersion
		body, err := json.Marshal(req)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(&in, "Content-Length: %d\r\n\r\n%s", len(body), body)
	}
	var out, errOut bytes.Buffer
	if err := NewServer(&in, &out, &errOut).Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if errOut.Len() > 0 {
		t.Errorf("server logged: %s", errOut.String())
	}
	return readReplies(t, &out)
}

func readReplies(t *testing.T, r io.Reader) []reply {
	t.Helper()
	br := bufio.NewReader(r)
	var replies []reply
	for {
		header, err := br.ReadString('\n')
		if err == io.EOF {
			return replies
		}
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		if err != nil {
			t.Fatalf("bad header %q", header)
		}
		if _, err := br.ReadString('\n'); err != nil {
			t.Fatal(err)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			t.Fatal(err)
		}
		var rep reply
		if err := json.Unmarshal(body, &rep); err != nil {
			t.Fatal(err)
		}
		replies = append(replies, rep)
	}
}

func response(t *testing.T, replies []reply, id int, into interface{}) {
	t.Helper()
	for _, rep := range replies {
		if rep.ID != nil && *rep.ID == id {
			if rep.Error != nil {
				t.Fatalf("request %d failed: %s", id, rep.Error.Message)
			}
			if len(rep.Result) == 0 {
				return
			}
			if err := json.Unmarshal(rep.Result, into); err != nil {
				t.Fatal(err)
			}
			return
		}
	}
	t.Fatalf("no response to request %d", id)
}

func diagnostics(t *testing.T, replies []reply, uri string) []Diagnostic {
	t.Helper()
	var last *PublishDiagnosticsParams
	for _, rep := range replies {
		if rep.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(rep.Params, &p); err != nil {
			t.Fatal(err)
		}
		if p.URI == uri {
			last = &p
		}
	}
	if last == nil {
		t.Fatalf("no diagnostics published for %s", uri)
	}
	return last.Diagnostics
}

func request(id int, method string, params interface{}) map[string]interface{} {
	return map[string]interface{}{"id": id, "method": method, "params": params}
}

func notify(method string, params interface{}) map[string]interface{} {
	return map[string]interface{}{"method": method, "params": params}
}

func open(uri, text string) map[string]interface{} {
	return notify("textDocument/didOpen", map[string]interface{}{
		"textDocument": TextDocumentItem{URI: uri, LanguageID: "monkey", Version: 1, Text: text},
	})
}

func at(id int, method, uri string, line, char int) map[string]interface{} {
	return request(id, method, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     Position{Line: line, Character: char},
	})
}

func TestInitialize(t *testing.T) {
	replies := session(t, request(1, "initialize", map[string]interface{}{}), notify("exit", nil))
	var res InitializeResult
	response(t, replies, 1, &res)
	caps := res.Capabilities
	if caps.TextDocumentSync != 1 || !caps.HoverProvider || !caps.DefinitionProvider || !caps.DocumentFormattingProvider {
		t.Errorf("unexpected capabilities: %# v", pretty.Formatter(caps))
	}
}

func TestUnknownMethod(t *testing.T) {
	replies := session(t, request(7, "workspace/symbol", nil), notify("exit", nil))
	if len(replies) != 1 || replies[0].Error == nil || replies[0].Error.Code != -32601 {
		t.Fatalf("expected method-not-found, got %# v", pretty.Formatter(replies))
	}
}

func TestNavigation(t *testing.T) {
	const uri = "file:///sample.mk"
	replies := session(t,
		open(uri, sample),
		at(1, "textDocument/hover", uri, 3, 16),
		at(2, "textDocument/definition", uri, 7, 11),
		at(3, "textDocument/hover", uri, 7, 6),
		at(4, "textDocument/completion", uri, 7, 12),
		request(5, "textDocument/documentSymbol", map[string]interface{}{"textDocument": TextDocumentIdentifier{URI: uri}}),
		request(6, "textDocument/formatting", map[string]interface{}{"textDocument": TextDocumentIdentifier{URI: uri}}),
		request(8, "shutdown", nil),
		notify("exit", nil),
	)

	if diags := diagnostics(t, replies, uri); len(diags) != 0 {
		t.Errorf("clean program produced diagnostics: %# v", pretty.Formatter(diags))
	}

	var hover Hover
	response(t, replies, 1, &hover)
	if !strings.Contains(hover.Contents.Value, "total: int") {
		t.Errorf("hover = %q", hover.Contents.Value)
	}
	wantRange := Range{Start: Position{Line: 3, Character: 15}, End: Position{Line: 3, Character: 20}}
	if hover.Range == nil || *hover.Range != wantRange {
		t.Errorf("hover range = %v, want %v", hover.Range, wantRange)
	}

	var loc Location
	response(t, replies, 2, &loc)
	if loc.URI != uri || loc.Range.Start != (Position{Line: 2, Character: 0}) {
		t.Errorf("definition = %# v", pretty.Formatter(loc))
	}

	var nothing *Hover
	response(t, replies, 3, &nothing)
	if nothing != nil {
		t.Errorf("hover over a keyword should be empty, got %# v", pretty.Formatter(nothing))
	}

	var items []CompletionItem
	response(t, replies, 4, &items)
	if len(items) != 1 || items[0].Label != "double" || items[0].Kind != CompletionItemKindFunction {
		t.Errorf("completion = %# v", pretty.Formatter(items))
	}

	var syms []DocumentSymbol
	response(t, replies, 5, &syms)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	if diff := pretty.Diff([]string{"double", "total", "main"}, names); len(diff) > 0 {
		t.Errorf("document symbols: %v", diff)
	}

	var edits []TextEdit
	response(t, replies, 6, &edits)
	if len(edits) != 0 {
		t.Errorf("canonical source should need no edits, got %# v", pretty.Formatter(edits))
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"syntax", "let x: int =", 0, "expected expression"},
		{"type", "fn main(): void {\n    let x: int = true\n}\n", 1, "cannot assign bool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := "file:///" + tt.name + ".mk"
			diags := diagnostics(t, session(t, open(uri, tt.src), notify("exit", nil)), uri)
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1: %# v", len(diags), pretty.Formatter(diags))
			}
			d := diags[0]
			if d.Range.Start.Line != tt.line || d.Severity != 1 || d.Source != "monkey" {
				t.Errorf("diagnostic = %# v", pretty.Formatter(d))
			}
			if !strings.Contains(d.Message, tt.msg) {
				t.Errorf("message %q does not mention %q", d.Message, tt.msg)
			}
		})
	}
}

func TestChangeAndClose(t *testing.T) {
	const uri = "file:///edit.mk"
	replies := session(t,
		open(uri, "let a: int = true\n"),
		notify("textDocument/didChange", DidChangeParams{
			TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: 2},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: "let a:int=1"}},
		}),
		request(1, "textDocument/formatting", map[string]interface{}{"textDocument": TextDocumentIdentifier{URI: uri}}),
		notify("textDocument/didClose", map[string]interface{}{"textDocument": TextDocumentIdentifier{URI: uri}}),
		request(2, "textDocument/hover", TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}}),
		notify("exit", nil),
	)

	var published []int
	for _, rep := range replies {
		if rep.Method == "textDocument/publishDiagnostics" {
			var p PublishDiagnosticsParams
			if err := json.Unmarshal(rep.Params, &p); err != nil {
				t.Fatal(err)
			}
			published = append(published, len(p.Diagnostics))
		}
	}
	if diff := pretty.Diff([]int{1, 0, 0}, published); len(diff) > 0 {
		t.Errorf("diagnostic counts per publish: %v", diff)
	}

	var edits []TextEdit
	response(t, replies, 1, &edits)
	want := []TextEdit{{Range: Range{End: Position{Line: 1}}, NewText: "let a: int = 1\n"}}
	if diff := pretty.Diff(want, edits); len(diff) > 0 {
		t.Errorf("formatting edits: %v", diff)
	}

	var hover *Hover
	response(t, replies, 2, &hover)
	if hover != nil {
		t.Errorf("closed document should not answer hover")
	}
}
