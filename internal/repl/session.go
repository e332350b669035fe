package repl

import (
	"strings"

	"monkey/internal/bytecode"
	"monkey/internal/driver"
	"monkey/internal/errors"
)

// Session accumulates accepted snippets into one program. Each Eval checks
// and re-runs the whole program and reports only the output the new
// snippet added.
type Session struct {
	opts     driver.Options
	snippets []string
	lines    int
	output   string
}

func NewSession(opts driver.Options) *Session {
	return &Session{opts: opts}
}

// Source returns the accumulated program.
func (s *Session) Source() string {
	return strings.Join(s.snippets, "\n")
}

// Reset forgets every accepted snippet.
func (s *Session) Reset() {
	s.snippets = nil
	s.lines = 0
	s.output = ""
}

// Eval runs snippet on top of the session. On success the snippet is kept
// and the new output is returned. Diagnostics or a runtime fault reject
// the snippet; their line numbers are relative to the snippet.
func (s *Session) Eval(snippet string) (string, []*errors.Diagnostic, error) {
	source := snippet
	if len(s.snippets) > 0 {
		source = s.Source() + "\n" + snippet
	}
	opts := s.opts
	opts.ExitFromMain = false
	res, output, err := driver.RunCaptured(source, opts)
	if err != nil {
		return "", nil, err
	}
	if len(res.Diagnostics) > 0 {
		for _, d := range res.Diagnostics {
			if d.Location.Line > s.lines {
				d.Location.Line -= s.lines
			}
		}
		return "", res.Diagnostics, nil
	}

	s.snippets = append(s.snippets, snippet)
	s.lines += strings.Count(snippet, "\n") + 1
	fresh := output
	if strings.HasPrefix(output, s.output) {
		fresh = output[len(s.output):]
	}
	s.output = output
	return fresh, nil, nil
}

// Disassemble lists the bytecode of the accumulated program.
func (s *Session) Disassemble() (string, []*errors.Diagnostic, error) {
	mod, diags, err := driver.Compile(s.Source(), s.opts)
	if err != nil || len(diags) > 0 {
		return "", diags, err
	}
	return bytecode.Disassemble(mod), nil, nil
}
