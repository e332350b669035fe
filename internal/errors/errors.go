// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic by the pipeline stage that produced it.
type Kind string

const (
	LexicalError  Kind = "LexicalError"
	SyntaxError   Kind = "SyntaxError"
	SemanticError Kind = "SemanticError"
	RuntimeFault  Kind = "RuntimeFault"
)

// Location is a position in source code. Columns are 1-based.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("[L%d, C%d]", l.Line, l.Column)
}

// Diagnostic is a single problem reported by one of the pipeline stages.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location Location
	// Token is the offending lexeme for lexical and syntax errors.
	Token     string
	CallStack []StackFrame
}

// StackFrame represents a single frame in the call stack of a runtime fault
type StackFrame struct {
	Function string
	Line     int
	Column   int
}

// Error renders the diagnostic in the line format printed by the driver.
func (d *Diagnostic) Error() string {
	switch d.Kind {
	case LexicalError, SyntaxError:
		return fmt.Sprintf("%s Token '%s': %s", d.Location, d.Token, d.Message)
	case RuntimeFault:
		if d.Location.Line == 0 {
			return fmt.Sprintf("%s: %s", d.Kind, d.Message)
		}
		return fmt.Sprintf("%s %s: %s", d.Location, d.Kind, d.Message)
	default:
		return fmt.Sprintf("%s %s", d.Location, d.Message)
	}
}

// Trace renders the call stack of a runtime fault, innermost frame first.
func (d *Diagnostic) Trace() string {
	if len(d.CallStack) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Call Stack:\n")
	for _, frame := range d.CallStack {
		if frame.Line > 0 {
			sb.WriteString(fmt.Sprintf("  at %s [L%d, C%d]\n", frame.Function, frame.Line, frame.Column))
		} else {
			sb.WriteString(fmt.Sprintf("  at %s\n", frame.Function))
		}
	}
	return sb.String()
}

// NewLexicalError creates a new lexical error
func NewLexicalError(message, token string, line, column int) *Diagnostic {
	return &Diagnostic{
		Kind:     LexicalError,
		Message:  message,
		Token:    token,
		Location: Location{Line: line, Column: column},
	}
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message, token string, line, column int) *Diagnostic {
	return &Diagnostic{
		Kind:     SyntaxError,
		Message:  message,
		Token:    token,
		Location: Location{Line: line, Column: column},
	}
}

// NewSemanticError creates a new semantic error
func NewSemanticError(message string, line, column int) *Diagnostic {
	return &Diagnostic{
		Kind:     SemanticError,
		Message:  message,
		Location: Location{Line: line, Column: column},
	}
}

// NewRuntimeFault creates a new runtime fault
func NewRuntimeFault(message string, line, column int) *Diagnostic {
	return &Diagnostic{
		Kind:     RuntimeFault,
		Message:  message,
		Location: Location{Line: line, Column: column},
	}
}

// AddStackFrame adds a single stack frame
func (d *Diagnostic) AddStackFrame(function string, line, column int) *Diagnostic {
	d.CallStack = append(d.CallStack, StackFrame{
		Function: function,
		Line:     line,
		Column:   column,
	})
	return d
}

// Strings renders every diagnostic with Error, preserving order.
func Strings(diags []*Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Error()
	}
	return out
}
