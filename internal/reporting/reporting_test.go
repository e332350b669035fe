package reporting

import (
	"bytes"
	"strings"
	"testing"

	"monkey/internal/errors"
)

func TestReportPlain(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "auto")
	n := r.Report([]*errors.Diagnostic{
		errors.NewSemanticError("'x' used before declared", 3, 5),
		errors.NewSyntaxError("expected ')'", ";", 4, 9),
	})
	if n != 2 {
		t.Fatalf("Report returned %d, want 2", n)
	}
	want := "[L3, C5] 'x' used before declared\n[L4, C9] Token ';': expected ')'\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestReportColor(t *testing.T) {
	tests := []struct {
		mode  string
		color bool
	}{
		{"always", true},
		{"never", false},
		{"auto", false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf, tt.mode).Report([]*errors.Diagnostic{errors.NewRuntimeFault("division by zero", 1, 1)})
			if got := strings.Contains(buf.String(), "\033["); got != tt.color {
				t.Errorf("colored = %v, want %v (%q)", got, tt.color, buf.String())
			}
		})
	}
}

func TestReportTrace(t *testing.T) {
	var buf bytes.Buffer
	fault := errors.NewRuntimeFault("division by zero", 2, 10)
	fault.AddStackFrame("div", 2, 10).AddStackFrame("main", 5, 3)
	New(&buf, "never").WithTrace(true).ReportFile("a.mk", []*errors.Diagnostic{fault})

	out := buf.String()
	for _, want := range []string{"a.mk: [L2, C10] RuntimeFault: division by zero", "at div [L2, C10]", "at main [L5, C3]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
