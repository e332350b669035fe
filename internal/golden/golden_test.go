package golden

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func TestParse(t *testing.T) {
	c, err := Parse("p", `print(1) // expect: 1
print(x) // expect-error: [L2, C7] undefined variable 'x'
// expect-exit: 1
let url: string = "http://example.com"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Case{
		Name:   "p",
		Source: c.Source,
		Output: []string{"1"},
		Errors: []string{"[L2, C7] undefined variable 'x'"},
		Exit:   1,
	}
	if diff := pretty.Diff(want, c); len(diff) > 0 {
		t.Errorf("case: %v", diff)
	}

	if _, err := Parse("p", "// expect-exit: two"); err == nil {
		t.Errorf("invalid exit code accepted")
	}
	if c, _ := Parse("p", "// expect-error: boom"); c.Exit != 1 {
		t.Errorf("expected errors imply exit 1, got %d", c.Exit)
	}
}

func loadAll(t *testing.T) []*Case {
	t.Helper()
	files, err := Discover("testdata")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var cases []*Case
	for _, f := range files {
		c, err := Load(f)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		cases = append(cases, c)
	}
	return cases
}

func TestRunTestdata(t *testing.T) {
	cases := loadAll(t)
	if len(cases) != 5 {
		t.Fatalf("discovered %d cases", len(cases))
	}
	if cases[2].File != filepath.Join("testdata", "faults", "division.mk") {
		t.Errorf("discovery order: %s", cases[2].File)
	}

	results, stats := Run(cases, Config{Parallel: 2})
	for _, r := range results {
		if !r.Passed && !r.Skipped {
			t.Errorf("%s failed:\n%s", r.Name, r.Message)
		}
	}
	if stats.Passed != 4 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunReportsMismatch(t *testing.T) {
	c, _ := Parse("wrong", "print(2) // expect: 3")
	results, stats := Run([]*Case{c}, Config{})
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if msg := results[0].Message; !strings.Contains(msg, "want 3") || !strings.Contains(msg, "got  2") {
		t.Errorf("message = %q", msg)
	}
}

func TestFilter(t *testing.T) {
	results, _ := Run(loadAll(t), Config{Filter: "contain"})
	if len(results) != 1 || results[0].Name != "containers" {
		t.Errorf("filtered results = %v", results)
	}
}

func TestReporters(t *testing.T) {
	results, stats := Run(loadAll(t), Config{})

	var text bytes.Buffer
	r, _ := NewReporter("text", &text, false)
	r.Report(results, stats)
	if !strings.Contains(text.String(), "SKIP pending (waiting on string interpolation)") ||
		!strings.Contains(text.String(), "4 passed, 0 failed, 1 skipped") {
		t.Errorf("text report:\n%s", text.String())
	}

	var js bytes.Buffer
	r, _ = NewReporter("json", &js, false)
	if err := r.Report(results, stats); err != nil {
		t.Fatal(err)
	}
	var summary JSONSummary
	if err := json.Unmarshal(js.Bytes(), &summary); err != nil || summary.Total != 5 {
		t.Errorf("json report: %v %+v", err, summary)
	}

	var xmlOut bytes.Buffer
	r, _ = NewReporter("junit", &xmlOut, false)
	if err := r.Report(results, stats); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(xmlOut.String(), `<testsuite name="monkey" tests="5" failures="0" skipped="1"`) {
		t.Errorf("junit report:\n%s", xmlOut.String())
	}

	if _, err := NewReporter("tap", &text, false); err == nil {
		t.Errorf("unknown format accepted")
	}
}
