package golden

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Reporter renders the results of a run.
type Reporter interface {
	Report(results []Result, stats Stats) error
}

// NewReporter returns the reporter for format: text, json or junit.
func NewReporter(format string, w io.Writer, verbose bool) (Reporter, error) {
	switch format {
	case "", "text":
		return &TextReporter{out: w, verbose: verbose}, nil
	case "json":
		return &JSONReporter{out: w}, nil
	case "junit":
		return &JUnitReporter{out: w, suite: "monkey"}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

// TextReporter outputs human-readable results.
type TextReporter struct {
	out     io.Writer
	verbose bool
}

func (r *TextReporter) Report(results []Result, stats Stats) error {
	for _, res := range results {
		switch {
		case res.Skipped:
			fmt.Fprintf(r.out, "SKIP %s (%s)\n", res.Name, res.Message)
		case res.Passed:
			if r.verbose {
				fmt.Fprintf(r.out, "PASS %s (%v)\n", res.Name, res.Duration)
			}
		default:
			fmt.Fprintf(r.out, "FAIL %s (%v)\n", res.Name, res.Duration)
			for _, line := range strings.Split(res.Message, "\n") {
				fmt.Fprintf(r.out, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(r.out, "%d passed, %d failed, %d skipped in %v\n", stats.Passed, stats.Failed, stats.Skipped, stats.TotalTime)
	return nil
}

// JSONReporter outputs results in JSON format.
type JSONReporter struct {
	out io.Writer
}

type JSONTestResult struct {
	Test     string  `json:"test"`
	File     string  `json:"file"`
	Passed   bool    `json:"passed"`
	Skipped  bool    `json:"skipped"`
	Duration float64 `json:"duration"`
	Message  string  `json:"message,omitempty"`
}

type JSONSummary struct {
	Total   int              `json:"total"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Time    float64          `json:"time"`
	Results []JSONTestResult `json:"results"`
}

func (r *JSONReporter) Report(results []Result, stats Stats) error {
	summary := JSONSummary{
		Total:   stats.Total,
		Passed:  stats.Passed,
		Failed:  stats.Failed,
		Skipped: stats.Skipped,
		Time:    stats.TotalTime.Seconds(),
		Results: make([]JSONTestResult, 0, len(results)),
	}
	for _, res := range results {
		summary.Results = append(summary.Results, JSONTestResult{
			Test:     res.Name,
			File:     res.File,
			Passed:   res.Passed,
			Skipped:  res.Skipped,
			Duration: res.Duration.Seconds(),
			Message:  res.Message,
		})
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// JUnitReporter outputs results in JUnit XML format.
type JUnitReporter struct {
	out   io.Writer
	suite string
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

func (r *JUnitReporter) Report(results []Result, stats Stats) error {
	suite := JUnitTestSuite{
		Name:     r.suite,
		Tests:    stats.Total,
		Failures: stats.Failed,
		Skipped:  stats.Skipped,
		Time:     stats.TotalTime.Seconds(),
	}
	for _, res := range results {
		tc := JUnitTestCase{Name: res.Name, ClassName: res.File, Time: res.Duration.Seconds()}
		switch {
		case res.Skipped:
			tc.Skipped = &JUnitSkipped{Message: res.Message}
		case !res.Passed:
			first, _, _ := strings.Cut(res.Message, "\n")
			tc.Failure = &JUnitFailure{Message: first, Content: res.Message}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	if _, err := io.WriteString(r.out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(r.out)
	enc.Indent("", "  ")
	if err := enc.Encode(suite); err != nil {
		return err
	}
	_, err := io.WriteString(r.out, "\n")
	return err
}
