// Package golden runs Monkey programs that carry their expected behaviour
// in comments:
//
//	// expect: a line the program prints
//	// expect-error: a diagnostic or runtime fault, as rendered
//	// expect-exit: 2
//	// skip: reason
package golden

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"monkey/internal/driver"
)

// Case is one program and what it should do.
type Case struct {
	Name       string
	File       string
	Source     string
	Output     []string
	Errors     []string
	Exit       int
	SkipReason string
}

// Result is the outcome of one Case.
type Result struct {
	Name     string
	File     string
	Passed   bool
	Skipped  bool
	Duration time.Duration
	Message  string
}

// Stats summarizes a run.
type Stats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	TotalTime time.Duration
}

type Config struct {
	// Filter keeps only cases whose name contains it.
	Filter   string
	Parallel int
	Run      driver.Options
}

// Discover finds every .mk file under dir, in lexical order.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".mk" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", dir)
	}
	return files, nil
}

// Load reads file and its expectation comments.
func Load(file string) (*Case, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not read file")
	}
	c, err := Parse(strings.TrimSuffix(filepath.Base(file), ".mk"), string(source))
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	c.File = file
	return c, nil
}

// Parse extracts expectations from source. Without an expect-exit
// directive the exit code is 0, or 1 when errors are expected.
func Parse(name, source string) (*Case, error) {
	c := &Case{Name: name, Source: source, Exit: -1}
	for i, line := range strings.Split(source, "\n") {
		idx := strings.Index(line, "//")
		if idx < 0 {
			continue
		}
		comment := strings.TrimSpace(line[idx+2:])
		key, value, ok := strings.Cut(comment, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "expect":
			c.Output = append(c.Output, value)
		case "expect-error":
			c.Errors = append(c.Errors, value)
		case "expect-exit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Errorf("line %d: invalid exit code %q", i+1, value)
			}
			c.Exit = n
		case "skip":
			c.SkipReason = value
		}
	}
	if c.Exit < 0 {
		c.Exit = driver.ExitOK
		if len(c.Errors) > 0 {
			c.Exit = driver.ExitDiagnostics
		}
	}
	return c, nil
}

// Run executes the cases concurrently. Results keep the order of cases.
func Run(cases []*Case, cfg Config) ([]Result, Stats) {
	start := time.Now()
	var selected []*Case
	for _, c := range cases {
		if cfg.Filter == "" || strings.Contains(c.Name, cfg.Filter) {
			selected = append(selected, c)
		}
	}

	results := make([]Result, len(selected))
	var g errgroup.Group
	if cfg.Parallel > 0 {
		g.SetLimit(cfg.Parallel)
	}
	for i, c := range selected {
		g.Go(func() error {
			results[i] = runCase(c, cfg.Run)
			return nil
		})
	}
	g.Wait()

	stats := Stats{Total: len(results), TotalTime: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return results, stats
}

func runCase(c *Case, opts driver.Options) Result {
	result := Result{Name: c.Name, File: c.File}
	if c.SkipReason != "" {
		result.Skipped = true
		result.Message = c.SkipReason
		return result
	}

	start := time.Now()
	res, out, err := driver.RunCaptured(c.Source, opts)
	result.Duration = time.Since(start)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	var problems []string
	got := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if out == "" {
		got = nil
	}
	if msg := compare("output", c.Output, got); msg != "" {
		problems = append(problems, msg)
	}
	if msg := compare("diagnostics", c.Errors, res.Messages()); msg != "" {
		problems = append(problems, msg)
	}
	if res.ExitCode != c.Exit {
		problems = append(problems, fmt.Sprintf("exit code %d, want %d", res.ExitCode, c.Exit))
	}
	result.Passed = len(problems) == 0
	result.Message = strings.Join(problems, "\n")
	return result
}

func compare(what string, want, got []string) string {
	if len(want) == len(got) {
		same := true
		for i := range want {
			if want[i] != got[i] {
				same = false
				break
			}
		}
		if same {
			return ""
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s differ:", what)
	for _, w := range want {
		fmt.Fprintf(&sb, "\n  want %s", w)
	}
	for _, g := range got {
		fmt.Fprintf(&sb, "\n  got  %s", g)
	}
	return sb.String()
}
