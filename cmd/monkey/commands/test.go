// cmd/monkey/commands/test.go
package commands

import (
	"flag"

	"monkey/internal/driver"
	"monkey/internal/golden"
)

// TestCommand runs every .mk program under the given directories against
// the expectations written in its comments.
func TestCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	format := fs.String("format", "text", "report format: text, json or junit")
	filter := fs.String("run", "", "only run programs whose name contains this")
	verbose := fs.Bool("v", false, "list passing programs too")
	parallel := fs.Int("parallel", 8, "programs run at once")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}
	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	reporter, err := golden.NewReporter(*format, env.Stdout, *verbose)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	var cases []*golden.Case
	for _, dir := range dirs {
		files, err := golden.Discover(dir)
		if err != nil {
			return driver.ExitDiagnostics, err
		}
		for _, file := range files {
			c, err := golden.Load(file)
			if err != nil {
				return driver.ExitDiagnostics, err
			}
			cases = append(cases, c)
		}
	}

	results, stats := golden.Run(cases, golden.Config{Filter: *filter, Parallel: *parallel, Run: env.runOptions()})
	if err := reporter.Report(results, stats); err != nil {
		return driver.ExitDiagnostics, err
	}
	if stats.Failed > 0 {
		return driver.ExitDiagnostics, nil
	}
	return driver.ExitOK, nil
}
