// cmd/monkey/commands/run.go
package commands

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"monkey/internal/debugger"
	"monkey/internal/driver"
	"monkey/internal/history"
)

// RunCommand executes a program and returns its exit code. Debugger output
// goes to stderr so it never mixes with the program's own output.
func RunCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	trace := fs.Bool("trace", false, "trace every instruction")
	profile := fs.Bool("profile", false, "print per-function instruction counts")
	breaks := fs.String("break", "", "comma separated source lines to stop at")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}
	file, err := oneFile("run", fs.Args())
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	source, err := readSource(file)
	if err != nil {
		return driver.ExitDiagnostics, err
	}

	opts := env.runOptions()
	var dbg *debugger.Debugger
	if *trace || *profile || *breaks != "" {
		dbg = debugger.NewDebugger(env.Stderr)
		dbg.SetTrace(*trace)
		for _, field := range strings.Split(*breaks, ",") {
			if field = strings.TrimSpace(field); field == "" {
				continue
			}
			line, err := strconv.Atoi(field)
			if err != nil || line <= 0 {
				return driver.ExitDiagnostics, errors.Errorf("invalid breakpoint line %q", field)
			}
			dbg.AddBreakpoint(line)
		}
		opts.Hook = dbg
	}

	started := time.Now()
	res, err := driver.Run(source, opts)
	if err != nil {
		return driver.ExitRuntimeFault, err
	}
	env.reporter().WithTrace(true).Report(res.Diagnostics)
	if dbg != nil && *profile {
		dbg.WriteProfile(env.Stderr)
	}

	if env.Config.History.Enabled {
		if err := record(env, file, source, res, started); err != nil {
			fmt.Fprintf(env.Stderr, "warning: %v\n", err)
		}
	}
	return res.ExitCode, nil
}

func record(env *Env, file, source string, res *driver.Result, started time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := history.Open(ctx, env.Config.History.Driver, env.Config.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Record(ctx, history.Run{
		File:        file,
		SourceHash:  history.Hash(source),
		ExitCode:    res.ExitCode,
		Diagnostics: res.Messages(),
		Duration:    res.Duration,
		StartedAt:   started,
	})
	return err
}
