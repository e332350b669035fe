// cmd/monkey/commands/serve.go
package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"monkey/internal/driver"
	"monkey/internal/history"
	"monkey/internal/lsp"
	"monkey/internal/playground"
	"monkey/internal/repl"
)

// ReplCommand starts an interactive session.
func ReplCommand(env *Env, args []string) (int, error) {
	if err := repl.Start(env.runOptions(), env.Config.Color); err != nil {
		return driver.ExitDiagnostics, err
	}
	return driver.ExitOK, nil
}

// LSPCommand speaks the language server protocol on stdin and stdout.
func LSPCommand(env *Env, args []string) (int, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := lsp.NewServer(env.Stdin, env.Stdout, env.Stderr).Start(ctx); err != nil {
		return driver.ExitDiagnostics, err
	}
	return driver.ExitOK, nil
}

// ServeCommand runs the websocket playground until interrupted.
func ServeCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", env.Config.Serve.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := playground.Options{
		Addr:           *addr,
		MaxSourceBytes: env.Config.Serve.MaxSourceBytes,
		Timeout:        env.Config.Serve.Timeout,
		Run:            env.runOptions(),
	}
	opts.Run.Output = nil
	opts.Run.MaxInstructions = env.Config.Serve.MaxInstructions
	if env.Config.History.Enabled {
		store, err := history.Open(ctx, env.Config.History.Driver, env.Config.History.DSN)
		if err != nil {
			return driver.ExitDiagnostics, err
		}
		defer store.Close()
		opts.History = store
	}

	if err := playground.New(opts).ListenAndServe(ctx); err != nil {
		return driver.ExitDiagnostics, err
	}
	return driver.ExitOK, nil
}

// HistoryCommand lists recent runs.
func HistoryCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	n := fs.Int("n", 20, "number of runs to show")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := history.Open(ctx, env.Config.History.Driver, env.Config.History.DSN)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, *n)
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	for _, run := range runs {
		fmt.Fprintf(env.Stdout, "%s  %-20s exit=%d  %-8s %s\n",
			run.ID[:8], run.File, run.ExitCode, run.Duration.Round(time.Microsecond), humanize.Time(run.StartedAt))
		for _, d := range run.Diagnostics {
			fmt.Fprintf(env.Stdout, "    %s\n", d)
		}
	}
	return driver.ExitOK, nil
}
