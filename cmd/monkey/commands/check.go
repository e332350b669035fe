// cmd/monkey/commands/check.go
package commands

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"monkey/internal/driver"
	"monkey/internal/errors"
)

// CheckCommand type checks every file concurrently and reports the
// diagnostics in argument order.
func CheckCommand(env *Env, args []string) (int, error) {
	if len(args) == 0 {
		return driver.ExitDiagnostics, pkgerrors.New("usage: monkey check FILE...")
	}

	results := make([][]*errors.Diagnostic, len(args))
	var g errgroup.Group
	g.SetLimit(8)
	for i, file := range args {
		g.Go(func() error {
			source, err := readSource(file)
			if err != nil {
				return pkgerrors.Wrap(err, file)
			}
			results[i] = driver.Check(source)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return driver.ExitDiagnostics, err
	}

	reporter := env.reporter()
	total := 0
	for i, file := range args {
		total += reporter.ReportFile(file, results[i])
	}
	if total > 0 {
		return driver.ExitDiagnostics, nil
	}
	fmt.Fprintf(env.Stdout, "%d file(s) OK\n", len(args))
	return driver.ExitOK, nil
}
