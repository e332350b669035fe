// cmd/monkey/commands/format.go
package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"monkey/internal/driver"
	"monkey/internal/formatter"
)

// FmtCommand rewrites a program in canonical layout. With -stdout the
// result is printed instead.
func FmtCommand(env *Env, args []string) (int, error) {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	toStdout := fs.Bool("stdout", false, "print the formatted program instead of rewriting the file")
	if err := fs.Parse(args); err != nil {
		return driver.ExitDiagnostics, err
	}
	file, err := oneFile("fmt", fs.Args())
	if err != nil {
		return driver.ExitDiagnostics, err
	}
	source, err := readSource(file)
	if err != nil {
		return driver.ExitDiagnostics, err
	}

	formatted, diags := formatter.Source(source)
	if env.reporter().ReportFile(file, diags) > 0 {
		return driver.ExitDiagnostics, nil
	}
	if *toStdout {
		fmt.Fprint(env.Stdout, formatted)
		return driver.ExitOK, nil
	}
	if formatted == source {
		return driver.ExitOK, nil
	}
	if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
		return driver.ExitDiagnostics, errors.Wrapf(err, "write %s", file)
	}
	fmt.Fprintf(env.Stdout, "%s: formatted\n", file)
	return driver.ExitOK, nil
}
