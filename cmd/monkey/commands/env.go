// cmd/monkey/commands/env.go
package commands

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"monkey/internal/config"
	"monkey/internal/driver"
	"monkey/internal/reporting"
)

// Env is what every command runs against.
type Env struct {
	Config *config.Config
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewEnv(cfg *config.Config) *Env {
	return &Env{Config: cfg, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (e *Env) reporter() *reporting.Reporter {
	return reporting.New(e.Stderr, e.Config.Color)
}

func (e *Env) runOptions() driver.Options {
	return driver.Options{
		ExitFromMain: e.Config.ExitFromMain,
		MaxCallDepth: e.Config.MaxCallDepth,
		Output:       e.Stdout,
	}
}

func readSource(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "could not read file")
	}
	return string(source), nil
}

// oneFile returns the single file argument of a command.
func oneFile(command string, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.Errorf("usage: monkey %s FILE", command)
	}
	return args[0], nil
}
