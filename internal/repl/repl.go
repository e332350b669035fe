// internal/repl/repl.go
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"monkey/internal/driver"
	"monkey/internal/reporting"
)

const (
	historyFile = ".monkey_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

// Start runs an interactive session on the terminal until :quit or EOF.
func Start(opts driver.Options, color string) error {
	fmt.Println("Monkey REPL | :quit to exit, :reset to start over, :disasm to list bytecode")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	session := NewSession(opts)
	reporter := reporting.New(os.Stderr, color)

	for {
		code, ok := readBalanced(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit":
				return nil
			case ":reset":
				session.Reset()
			case ":disasm":
				listing, diags, err := session.Disassemble()
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				reporter.Report(diags)
				fmt.Print(listing)
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		output, diags, err := session.Eval(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if reporter.Report(diags) == 0 {
			fmt.Print(output)
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readBalanced keeps prompting while braces, brackets or parentheses are
// open so multi-line functions can be entered.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err == io.EOF || err == liner.ErrPromptAborted {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// depth counts unclosed delimiters outside string and char literals.
func depth(src string) int {
	n := 0
	var quote rune
	escaped := false
	for _, r := range src {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '{' || r == '[' || r == '(':
			n++
		case r == '}' || r == ']' || r == ')':
			n--
		}
	}
	return n
}
