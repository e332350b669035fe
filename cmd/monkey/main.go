// cmd/monkey/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"monkey/cmd/monkey/commands"
	"monkey/internal/config"
)

const VERSION = "0.1.0"

type command func(*commands.Env, []string) (int, error)

var commandTable = map[string]command{
	"run":       commands.RunCommand,
	"check":     commands.CheckCommand,
	"disasm":    commands.DisasmCommand,
	"ast":       commands.ASTCommand,
	"emit-llvm": commands.EmitLLVMCommand,
	"repl":      commands.ReplCommand,
	"serve":     commands.ServeCommand,
	"history":   commands.HistoryCommand,
	"fmt":       commands.FmtCommand,
	"test":      commands.TestCommand,
	"lsp":       commands.LSPCommand,
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("monkey: ")

	args := os.Args[1:]
	configPath := ""
	if len(args) >= 2 && (args[0] == "-config" || args[0] == "--config") {
		configPath = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "-v", "version":
		fmt.Printf("monkey %s\n", VERSION)
		return
	}

	cmd, ok := commandTable[args[0]]
	if !ok {
		// A bare file name is shorthand for run.
		if _, err := os.Stat(args[0]); err != nil {
			showUsage()
			os.Exit(1)
		}
		cmd, args = commands.RunCommand, append([]string{"run"}, args...)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	code, err := cmd(commands.NewEnv(cfg), args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	os.Exit(code)
}

func showUsage() {
	fmt.Println(`Usage: monkey [-config monkey.yaml] <command> [arguments]

Commands:
  run [-trace] [-profile] [-break L,...] FILE
                        check, compile and execute a program
  check FILE...         type check programs
  disasm FILE           print the bytecode listing
  ast FILE              print the syntax tree
  fmt [-stdout] FILE    rewrite a program in canonical layout
  emit-llvm [-o F] FILE lower a program to LLVM IR
  test [-run S] [-format F] DIR...
                        run programs against their // expect: comments
  repl                  start an interactive session
  serve [-addr A]       start the websocket playground
  lsp                   start the language server on stdio
  history [-n N]        list recent runs
  version               print the version`)
}
