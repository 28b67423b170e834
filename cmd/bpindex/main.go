// Package main provides the bpindex command line tool for building and
// inspecting disk B+ tree index files.
package main

import (
	"fmt"
	"io"
	"os"
)

// Output targets, swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args))
}

// run executes the CLI and returns an exit code.
func run(args []string) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 1
	}

	switch args[1] {
	case "load":
		return loadCmd(args[2:])
	case "search":
		return searchCmd(args[2:])
	case "stat":
		return statCmd(args[2:])
	case "dump":
		return dumpCmd(args[2:])
	case "verify":
		return verifyCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(stderr, "Run 'bpindex help' for usage.")
		return 1
	}
}
