package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `bpindex - disk B+ tree index tool

Usage:
  bpindex <command> [options] NAME

NAME is the base name of the data set: the index lives in NAME.idx and the
records in the NAME.tbl directory.

Commands:
  load        Append records and index their keys
  search      Look up one key or scan a key range
  stat        Show tree shape and file statistics
  dump        Print every node, or the tree as Graphviz DOT
  verify      Check the tree's structural invariants

Common options:
  -page-size int
        Page size in bytes (default 1024)
  -cache string
        Page cache: clock, ristretto or none (default "clock")
  -cache-pages int
        Pages held by the cache (default 64)
  -v    Debug logging

Use "bpindex <command> -h" for the options of a command.
`)
}
