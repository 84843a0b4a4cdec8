package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "version":
		err = cmdVersion(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "stackgraph: "+err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `stackgraph — static stack-usage analysis for compiled embedded binaries

Usage:
  stackgraph analyze --ir <path> --elf <path> [--triple <target>] [--start <symbol>] [--strict] [-o <path>]
       Run the full pipeline and emit a DOT call graph with stack-bound annotations.

  stackgraph graph --ir <path> --elf <path> [flags]
       Run the pipeline and emit the intermediate call graph as JSON.

  stackgraph version
       Print the build version.
`)
}
