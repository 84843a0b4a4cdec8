package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nullstream/stackgraph/internal/dotgraph"
)

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	pf := addPipelineFlags(fs)
	out := fs.String("o", "", "output path for the DOT document (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := runPipeline(pf)
	if err != nil {
		return err
	}

	dot := dotgraph.Emit(result.Graph, &result.Solved)

	if *out == "" {
		fmt.Print(dot)
	} else {
		if err := os.WriteFile(*out, []byte(dot), 0644); err != nil {
			return fmt.Errorf("write %s: %w", *out, err)
		}
	}

	result.Diags.WriteTo(os.Stderr)
	return nil
}
