package main

import (
	"flag"
	"os"

	"github.com/nullstream/stackgraph/internal/output"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	pf := addPipelineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := runPipeline(pf)
	if err != nil {
		return err
	}

	gj := output.BuildGraphJSON(result.Graph, &result.Solved, result.Diags)
	if err := output.WriteGraphJSON(os.Stdout, gj); err != nil {
		return err
	}

	result.Diags.WriteTo(os.Stderr)
	return nil
}
