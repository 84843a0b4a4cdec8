package main

import "fmt"

// version is set at release time; "dev" covers local builds.
var version = "dev"

func cmdVersion(args []string) error {
	fmt.Println("stackgraph " + version)
	return nil
}
