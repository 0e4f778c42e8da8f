// Command scan is the statistical model checker for Channel Systems.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scan/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
