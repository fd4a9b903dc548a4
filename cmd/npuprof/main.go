// Command npuprof ingests accelerator profiling telemetry into SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/npuprof/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "npuprof:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
