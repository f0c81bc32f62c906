package main

import (
	"fmt"
	"os"

	"github.com/squealog/squealogd/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "squealogd: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
