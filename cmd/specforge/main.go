package main

import (
	"fmt"
	"os"

	"github.com/specforge/specforge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own structured errors; here we only map the
		// error to its exit code.
		code := cli.GetExitCode(err)
		if code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}
