// Command projmerge compiles CUE query plans and merges stacked
// projections with the InlineProjections rule set.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/projmerge/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		// Commands report ExitErrors themselves; anything else (bad
		// flags, wrong argument count) has not been printed yet.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
