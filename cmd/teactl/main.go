// Command teactl is the scriptable companion of the interactive tea diary
// client.
package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/teadiary/internal/client/cli"
)

func main() {
	if err := cli.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
