// Package main provides the pglisten executable.
package main

import (
	"fmt"
	"os"

	"github.com/coregx/pglisten/cmd/pglisten/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pglisten:", err)
		os.Exit(1)
	}
}
