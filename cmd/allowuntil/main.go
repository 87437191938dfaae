// Package main provides the allowuntil CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/allowuntil/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
