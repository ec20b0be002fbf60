// Package main provides the entry point for the countercurse CLI.
package main

import (
	"os"

	"github.com/countercurse/countercurse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
