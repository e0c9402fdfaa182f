// Package main provides the entry point for the ptflow-importer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/ptflow-importer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
