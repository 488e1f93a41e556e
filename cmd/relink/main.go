// Package main provides the entry point for the relink CLI.
package main

import (
	"os"

	"github.com/relinkhq/relink/cmd/relink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
