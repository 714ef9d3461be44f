// Package main provides the entry point for the search-cli binary.
package main

import (
	"os"

	"github.com/tutao/search-core/cmd/search-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
