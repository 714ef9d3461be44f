// Package main provides the entry point for the search-mcp binary.
package main

import (
	"os"

	"github.com/tutao/search-core/cmd/search-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
