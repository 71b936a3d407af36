// Package main provides the entry point for the baw CLI.
package main

import (
	"os"

	"github.com/vinhtt95/BAWorkbench-sub000/cmd/baw/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
