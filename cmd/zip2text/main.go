// Package main is the entry point for the zip2text CLI.
package main

import (
	"os"

	"github.com/timmy/zip2text/cmd/zip2text/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
