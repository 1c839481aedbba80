// Command filingintel extracts structured governance and event signals from
// regulatory filings. It serves the engine over MCP stdio and exposes every
// operation as a subcommand printing the JSON envelope.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
