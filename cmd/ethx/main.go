// Command ethx is a CLI for exploring Ethereum chain data through a
// resilient, cached JSON-RPC extraction core.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
