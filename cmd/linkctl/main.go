// Command linkctl is the operator CLI for LinkShield: schema migrations,
// ad-hoc URL classification, safety sweeps, link stats and owner tokens.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
