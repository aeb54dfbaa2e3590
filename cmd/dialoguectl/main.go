// Package main is the entry point for dialoguectl, an offline inspector for
// dialogue tree snapshots.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
