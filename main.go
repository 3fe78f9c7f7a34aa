// Package main is the entry point for grbr, the GOES Rebroadcast product reconstructor.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/grbr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
