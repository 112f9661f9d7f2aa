package main

import (
	"os"

	"github.com/turbokube/potr/pkg/engine"
)

// main only delegates to the root cobra command defined in root.go
func main() {
	if err := rootCmd.Execute(); err != nil {
		if code := engine.ExitCode(err); code > 0 {
			os.Exit(code)
		}
		os.Exit(1)
	}
}
