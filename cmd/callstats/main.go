package main

import (
	"os"

	"github.com/psantana5/callstats/cmd/callstats/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
