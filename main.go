package main

import (
	"os"

	"github.com/jobscout-dev/jobscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
