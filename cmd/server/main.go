package main

import (
	"os"

	"github.com/dmytrogajewski/ett-summary/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
