package main

import (
	"os"

	"github.com/STRATINT/citypulse/internal/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		os.Exit(1)
	}
}
