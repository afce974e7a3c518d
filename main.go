package main

import (
	"os"

	"github.com/ridersafe/fall-sentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
