package main

import (
	"os"

	"github.com/minichain/minichain/app/minichain/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
