package main

import (
	"os"

	"github.com/tessera-search/tessera/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
