package main

import (
	"os"

	"github.com/LerianStudio/midaz-flow/cmd/midaz-flow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
