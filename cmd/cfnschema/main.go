package main

import (
	"os"

	"github.com/cfnschema/cfnschema/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
