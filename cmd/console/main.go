package main

import (
	"os"

	"admin-console/cmd/console/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
