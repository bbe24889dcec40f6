package main

import (
	"os"

	"github.com/roeimichael/VarProject/cmd/varwatch/commands"
)

// main is the entry point for the varwatch CLI
// ⭐ unified CLI entry point: go run ./cmd/varwatch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
