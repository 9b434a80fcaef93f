// Command hapd runs the HomeKit Accessory Protocol IP transport core.
package main

import (
	"fmt"
	"os"

	"github.com/hapcore/hapd/cmd/hapd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
