// Command dramsim-bench drives the dramsim simulator from the command line.
package main

import (
	"github.com/rcjacoby/dramsim3go/cmd/dramsim-bench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.Exit("error: %v", err)
	}
}
