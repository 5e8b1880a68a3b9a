// Command vaultd runs the end-to-end encrypted file locker server.
package main

import (
	"fmt"
	"os"

	"github.com/vaultd/vaultd/cmd/vaultd/commands"
)

// Build-time variables injected via ldflags.
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
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
