// swarmctl inspects and edits the SwarmClone desktop configuration.
package main

import (
	"fmt"
	"os"

	"swarmclone-desktop/internal/cmd"
)

var (
	run    = func() error { return cmd.Execute() }
	osExit = os.Exit
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}
