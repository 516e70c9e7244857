// Command lattice checks style sheets and inspects scenes headlessly.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/lattice/cmd/lattice/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
