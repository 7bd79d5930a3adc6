// Command cli is the tariff engine command line interface.
package main

import (
	"os"

	"tariff-engine/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
