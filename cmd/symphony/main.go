// Command symphony drives a dependency-ordered plan of phases to completion.
package main

import (
	"os"

	"github.com/Iron-Ham/symphony/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
