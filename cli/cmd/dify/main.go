// Command dify is a terminal client for Dify applications.
package main

import (
	"errors"
	"os"

	"github.com/petal-labs/dify-go/cli/commands"
)

// ExitCoder is an interface for errors that have an exit code.
type ExitCoder interface {
	ExitCode() int
}

func main() {
	if err := commands.Execute(); err != nil {
		var ec ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}
