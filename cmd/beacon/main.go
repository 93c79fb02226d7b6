// Command beacon runs the webhook notification daemon.
package main

import (
	"os"

	"github.com/xraph/beacon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
