package main

import (
	"os"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
