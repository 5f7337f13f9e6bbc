// Package main is the entry point for the raimemory CLI.
package main

import (
	"github.com/acn-rai/rai-memory/internal/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cli.Version = version
	cli.Execute(cli.NewRootCommand())
}
