// Package main is the single-binary entrypoint for Lock In.
// One binary serves the progression API and operates on users from the shell.
package main

import "github.com/lockin-app/lockin/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
