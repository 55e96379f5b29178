// Command ishmael is a command line client for the Ishmael Insights API.
package main

import "github.com/Sternrassler/ishmael-client/internal/cli"

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.Execute(version)
}
