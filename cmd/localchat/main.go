// Package main provides the entrypoint for the localchat CLI and daemon.
package main

import (
	"fmt"
	"os"

	"localchat.dev/go/localchat/internal/cli"
)

// Set via ldflags at release time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version)
	cli.SetBuildInfo(commit, buildDate)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
