// Package main provides the OMLBoard command line interface.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "omlboard",
		Usage:                 "Build ontology dashboards from OML sources",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			ProfilesCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
