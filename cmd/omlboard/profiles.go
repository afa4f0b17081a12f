package main

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/omlboard/omlboard/pkg/cmd"
	"github.com/omlboard/omlboard/pkg/log"
)

func ProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:    "profiles",
		Aliases: []string{"p"},
		Usage:   "Inspect the dashboard profile catalogue",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List registered profiles and their required datasets",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "catalogue-path",
						Usage:   "Directory with additional profile catalogue files",
						Sources: cli.EnvVars("CATALOGUE_PATH"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "warn",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"), "text")

					logger := log.WithModule("cli")
					cat := cmd.NewCatalogue(logger, command.String("catalogue-path"))

					for _, profile := range cat.Profiles() {
						fmt.Printf("%s\n", profile.Name)
						fmt.Printf("  required: %s\n", strings.Join(profile.RequiredDatasets, ", "))
						fmt.Printf("  views:    %s\n", strings.Join(profile.Views, ", "))

						if profile.ModulePrefix != "" {
							fmt.Printf("  prefix:   %s\n", profile.ModulePrefix)
						}
					}

					return nil
				},
			},
		},
	}
}
