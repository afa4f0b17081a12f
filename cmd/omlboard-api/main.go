package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/omlboard/omlboard/pkg/cmd"
	"github.com/omlboard/omlboard/pkg/consolidate"
	"github.com/omlboard/omlboard/pkg/log"
	"github.com/omlboard/omlboard/pkg/pipeline"
	"github.com/omlboard/omlboard/pkg/toolchain"
	"github.com/omlboard/omlboard/pkg/workspace"
)

const defaultPort = 9094

func main() {
	command := &cli.Command{
		Name:                  "omlboard-api",
		Usage:                 "Build, query and publish ontology dashboards",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "registry-url",
				Usage:    "Project registry URL (file://<dir> or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("REGISTRY_URL"),
			},
			&cli.StringFlag{
				Name:    "artifacts-root",
				Usage:   "Directory for project artifacts when the registry is SQL-backed",
				Value:   "./projects",
				Sources: cli.EnvVars("ARTIFACTS_ROOT"),
			},
			&cli.StringFlag{
				Name:    "workspace-root",
				Usage:   "Directory for per-session staging workspaces",
				Value:   "./workspaces",
				Sources: cli.EnvVars("WORKSPACE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "catalogue-path",
				Usage:   "Directory with additional profile catalogue files",
				Sources: cli.EnvVars("CATALOGUE_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Usage:   "Age after which abandoned staging sessions are swept",
				Value:   4 * time.Hour,
				Sources: cli.EnvVars("SESSION_TTL"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the workspace janitor",
				Value:   "@every 15m",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing OMLBoard API")

			workspaces := workspace.NewManager(command.String("workspace-root"), logger)

			janitor := workspace.NewJanitor(workspaces, command.Duration("session-ttl"))

			err := janitor.Start(command.String("sweep-schedule"))
			if err != nil {
				return err
			}
			defer janitor.Stop()

			registry := cmd.NewProjectRegistry(ctx, logger,
				command.String("registry-url"), command.String("artifacts-root"))
			defer func() {
				err := registry.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close project registry", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			cat := cmd.NewCatalogue(logger, command.String("catalogue-path"))

			runner := toolchain.NewExecRunner(toolchain.Config{}, logger)
			orchestrator := pipeline.NewOrchestrator(runner,
				consolidate.NewConsolidator(logger), cat, eventBus, logger)

			api := NewAPI(logger, workspaces, orchestrator, cat, registry, eventBus)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
