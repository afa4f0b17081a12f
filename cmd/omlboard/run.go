package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/omlboard/omlboard/pkg/cmd"
	"github.com/omlboard/omlboard/pkg/consolidate"
	"github.com/omlboard/omlboard/pkg/log"
	"github.com/omlboard/omlboard/pkg/pipeline"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/toolchain"
	"github.com/omlboard/omlboard/pkg/workspace"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run the full pipeline on an OML source archive",
		ArgsUsage: "<source-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workspace-root",
				Usage:   "Directory for the staging workspace",
				Value:   "./workspaces",
				Sources: cli.EnvVars("WORKSPACE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "catalogue-path",
				Usage:   "Directory with additional profile catalogue files",
				Sources: cli.EnvVars("CATALOGUE_PATH"),
			},
			&cli.StringFlag{
				Name:    "registry-url",
				Usage:   "Project registry URL; required with --owner",
				Sources: cli.EnvVars("REGISTRY_URL"),
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Create a project for this owner after a successful match",
			},
			&cli.StringFlag{
				Name:  "project-name",
				Usage: "Name for the created project (defaults to the source basename)",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace an existing project with the same name",
			},
			&cli.BoolFlag{
				Name:  "keep-workspace",
				Usage: "Keep the staging workspace instead of releasing it",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runPipeline,
	}
}

func runPipeline(ctx context.Context, command *cli.Command) error {
	sourcePath := command.Args().First()
	if sourcePath == "" {
		return errors.New("a source file argument is required")
	}

	log.Setup(command.String("log-level"), "text")

	logger := log.WithModule("cli")

	workspaces := workspace.NewManager(command.String("workspace-root"), logger)
	cat := cmd.NewCatalogue(logger, command.String("catalogue-path"))
	eventBus := cmd.NewEventBus("gochannel", logger)

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Warn("Failed to close event bus", "error", err)
		}
	}()

	runner := toolchain.NewExecRunner(toolchain.Config{}, logger)
	orchestrator := pipeline.NewOrchestrator(runner,
		consolidate.NewConsolidator(logger), cat, eventBus, logger)

	session, err := workspaces.Allocate()
	if err != nil {
		return err
	}

	if !command.Bool("keep-workspace") {
		defer func() {
			if err := workspaces.Release(session); err != nil {
				logger.Warn("Failed to release workspace", "error", err)
			}
		}()
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	err = orchestrator.Upload(ctx, session, filepath.Base(sourcePath), source)
	if err != nil {
		return err
	}

	result, err := orchestrator.Build(ctx, session)
	if err != nil {
		if pipeline.IsBuildFailure(err) {
			fmt.Printf("Build failed (exit %d). Log: %s\n", result.ExitCode, result.LogPath)
		}

		return err
	}

	result, err = orchestrator.Query(ctx, session)
	if err != nil {
		if pipeline.IsQueryFailure(err) {
			fmt.Printf("Query stage failed (exit %d). Log: %s\n", result.ExitCode, result.LogPath)
		}

		return err
	}

	report, match, err := orchestrator.ConsolidateAndMatch(ctx, session)
	if err != nil {
		return err
	}

	fmt.Printf("Consolidated %d dataset(s): %s\n",
		len(report.Datasets), strings.Join(report.Datasets, ", "))

	if match.Usable() {
		fmt.Printf("Matched profile: %s\n", match.Profile.Name)
	} else {
		best := "none"
		if match.Profile != nil {
			best = match.Profile.Name
		}

		fmt.Printf("No profile reached full coverage. Best candidate: %s (%.0f%%), missing: %s\n",
			best, match.Score*100, strings.Join(match.Missing, ", "))
	}

	owner := command.String("owner")
	if owner == "" {
		return nil
	}

	if !match.Usable() {
		return errors.New("cannot create a project without a fully matched profile; use the API for partial-match projects")
	}

	registryURL := command.String("registry-url")
	if registryURL == "" {
		return errors.New("--registry-url is required with --owner")
	}

	registry := cmd.NewProjectRegistry(ctx, logger, registryURL, command.String("workspace-root"))
	defer func() {
		if err := registry.Close(ctx); err != nil {
			logger.Warn("Failed to close project registry", "error", err)
		}
	}()

	name := command.String("project-name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}

	project, err := registry.CreateProject(ctx, projects.CreateProjectRequest{
		Owner:        owner,
		Name:         name,
		Views:        match.Profile.Views,
		Profile:      match.Profile.Name,
		ModulePrefix: match.Profile.ModulePrefix,
		SourceDir:    orchestrator.ConsolidatedDir(session),
		Overwrite:    command.Bool("overwrite"),
	})
	if err != nil {
		return err
	}

	err = orchestrator.Finalize(session)
	if err != nil {
		return err
	}

	fmt.Printf("Created project %d (%s) at %s\n", project.ID, project.Name, project.Folder)

	return nil
}
