package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/projects/file"
	"github.com/omlboard/omlboard/pkg/projects/postgresql"
)

// NewProjectRegistry creates a project registry based on the URL
// scheme. Postgres URLs get the SQL registry with artifacts under
// artifactsRoot; anything else is treated as a filesystem root.
func NewProjectRegistry(ctx context.Context, logger *slog.Logger, registryURL, artifactsRoot string) projects.Registry {
	switch parseRegistryProvider(registryURL) {
	case "postgres", "postgresql":
		registry, err := postgresql.NewRegistry(ctx, logger, registryURL, artifactsRoot)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL project registry: %w", err))
		}

		return registry
	default:
		return file.NewRegistry(registryURL, logger)
	}
}

func parseRegistryProvider(registryURL string) string {
	provider, _, found := strings.Cut(registryURL, "://")
	if !found {
		return "file"
	}

	return provider
}
