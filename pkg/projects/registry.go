// Package projects persists finalized dashboard projects, each bound
// to a folder inside its owner's namespace.
package projects

import (
	"context"

	"github.com/omlboard/omlboard/pkg/models"
)

// CreateProjectRequest describes a project to materialize. SourceDir,
// when set, points at consolidated artifacts to copy into the project
// folder; it is typically a staging session's consolidated directory
// but may be any directory of canonical JSON datasets.
type CreateProjectRequest struct {
	Owner        string   `json:"owner"         validate:"required"`
	Name         string   `json:"name"          validate:"required,min=3"`
	Description  string   `json:"description"`
	Views        []string `json:"views"         validate:"required,min=1"`
	Profile      string   `json:"profile,omitempty"`
	ModulePrefix string   `json:"module_prefix,omitempty"`
	SourceDir    string   `json:"source_dir,omitempty"`
	Overwrite    bool     `json:"overwrite"`
}

type Registry interface {
	Projects(ctx context.Context, owner string) ([]*models.Project, error)
	ProjectByID(ctx context.Context, owner string, id int) (*models.Project, error)
	CreateProject(ctx context.Context, req CreateProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, owner string, id int) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
