// Package file provides filesystem-backed project registry storage.
// Each project folder carries its own metadata record, so the registry
// can be reconstructed from the folder tree alone.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/omlboard/omlboard/pkg/models"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/workspace"
)

const metadataFile = "project.json"

// Registry implements projects.Registry on a directory tree:
// <root>/<owner>/<project_folder>/.
type Registry struct {
	root     string
	logger   *slog.Logger
	validate *validator.Validate

	// Creation for one owner is serialized; id assignment and folder
	// existence checks race otherwise.
	mu sync.Mutex
}

func NewRegistry(root string, logger *slog.Logger) *Registry {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Registry{
		root:     cleanRoot,
		logger:   logger.With("module", "projects"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (r *Registry) Close(_ context.Context) error {
	return nil
}

func (r *Registry) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(r.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (r *Registry) Projects(ctx context.Context, owner string) ([]*models.Project, error) {
	err := workspace.SanitizeName(owner)
	if err != nil {
		return nil, projects.NewProjectError("List", owner, 0, projects.ErrInvalidName)
	}

	ownerDir := filepath.Join(r.root, owner)

	entries, err := os.ReadDir(ownerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Project{}, nil
		}

		return nil, projects.NewProjectError("List", owner, 0, err)
	}

	list := make([]*models.Project, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		project, err := r.readMetadata(filepath.Join(ownerDir, entry.Name()))
		if err != nil {
			r.logger.Warn("Skipping project folder without readable metadata",
				"owner", owner, "folder", entry.Name(), "error", err)

			continue
		}

		list = append(list, project)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list, nil
}

func (r *Registry) ProjectByID(ctx context.Context, owner string, id int) (*models.Project, error) {
	list, err := r.Projects(ctx, owner)
	if err != nil {
		return nil, err
	}

	for _, project := range list {
		if project.ID == id {
			return project, nil
		}
	}

	return nil, projects.NewProjectError("Get", owner, id, projects.ErrProjectNotFound)
}

// CreateProject copies finalized artifacts into the owner's namespace
// and persists the record. A pre-existing target folder without the
// overwrite flag fails with a name collision and leaves the existing
// project untouched.
func (r *Registry) CreateProject(ctx context.Context, req projects.CreateProjectRequest) (*models.Project, error) {
	err := r.validate.Struct(req)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	err = workspace.SanitizeName(req.Owner)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, projects.ErrInvalidName)
	}

	folder, err := projects.FolderName(req.Name)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	targetDir := filepath.Join(r.root, req.Owner, folder)

	if _, err := os.Stat(targetDir); err == nil {
		if !req.Overwrite {
			return nil, projects.NewProjectError("Create", req.Owner, 0, projects.ErrNameCollision)
		}

		err = os.RemoveAll(targetDir)
		if err != nil {
			return nil, projects.NewProjectError("Create", req.Owner, 0, err)
		}
	}

	id, err := r.nextID(ctx, req.Owner)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	err = os.MkdirAll(targetDir, 0o755)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	if req.SourceDir != "" {
		err = projects.CopyArtifacts(req.SourceDir, targetDir)
		if err != nil {
			r.removePartial(targetDir)

			return nil, projects.NewProjectError("Create", req.Owner, 0, err)
		}

		projects.MaterializeCSVs(targetDir, r.logger)
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Views:        req.Views,
		Folder:       targetDir,
		Profile:      req.Profile,
		ModulePrefix: req.ModulePrefix,
		Owner:        req.Owner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.writeMetadata(project)
	if err != nil {
		r.removePartial(targetDir)

		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	r.logger.Info("Created project",
		"owner", req.Owner, "project_id", id, "name", req.Name, "profile", req.Profile)

	return project, nil
}

func (r *Registry) UpdateProject(ctx context.Context, project *models.Project) error {
	existing, err := r.ProjectByID(ctx, project.Owner, project.ID)
	if err != nil {
		return err
	}

	project.Folder = existing.Folder
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now().UTC()

	err = r.writeMetadata(project)
	if err != nil {
		return projects.NewProjectError("Update", project.Owner, project.ID, err)
	}

	return nil
}

func (r *Registry) DeleteProject(ctx context.Context, owner string, id int) error {
	project, err := r.ProjectByID(ctx, owner, id)
	if err != nil {
		return err
	}

	err = os.RemoveAll(project.Folder)
	if err != nil {
		return projects.NewProjectError("Delete", owner, id, err)
	}

	return nil
}

// removePartial clears the target folder of a failed create so the
// name stays available for a retry; a leftover empty folder would read
// as a name collision.
func (r *Registry) removePartial(targetDir string) {
	err := os.RemoveAll(targetDir)
	if err != nil {
		r.logger.Warn("Failed to remove partial project folder",
			"folder", targetDir, "error", err)
	}
}

// nextID assigns ids monotonically per owner.
func (r *Registry) nextID(ctx context.Context, owner string) (int, error) {
	list, err := r.Projects(ctx, owner)
	if err != nil {
		return 0, err
	}

	maxID := 0

	for _, project := range list {
		if project.ID > maxID {
			maxID = project.ID
		}
	}

	return maxID + 1, nil
}

func (r *Registry) readMetadata(folder string) (*models.Project, error) {
	raw, err := os.ReadFile(filepath.Join(folder, metadataFile))
	if err != nil {
		return nil, err
	}

	var project models.Project

	err = json.Unmarshal(raw, &project)
	if err != nil {
		return nil, fmt.Errorf("malformed metadata: %w", err)
	}

	return &project, nil
}

func (r *Registry) writeMetadata(project *models.Project) error {
	raw, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(project.Folder, metadataFile), append(raw, '\n'), 0o644)
}
