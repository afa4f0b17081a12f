// Package postgresql provides PostgreSQL-backed project registry
// storage. Records live in the database; the dashboard artifacts for
// each project still live on disk under the artifacts root.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/lib/pq"

	"github.com/omlboard/omlboard/pkg/models"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/projects/sqlbase"
	"github.com/omlboard/omlboard/pkg/workspace"
)

// Registry implements projects.Registry on PostgreSQL.
type Registry struct {
	db            *sql.DB
	logger        *slog.Logger
	validate      *validator.Validate
	artifactsRoot string
}

// NewRegistry connects, runs migrations, and returns a registry whose
// project folders are created under artifactsRoot.
func NewRegistry(ctx context.Context, logger *slog.Logger, databaseURL, artifactsRoot string) (*Registry, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Registry{
		db:            database,
		logger:        logger.With("module", "projects"),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		artifactsRoot: artifactsRoot,
	}, nil
}

// Close closes the database connection.
func (r *Registry) Close(_ context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *Registry) HealthCheck(ctx context.Context) error {
	err := r.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (r *Registry) Projects(ctx context.Context, owner string) ([]*models.Project, error) {
	err := workspace.SanitizeName(owner)
	if err != nil {
		return nil, projects.NewProjectError("List", owner, 0, projects.ErrInvalidName)
	}

	query := `
		SELECT
			owner
		  , id
		  , name
		  , description
		  , views
		  , folder
		  , profile
		  , module_prefix
		  , created_at
		  , updated_at
		FROM projects
		WHERE owner = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, projects.NewProjectError("List", owner, 0, err)
	}

	defer func(ctx context.Context, r *Registry) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	list := make([]*models.Project, 0)

	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, projects.NewProjectError("List", owner, 0, err)
		}

		list = append(list, project)
	}

	err = rows.Err()
	if err != nil {
		return nil, projects.NewProjectError("List", owner, 0, err)
	}

	return list, nil
}

func (r *Registry) ProjectByID(ctx context.Context, owner string, id int) (*models.Project, error) {
	query := `
		SELECT
			owner
		  , id
		  , name
		  , description
		  , views
		  , folder
		  , profile
		  , module_prefix
		  , created_at
		  , updated_at
		FROM projects
		WHERE owner = $1 AND id = $2
	`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, owner, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, projects.NewProjectError("Get", owner, id, projects.ErrProjectNotFound)
		}

		return nil, projects.NewProjectError("Get", owner, id, err)
	}

	return project, nil
}

// CreateProject stages artifacts on disk, then inserts the record. The
// id is assigned per owner inside the insert transaction.
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

	targetDir := filepath.Join(r.artifactsRoot, req.Owner, folder)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	defer func() { _ = tx.Rollback() }()

	var existingID int

	err = tx.QueryRowContext(ctx,
		"SELECT id FROM projects WHERE owner = $1 AND folder = $2 FOR UPDATE",
		req.Owner, targetDir).Scan(&existingID)

	switch {
	case err == nil:
		if !req.Overwrite {
			return nil, projects.NewProjectError("Create", req.Owner, 0, projects.ErrNameCollision)
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM projects WHERE owner = $1 AND id = $2", req.Owner, existingID)
		if err != nil {
			return nil, projects.NewProjectError("Create", req.Owner, 0, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// Folder is free.
	default:
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	var id int

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM projects WHERE owner = $1", req.Owner).Scan(&id)
	if err != nil {
		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	err = r.stageArtifacts(req, targetDir)
	if err != nil {
		r.removeStaged(targetDir)

		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
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

	views, err := json.Marshal(project.Views)
	if err != nil {
		r.removeStaged(targetDir)

		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (owner, id, name, description, views, folder, profile, module_prefix, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, project.Owner, project.ID, project.Name, project.Description, views,
		project.Folder, project.Profile, project.ModulePrefix, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		r.removeStaged(targetDir)

		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	err = tx.Commit()
	if err != nil {
		r.removeStaged(targetDir)

		return nil, projects.NewProjectError("Create", req.Owner, 0, err)
	}

	r.logger.InfoContext(ctx, "Created project",
		"owner", req.Owner, "project_id", id, "name", req.Name, "profile", req.Profile)

	return project, nil
}

func (r *Registry) UpdateProject(ctx context.Context, project *models.Project) error {
	views, err := json.Marshal(project.Views)
	if err != nil {
		return projects.NewProjectError("Update", project.Owner, project.ID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $3, description = $4, views = $5, profile = $6, module_prefix = $7, updated_at = $8
		WHERE owner = $1 AND id = $2
	`, project.Owner, project.ID, project.Name, project.Description, views,
		project.Profile, project.ModulePrefix, time.Now().UTC())
	if err != nil {
		return projects.NewProjectError("Update", project.Owner, project.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return projects.NewProjectError("Update", project.Owner, project.ID, err)
	}

	if affected == 0 {
		return projects.NewProjectError("Update", project.Owner, project.ID, projects.ErrProjectNotFound)
	}

	return nil
}

func (r *Registry) DeleteProject(ctx context.Context, owner string, id int) error {
	project, err := r.ProjectByID(ctx, owner, id)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, "DELETE FROM projects WHERE owner = $1 AND id = $2", owner, id)
	if err != nil {
		return projects.NewProjectError("Delete", owner, id, err)
	}

	err = os.RemoveAll(project.Folder)
	if err != nil {
		return projects.NewProjectError("Delete", owner, id, err)
	}

	return nil
}

func (r *Registry) stageArtifacts(req projects.CreateProjectRequest, targetDir string) error {
	if req.Overwrite {
		err := os.RemoveAll(targetDir)
		if err != nil {
			return err
		}
	}

	err := os.MkdirAll(targetDir, 0o755)
	if err != nil {
		return err
	}

	if req.SourceDir == "" {
		return nil
	}

	err = projects.CopyArtifacts(req.SourceDir, targetDir)
	if err != nil {
		return err
	}

	projects.MaterializeCSVs(targetDir, r.logger)

	return nil
}

// removeStaged clears artifacts of a create that did not reach the
// database, so the rollback leaves no orphaned folder behind.
func (r *Registry) removeStaged(targetDir string) {
	err := os.RemoveAll(targetDir)
	if err != nil {
		r.logger.Warn("Failed to remove staged project folder",
			"folder", targetDir, "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		project models.Project
		views   []byte
		profile sql.NullString
		prefix  sql.NullString
	)

	err := row.Scan(
		&project.Owner,
		&project.ID,
		&project.Name,
		&project.Description,
		&views,
		&project.Folder,
		&profile,
		&prefix,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(views, &project.Views)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal project views: %w", err)
	}

	project.Profile = profile.String
	project.ModulePrefix = prefix.String

	return &project, nil
}
