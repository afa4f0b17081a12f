package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omlboard/omlboard/pkg/projects"
)

// These tests need a reachable PostgreSQL instance and are skipped
// unless DATABASE_URL is set.
func setupRegistry(t *testing.T) *Registry {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	registry, err := NewRegistry(context.Background(), slog.Default(), databaseURL, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, registry.Close(context.Background()))
	})

	return registry
}

// testOwner keeps runs against a shared database independent of each
// other and of earlier runs.
func testOwner(t *testing.T) string {
	t.Helper()

	return fmt.Sprintf("it_%d", time.Now().UnixNano())
}

func createRequest(owner, sourceDir string) projects.CreateProjectRequest {
	return projects.CreateProjectRequest{
		Owner:     owner,
		Name:      "Mission Alpha",
		Views:     []string{"Home Page"},
		Profile:   "System Dashboard",
		SourceDir: sourceDir,
	}
}

func sourceDirWithDataset(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Requirements.json"),
		[]byte(`[{"id": 1, "text": "shall fly"}]`), 0o644))

	return dir
}

func TestRegistry_HealthCheck(t *testing.T) {
	registry := setupRegistry(t)

	assert.NoError(t, registry.HealthCheck(context.Background()))
}

func TestRegistry_ProjectLifecycle(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()
	owner := testOwner(t)

	project, err := registry.CreateProject(ctx, createRequest(owner, sourceDirWithDataset(t)))
	require.NoError(t, err)

	assert.Equal(t, 1, project.ID)
	assert.Equal(t, "mission_alpha", filepath.Base(project.Folder))

	// Artifacts are staged with a CSV rendition next to the JSON.
	_, err = os.Stat(filepath.Join(project.Folder, "Requirements.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(project.Folder, "Requirements.csv"))
	assert.NoError(t, err)

	fetched, err := registry.ProjectByID(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mission Alpha", fetched.Name)
	assert.Equal(t, []string{"Home Page"}, fetched.Views)
	assert.Equal(t, "System Dashboard", fetched.Profile)

	fetched.Description = "updated"
	require.NoError(t, registry.UpdateProject(ctx, fetched))

	fetched, err = registry.ProjectByID(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", fetched.Description)

	list, err := registry.Projects(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, registry.DeleteProject(ctx, owner, project.ID))

	_, err = registry.ProjectByID(ctx, owner, project.ID)
	assert.True(t, projects.IsProjectNotFound(err))

	_, err = os.Stat(project.Folder)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry_NameCollisionAndOverwrite(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()
	owner := testOwner(t)

	first, err := registry.CreateProject(ctx, createRequest(owner, sourceDirWithDataset(t)))
	require.NoError(t, err)

	_, err = registry.CreateProject(ctx, createRequest(owner, sourceDirWithDataset(t)))
	require.Error(t, err)
	assert.True(t, projects.IsNameCollision(err))

	req := createRequest(owner, sourceDirWithDataset(t))
	req.Overwrite = true

	second, err := registry.CreateProject(ctx, req)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	list, err := registry.Projects(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, registry.DeleteProject(ctx, owner, second.ID))
}

func TestRegistry_FailedCreateLeavesNoRecordOrFolder(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()
	owner := testOwner(t)

	// Artifact copy fails: no row, no staged folder.
	_, err := registry.CreateProject(ctx, createRequest(owner, filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.False(t, projects.IsNameCollision(err))

	_, err = os.Stat(filepath.Join(registry.artifactsRoot, owner, "mission_alpha"))
	assert.True(t, os.IsNotExist(err))

	list, err := registry.Projects(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)

	// The name stays available for a retry.
	project, err := registry.CreateProject(ctx, createRequest(owner, sourceDirWithDataset(t)))
	require.NoError(t, err)
	assert.Equal(t, 1, project.ID)

	require.NoError(t, registry.DeleteProject(ctx, owner, project.ID))
}
