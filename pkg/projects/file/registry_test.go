package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omlboard/omlboard/pkg/projects"
)

func testRequest(sourceDir string) projects.CreateProjectRequest {
	return projects.CreateProjectRequest{
		Owner:     "alice",
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

func TestRegistry_CreateProject(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	project, err := registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.NoError(t, err)

	assert.Equal(t, 1, project.ID)
	assert.Equal(t, "alice", project.Owner)
	assert.Equal(t, "mission_alpha", filepath.Base(project.Folder))

	// Artifacts are copied and a CSV rendition sits next to the JSON.
	_, err = os.Stat(filepath.Join(project.Folder, "Requirements.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(project.Folder, "Requirements.csv"))
	assert.NoError(t, err)

	fetched, err := registry.ProjectByID(ctx, "alice", project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mission Alpha", fetched.Name)
	assert.Equal(t, "System Dashboard", fetched.Profile)
}

func TestRegistry_CreateProject_NameCollision(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	first, err := registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.NoError(t, err)

	// Same folder name, no overwrite flag: rejected, first intact.
	_, err = registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.Error(t, err)
	assert.True(t, projects.IsNameCollision(err))

	kept, err := registry.ProjectByID(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, first.CreatedAt, kept.CreatedAt, time.Second)
}

func TestRegistry_CreateProject_Overwrite(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	first, err := registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.NoError(t, err)

	req := testRequest(sourceDirWithDataset(t))
	req.Overwrite = true
	req.Description = "second take"

	second, err := registry.CreateProject(ctx, req)
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "second take", second.Description)

	list, err := registry.Projects(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRegistry_FailedCreateLeavesNameAvailable(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	// Artifact copy fails: the create must not leave a folder behind.
	_, err := registry.CreateProject(ctx, testRequest(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.False(t, projects.IsNameCollision(err))

	_, err = os.Stat(filepath.Join(registry.root, "alice", "mission_alpha"))
	assert.True(t, os.IsNotExist(err))

	// Retrying the same owner/name without overwrite succeeds.
	project, err := registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.NoError(t, err)
	assert.Equal(t, 1, project.ID)
}

func TestRegistry_IDsAreMonotonicPerOwner(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	req1 := testRequest("")
	req1.Name = "First Project"

	req2 := testRequest("")
	req2.Name = "Second Project"

	p1, err := registry.CreateProject(ctx, req1)
	require.NoError(t, err)

	p2, err := registry.CreateProject(ctx, req2)
	require.NoError(t, err)

	assert.Equal(t, 1, p1.ID)
	assert.Equal(t, 2, p2.ID)

	// Deleting an older project must not cause id reuse.
	require.NoError(t, registry.DeleteProject(ctx, "alice", p1.ID))

	req3 := testRequest("")
	req3.Name = "Third Project"

	p3, err := registry.CreateProject(ctx, req3)
	require.NoError(t, err)
	assert.Equal(t, 3, p3.ID)

	// A different owner starts from 1.
	reqBob := testRequest("")
	reqBob.Owner = "bob"

	pb, err := registry.CreateProject(ctx, reqBob)
	require.NoError(t, err)
	assert.Equal(t, 1, pb.ID)
}

func TestRegistry_Validation(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*projects.CreateProjectRequest)
	}{
		{name: "missing owner", mutate: func(r *projects.CreateProjectRequest) { r.Owner = "" }},
		{name: "short name", mutate: func(r *projects.CreateProjectRequest) { r.Name = "ab" }},
		{name: "no views", mutate: func(r *projects.CreateProjectRequest) { r.Views = nil }},
		{name: "owner with path", mutate: func(r *projects.CreateProjectRequest) { r.Owner = "../root" }},
		{name: "name with slash", mutate: func(r *projects.CreateProjectRequest) { r.Name = "bad/name" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest("")
			tt.mutate(&req)

			_, err := registry.CreateProject(ctx, req)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_ProjectByID_NotFound(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())

	_, err := registry.ProjectByID(context.Background(), "alice", 42)
	assert.True(t, projects.IsProjectNotFound(err))
}

func TestRegistry_UpdateProject(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	project, err := registry.CreateProject(ctx, testRequest(""))
	require.NoError(t, err)

	project.Description = "updated"
	project.Views = []string{"Home Page", "Requirements"}

	require.NoError(t, registry.UpdateProject(ctx, project))

	fetched, err := registry.ProjectByID(ctx, "alice", project.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", fetched.Description)
	assert.Equal(t, []string{"Home Page", "Requirements"}, fetched.Views)
	assert.True(t, fetched.UpdatedAt.After(fetched.CreatedAt) || fetched.UpdatedAt.Equal(fetched.CreatedAt))
}

func TestRegistry_DeleteProject(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	project, err := registry.CreateProject(ctx, testRequest(sourceDirWithDataset(t)))
	require.NoError(t, err)

	require.NoError(t, registry.DeleteProject(ctx, "alice", project.ID))

	_, err = os.Stat(project.Folder)
	assert.True(t, os.IsNotExist(err))

	err = registry.DeleteProject(ctx, "alice", project.ID)
	assert.True(t, projects.IsProjectNotFound(err))
}

func TestRegistry_ProjectsAreScopedByOwner(t *testing.T) {
	registry := NewRegistry(t.TempDir(), slog.Default())
	ctx := context.Background()

	reqAlice := testRequest("")

	reqBob := testRequest("")
	reqBob.Owner = "bob"
	reqBob.Name = "Bob Project"

	_, err := registry.CreateProject(ctx, reqAlice)
	require.NoError(t, err)

	_, err = registry.CreateProject(ctx, reqBob)
	require.NoError(t, err)

	aliceProjects, err := registry.Projects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceProjects, 1)
	assert.Equal(t, "Mission Alpha", aliceProjects[0].Name)

	bobProjects, err := registry.Projects(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobProjects, 1)
	assert.Equal(t, "Bob Project", bobProjects[0].Name)

	// Unknown owners simply have no projects.
	none, err := registry.Projects(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}
