package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omlboard/omlboard/pkg/catalogue"
	"github.com/omlboard/omlboard/pkg/consolidate"
	"github.com/omlboard/omlboard/pkg/models"
	"github.com/omlboard/omlboard/pkg/toolchain"
)

// fakeRunner simulates the external toolchain: configurable exit codes
// and canned query results written into the results directory.
type fakeRunner struct {
	buildExit int
	queryExit int
	queryErr  error
	results   map[string]string
}

func (f *fakeRunner) SourceDir(session *models.StagingSession) string {
	return filepath.Join(session.RootPath, "src")
}

func (f *fakeRunner) ResultsDir(session *models.StagingSession) string {
	return filepath.Join(session.RootPath, "build", "results")
}

func (f *fakeRunner) Build(_ context.Context, session *models.StagingSession) (models.StageResult, error) {
	return models.StageResult{ExitCode: f.buildExit, LogPath: filepath.Join(session.RootPath, "logs", "build.log")}, nil
}

func (f *fakeRunner) Query(_ context.Context, session *models.StagingSession) (models.StageResult, error) {
	if f.queryErr != nil {
		return models.StageResult{}, f.queryErr
	}

	if f.queryExit == 0 {
		dir := f.ResultsDir(session)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.StageResult{}, err
		}

		for name, content := range f.results {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
				return models.StageResult{}, err
			}
		}
	}

	return models.StageResult{ExitCode: f.queryExit, LogPath: filepath.Join(session.RootPath, "logs", "query.log")}, nil
}

func testSession(t *testing.T) *models.StagingSession {
	t.Helper()

	return &models.StagingSession{ID: "test-session", RootPath: t.TempDir()}
}

func testOrchestrator(t *testing.T, runner toolchain.Runner, profiles ...*models.Profile) *Orchestrator {
	t.Helper()

	cat := catalogue.NewCatalogue(slog.Default())
	for _, profile := range profiles {
		require.NoError(t, cat.Register(profile))
	}

	return NewOrchestrator(runner, consolidate.NewConsolidator(slog.Default()), cat, nil, slog.Default())
}

func upload(t *testing.T, o *Orchestrator, session *models.StagingSession) {
	t.Helper()
	require.NoError(t, o.Upload(context.Background(), session, "mission.oml", strings.NewReader("vocabulary mission")))
}

func TestOrchestrator_HappyPathToMatched(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]string{
			"Requirements_main.json": `[{"id": 1}]`,
			"Requirements_test.json": `[{"id": 2}]`,
			"TripleCount.json":       `[{"count": 7}]`,
		},
	}

	o := testOrchestrator(t, runner, &models.Profile{
		Name:             "Minimal",
		RequiredDatasets: []string{"Requirements", "TripleCount"},
		Views:            []string{"Home"},
	})

	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)
	assert.Equal(t, models.StageUploaded, o.State(session).Stage)

	result, err := o.Build(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, models.StageBuilt, o.State(session).Stage)

	_, err = o.Query(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.StageQueried, o.State(session).Stage)

	report, match, err := o.ConsolidateAndMatch(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, []string{"Requirements", "TripleCount"}, report.Datasets)
	require.True(t, match.Usable())
	assert.Equal(t, "Minimal", match.Profile.Name)

	state := o.State(session)
	assert.Equal(t, models.StageMatched, state.Stage)
	assert.Equal(t, "Minimal", state.MatchedProfile)
	assert.True(t, state.CanCreateDashboard())

	// The consolidated dataset exists on disk.
	_, err = os.Stat(filepath.Join(o.ConsolidatedDir(session), "Requirements.json"))
	assert.NoError(t, err)

	require.NoError(t, o.Finalize(session))
	assert.Equal(t, models.StageFinalized, o.State(session).Stage)
	assert.False(t, o.State(session).PendingDashboardCreation)
}

func TestOrchestrator_BuildFailureHaltsAttempt(t *testing.T) {
	runner := &fakeRunner{buildExit: 137}
	o := testOrchestrator(t, runner)
	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)

	result, err := o.Build(ctx, session)
	require.Error(t, err)
	assert.True(t, IsBuildFailure(err))
	assert.Equal(t, 137, result.ExitCode)

	state := o.State(session)
	assert.Equal(t, models.StageBuildFailed, state.Stage)
	require.NotNil(t, state.BuildExitCode)
	assert.Equal(t, 137, *state.BuildExitCode)
	assert.NotEmpty(t, state.BuildLogPath)

	// No automatic progression: query is a forbidden transition now.
	_, err = o.Query(ctx, session)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, models.StageBuildFailed, o.State(session).Stage)

	// An explicit retry from build_failed is allowed.
	runner.buildExit = 0

	_, err = o.Build(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.StageBuilt, o.State(session).Stage)
}

func TestOrchestrator_QueryFailure(t *testing.T) {
	runner := &fakeRunner{queryExit: 2}
	o := testOrchestrator(t, runner)
	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)

	_, err := o.Build(ctx, session)
	require.NoError(t, err)

	_, err = o.Query(ctx, session)
	require.Error(t, err)
	assert.True(t, IsQueryFailure(err))
	assert.Equal(t, models.StageQueryFailed, o.State(session).Stage)

	// Consolidation from query_failed is forbidden.
	_, _, err = o.ConsolidateAndMatch(ctx, session)
	assert.True(t, IsInvalidTransition(err))
}

func TestOrchestrator_NoQueriesConfiguredStaysBuilt(t *testing.T) {
	runner := &fakeRunner{queryErr: toolchain.ErrNoQueriesConfigured}
	o := testOrchestrator(t, runner)
	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)

	_, err := o.Build(ctx, session)
	require.NoError(t, err)

	_, err = o.Query(ctx, session)
	assert.ErrorIs(t, err, toolchain.ErrNoQueriesConfigured)
	assert.Equal(t, models.StageBuilt, o.State(session).Stage)
}

func TestOrchestrator_UnmatchedIsNotAnError(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]string{"Requirements.json": `[{"id": 1}]`},
	}

	o := testOrchestrator(t, runner, &models.Profile{
		Name:             "Demanding",
		RequiredDatasets: []string{"Requirements", "SystemArchitecture"},
		Views:            []string{"Home"},
	})

	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)

	_, err := o.Build(ctx, session)
	require.NoError(t, err)

	_, err = o.Query(ctx, session)
	require.NoError(t, err)

	report, match, err := o.ConsolidateAndMatch(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, []string{"Requirements"}, report.Datasets)
	assert.False(t, match.Usable())
	assert.Equal(t, []string{"SystemArchitecture"}, match.Missing)

	state := o.State(session)
	assert.Equal(t, models.StageUnmatched, state.Stage)
	assert.Empty(t, state.MatchedProfile)
	// A reduced dashboard can still be offered from a partial match.
	assert.True(t, state.CanCreateDashboard())

	// Finalize is reachable from unmatched.
	assert.NoError(t, o.Finalize(session))
}

func TestOrchestrator_UploadValidation(t *testing.T) {
	o := testOrchestrator(t, &fakeRunner{})
	session := testSession(t)
	ctx := context.Background()

	err := o.Upload(ctx, session, "../escape.oml", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidFilename)

	err = o.Upload(ctx, session, "nested/path.oml", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidFilename)

	err = o.Upload(ctx, session, "empty.oml", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

// gatedReader blocks the staging copy until released and signals once
// the copy has started.
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedReader) Read(_ []byte) (int, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release

	return 0, io.EOF
}

func TestOrchestrator_UploadHoldsSingleFlightSlot(t *testing.T) {
	o := testOrchestrator(t, &fakeRunner{})
	session := testSession(t)
	ctx := context.Background()

	gate := &gatedReader{started: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)

	go func() {
		done <- o.Upload(ctx, session, "mission.oml", gate)
	}()

	<-gate.started

	// A second upload while the first is still staging is rejected.
	err := o.Upload(ctx, session, "other.oml", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrAttemptInProgress)

	close(gate.release)
	assert.ErrorIs(t, <-done, ErrEmptyUpload)

	// The slot is released once the first upload returns.
	upload(t, o, session)
	assert.Equal(t, models.StageUploaded, o.State(session).Stage)
}

func TestOrchestrator_UploadResetsPreviousAttempt(t *testing.T) {
	runner := &fakeRunner{buildExit: 1}
	o := testOrchestrator(t, runner)
	session := testSession(t)
	ctx := context.Background()

	upload(t, o, session)

	_, err := o.Build(ctx, session)
	require.Error(t, err)
	require.Equal(t, models.StageBuildFailed, o.State(session).Stage)

	// A fresh upload discards the failed attempt.
	upload(t, o, session)

	state := o.State(session)
	assert.Equal(t, models.StageUploaded, state.Stage)
	assert.Nil(t, state.BuildExitCode)
}

func TestOrchestrator_StageOrderIsEnforced(t *testing.T) {
	o := testOrchestrator(t, &fakeRunner{})
	session := testSession(t)
	ctx := context.Background()

	// Nothing uploaded yet: every stage is forbidden.
	_, err := o.Build(ctx, session)
	assert.True(t, IsInvalidTransition(err))

	_, err = o.Query(ctx, session)
	assert.True(t, IsInvalidTransition(err))

	_, _, err = o.ConsolidateAndMatch(ctx, session)
	assert.True(t, IsInvalidTransition(err))

	assert.True(t, IsInvalidTransition(o.Finalize(session)))
}

func TestOrchestrator_DiscardDropsState(t *testing.T) {
	o := testOrchestrator(t, &fakeRunner{})
	session := testSession(t)

	upload(t, o, session)
	require.Equal(t, models.StageUploaded, o.State(session).Stage)

	o.Discard(session)

	assert.Equal(t, models.StageIdle, o.State(session).Stage)
}
