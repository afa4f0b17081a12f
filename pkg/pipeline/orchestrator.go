package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/omlboard/omlboard/pkg/catalogue"
	"github.com/omlboard/omlboard/pkg/consolidate"
	"github.com/omlboard/omlboard/pkg/eventbus"
	"github.com/omlboard/omlboard/pkg/events"
	"github.com/omlboard/omlboard/pkg/models"
	"github.com/omlboard/omlboard/pkg/otelhelper"
	"github.com/omlboard/omlboard/pkg/toolchain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const consolidatedDirName = "consolidated"

// Upload filenames map onto the staging filesystem; only plain names
// are accepted.
var filenameAllowList = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

type attempt struct {
	state *models.WorkflowState
	busy  bool
}

// Orchestrator drives one workflow attempt per staging session through
// upload, build, query, consolidation and matching. All stages run to
// completion before the next begins; distinct sessions may run in
// parallel against their own workspaces.
type Orchestrator struct {
	runner       toolchain.Runner
	consolidator *consolidate.Consolidator
	catalogue    *catalogue.Catalogue
	eventBus     eventbus.EventPublisher
	logger       *slog.Logger
	tracer       trace.Tracer

	mu       sync.Mutex
	attempts map[string]*attempt
}

func NewOrchestrator(
	runner toolchain.Runner,
	consolidator *consolidate.Consolidator,
	cat *catalogue.Catalogue,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		runner:       runner,
		consolidator: consolidator,
		catalogue:    cat,
		eventBus:     eventBus,
		logger:       logger.With("module", "pipeline"),
		tracer:       otel.Tracer("omlboard/pipeline"),
		attempts:     make(map[string]*attempt),
	}
}

// State returns a snapshot of the session's workflow state.
func (o *Orchestrator) State(session *models.StagingSession) models.WorkflowState {
	o.mu.Lock()
	defer o.mu.Unlock()

	return *o.attemptFor(session.ID).state
}

// ConsolidatedDir is where consolidation writes canonical datasets for
// this session.
func (o *Orchestrator) ConsolidatedDir(session *models.StagingSession) string {
	return filepath.Join(session.RootPath, consolidatedDirName)
}

// Upload stages a source file and starts a fresh attempt. It is
// rejected while a stage is running; otherwise it resets any previous
// attempt state for the session.
func (o *Orchestrator) Upload(ctx context.Context, session *models.StagingSession, filename string, reader io.Reader) error {
	if !filenameAllowList.MatchString(filename) || filename != filepath.Base(filename) {
		return fmt.Errorf("%q: %w", filename, ErrInvalidFilename)
	}

	o.mu.Lock()

	current := o.attemptFor(session.ID)
	if current.busy {
		o.mu.Unlock()

		return ErrAttemptInProgress
	}

	// New attempt: prior progress is discarded. The single-flight slot
	// is held until the copy completes so concurrent uploads cannot
	// interleave writes to the staged file.
	current.busy = true
	current.state = models.NewWorkflowState()
	o.mu.Unlock()

	sourceDir := o.runner.SourceDir(session)

	err := os.MkdirAll(sourceDir, 0o755)
	if err != nil {
		o.finish(current, models.StageIdle)

		return fmt.Errorf("failed to create source directory: %w", err)
	}

	targetPath := filepath.Join(sourceDir, filename)

	file, err := os.Create(targetPath)
	if err != nil {
		o.finish(current, models.StageIdle)

		return fmt.Errorf("failed to create staged source file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		o.finish(current, models.StageIdle)

		return fmt.Errorf("failed to stage source file: %w", err)
	}

	if written == 0 {
		o.finish(current, models.StageIdle)

		return ErrEmptyUpload
	}

	o.mu.Lock()
	current.state.UploadDone = true
	current.state.SourceFile = targetPath
	o.mu.Unlock()

	o.finish(current, models.StageUploaded)

	o.logger.Info("Staged source upload",
		"session_id", session.ID, "filename", filename, "bytes", written)

	o.publish(ctx, session.ID, events.UploadReceived{
		BaseEvent: events.NewBaseEvent(events.UploadReceivedEvent, session.ID),
		Filename:  filename,
		Size:      written,
	})

	return nil
}

// Build runs the external build toolchain. Only reachable from
// uploaded (or from build_failed, to retry without re-uploading).
func (o *Orchestrator) Build(ctx context.Context, session *models.StagingSession) (models.StageResult, error) {
	current, err := o.begin("build", session.ID, models.StageBuildRunning,
		models.StageUploaded, models.StageBuildFailed)
	if err != nil {
		return models.StageResult{}, err
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.build",
		attribute.String(otelhelper.SessionIDKey, session.ID))
	defer span.End()

	o.publish(ctx, session.ID, events.BuildStarted{
		BaseEvent: events.NewBaseEvent(events.BuildStartedEvent, session.ID),
	})

	result, err := o.runner.Build(ctx, session)
	if err != nil {
		o.finish(current, models.StageUploaded)
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.StageKey, string(models.StageBuildRunning)))

		return result, fmt.Errorf("build stage could not be invoked: %w", err)
	}

	span.SetAttributes(attribute.Int(otelhelper.ExitCodeKey, result.ExitCode))

	o.mu.Lock()
	current.state.BuildExitCode = &result.ExitCode
	current.state.BuildLogPath = result.LogPath
	o.mu.Unlock()

	if result.ExitCode != 0 {
		o.finish(current, models.StageBuildFailed)

		failure := &BuildFailureError{ExitCode: result.ExitCode, LogPath: result.LogPath}
		otelhelper.SetError(span, failure,
			attribute.String(otelhelper.StageKey, string(models.StageBuildFailed)),
			attribute.Int(otelhelper.ExitCodeKey, result.ExitCode))

		o.logger.Warn("Build failed",
			"session_id", session.ID, "exit_code", result.ExitCode, "log_path", result.LogPath)

		o.publish(ctx, session.ID, events.BuildFailed{
			BaseEvent: events.NewBaseEvent(events.BuildFailedEvent, session.ID),
			ExitCode:  result.ExitCode,
			LogPath:   result.LogPath,
		})

		return result, failure
	}

	o.finish(current, models.StageBuilt)

	o.publish(ctx, session.ID, events.BuildFinished{
		BaseEvent: events.NewBaseEvent(events.BuildFinishedEvent, session.ID),
		ExitCode:  result.ExitCode,
		LogPath:   result.LogPath,
	})

	return result, nil
}

// Query runs the external query stage. Only reachable from built (or
// query_failed, to retry). A session without query definitions gets
// toolchain.ErrNoQueriesConfigured and stays at built.
func (o *Orchestrator) Query(ctx context.Context, session *models.StagingSession) (models.StageResult, error) {
	current, err := o.begin("query", session.ID, models.StageQueryRunning,
		models.StageBuilt, models.StageQueryFailed)
	if err != nil {
		return models.StageResult{}, err
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.query",
		attribute.String(otelhelper.SessionIDKey, session.ID))
	defer span.End()

	o.publish(ctx, session.ID, events.QueryStarted{
		BaseEvent: events.NewBaseEvent(events.QueryStartedEvent, session.ID),
	})

	result, err := o.runner.Query(ctx, session)
	if err != nil {
		o.finish(current, models.StageBuilt)
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.StageKey, string(models.StageQueryRunning)))

		if errors.Is(err, toolchain.ErrNoQueriesConfigured) {
			return result, err
		}

		return result, fmt.Errorf("query stage could not be invoked: %w", err)
	}

	span.SetAttributes(attribute.Int(otelhelper.ExitCodeKey, result.ExitCode))

	o.mu.Lock()
	current.state.QueryExitCode = &result.ExitCode
	current.state.QueryLogPath = result.LogPath
	o.mu.Unlock()

	if result.ExitCode != 0 {
		o.finish(current, models.StageQueryFailed)

		failure := &QueryFailureError{ExitCode: result.ExitCode, LogPath: result.LogPath}
		otelhelper.SetError(span, failure,
			attribute.String(otelhelper.StageKey, string(models.StageQueryFailed)),
			attribute.Int(otelhelper.ExitCodeKey, result.ExitCode))

		o.logger.Warn("Query stage failed",
			"session_id", session.ID, "exit_code", result.ExitCode, "log_path", result.LogPath)

		o.publish(ctx, session.ID, events.QueryFailed{
			BaseEvent: events.NewBaseEvent(events.QueryFailedEvent, session.ID),
			ExitCode:  result.ExitCode,
			LogPath:   result.LogPath,
		})

		return result, failure
	}

	o.mu.Lock()
	current.state.QueriesRan = true
	o.mu.Unlock()

	o.finish(current, models.StageQueried)

	o.publish(ctx, session.ID, events.QueryFinished{
		BaseEvent: events.NewBaseEvent(events.QueryFinishedEvent, session.ID),
		ExitCode:  result.ExitCode,
		LogPath:   result.LogPath,
	})

	return result, nil
}

// ConsolidateAndMatch normalizes the query results and scores the
// profile catalogue against them. A below-threshold match is not an
// error: the caller receives the best candidate plus missing datasets
// and decides whether to proceed with a reduced view set.
func (o *Orchestrator) ConsolidateAndMatch(ctx context.Context, session *models.StagingSession) (*models.ConsolidationReport, catalogue.Match, error) {
	current, err := o.begin("consolidate", session.ID, models.StageConsolidating,
		models.StageQueried, models.StageMatched, models.StageUnmatched)
	if err != nil {
		return nil, catalogue.Match{}, err
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.consolidate",
		attribute.String(otelhelper.SessionIDKey, session.ID))
	defer span.End()

	report, err := o.consolidator.Consolidate(o.runner.ResultsDir(session), o.ConsolidatedDir(session))
	if err != nil {
		o.finish(current, models.StageQueried)
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.StageKey, string(models.StageConsolidating)))

		return nil, catalogue.Match{}, fmt.Errorf("consolidation failed: %w", err)
	}

	o.publish(ctx, session.ID, events.ConsolidationCompleted{
		BaseEvent: events.NewBaseEvent(events.ConsolidationCompletedEvent, session.ID),
		Datasets:  report.Datasets,
		Skipped:   len(report.Skipped),
	})

	match := o.catalogue.MatchProfile(catalogue.AvailableSet(report.Datasets))

	o.mu.Lock()
	current.state.Datasets = report.Datasets
	current.state.MatchScore = match.Score
	current.state.MissingData = match.Missing
	current.state.PendingDashboardCreation = current.state.QueriesRan && len(report.Datasets) > 0
	o.mu.Unlock()

	if match.Usable() {
		o.mu.Lock()
		current.state.MatchedProfile = match.Profile.Name
		o.mu.Unlock()

		o.finish(current, models.StageMatched)

		span.SetAttributes(attribute.String(otelhelper.ProfileKey, match.Profile.Name))

		o.publish(ctx, session.ID, events.ProfileMatched{
			BaseEvent: events.NewBaseEvent(events.ProfileMatchedEvent, session.ID),
			Profile:   match.Profile.Name,
			Score:     match.Score,
		})

		return report, match, nil
	}

	o.finish(current, models.StageUnmatched)

	best := ""
	if match.Profile != nil {
		best = match.Profile.Name
	}

	o.logger.Info("No profile reached full coverage",
		"session_id", session.ID, "best_candidate", best, "score", match.Score, "missing", match.Missing)

	o.publish(ctx, session.ID, events.ProfileUnmatched{
		BaseEvent:     events.NewBaseEvent(events.ProfileUnmatchedEvent, session.ID),
		BestCandidate: best,
		Score:         match.Score,
		Missing:       match.Missing,
	})

	return report, match, nil
}

// Finalize marks the attempt complete after the caller materialized a
// project (or decided to keep the partial result). Further stages need
// a fresh upload.
func (o *Orchestrator) Finalize(session *models.StagingSession) error {
	current, err := o.begin("finalize", session.ID, models.StageFinalized,
		models.StageMatched, models.StageUnmatched)
	if err != nil {
		return err
	}

	o.mu.Lock()
	current.state.PendingDashboardCreation = false
	current.busy = false
	o.mu.Unlock()

	return nil
}

// Discard drops the session's attempt state. Used when the staging
// session itself is released.
func (o *Orchestrator) Discard(session *models.StagingSession) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.attempts, session.ID)
}

// attemptFor returns the attempt for a session id, creating the idle
// attempt on first use. Callers must hold o.mu.
func (o *Orchestrator) attemptFor(sessionID string) *attempt {
	current, ok := o.attempts[sessionID]
	if !ok {
		current = &attempt{state: models.NewWorkflowState()}
		o.attempts[sessionID] = current
	}

	return current
}

// begin validates the transition and claims the session's single
// flight slot.
func (o *Orchestrator) begin(op, sessionID string, running models.Stage, allowedFrom ...models.Stage) (*attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	current := o.attemptFor(sessionID)

	if current.busy {
		return nil, ErrAttemptInProgress
	}

	allowed := false

	for _, stage := range allowedFrom {
		if current.state.Stage == stage {
			allowed = true

			break
		}
	}

	if !allowed {
		return nil, &TransitionError{Op: op, From: current.state.Stage}
	}

	current.busy = true
	current.state.Stage = running

	return current, nil
}

// finish releases the single-flight slot and records the new stage.
func (o *Orchestrator) finish(current *attempt, stage models.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	current.busy = false
	current.state.Stage = stage
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.eventBus == nil {
		return
	}

	err := o.eventBus.Publish(ctx, key, event)
	if err != nil {
		o.logger.Warn("Failed to publish pipeline event",
			"event_type", event.GetType(), "error", err)
	}
}
