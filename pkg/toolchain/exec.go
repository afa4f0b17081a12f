package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/omlboard/omlboard/pkg/models"
)

// Defaults matching the stock openCAESAR-style gradle layout. All of
// them are overridable through Config.
var (
	DefaultBuildCommand = []string{"./gradlew", "build"}
	DefaultQueryCommand = []string{"./gradlew", "owlQuery"}
)

const (
	defaultSourceDir = "src"
	defaultQueryDir  = "src/sparql"
	defaultResultDir = "build/results"
	logDirName       = "logs"
)

// Config describes how the external toolchain is invoked inside a
// session workspace. Relative paths are resolved against the session
// root.
type Config struct {
	BuildCommand []string
	QueryCommand []string
	SourceDir    string
	QueryDefsDir string
	ResultsDir   string
}

// ExecRunner runs the toolchain with os/exec. stdout and stderr are
// captured to a per-invocation log file under the session workspace so
// failures can be diagnosed from the surfaced log path.
type ExecRunner struct {
	config Config
	logger *slog.Logger
}

func NewExecRunner(config Config, logger *slog.Logger) *ExecRunner {
	if len(config.BuildCommand) == 0 {
		config.BuildCommand = DefaultBuildCommand
	}

	if len(config.QueryCommand) == 0 {
		config.QueryCommand = DefaultQueryCommand
	}

	if config.SourceDir == "" {
		config.SourceDir = defaultSourceDir
	}

	if config.QueryDefsDir == "" {
		config.QueryDefsDir = defaultQueryDir
	}

	if config.ResultsDir == "" {
		config.ResultsDir = defaultResultDir
	}

	return &ExecRunner{
		config: config,
		logger: logger.With("module", "toolchain"),
	}
}

func (r *ExecRunner) SourceDir(session *models.StagingSession) string {
	return filepath.Join(session.RootPath, r.config.SourceDir)
}

func (r *ExecRunner) ResultsDir(session *models.StagingSession) string {
	return filepath.Join(session.RootPath, r.config.ResultsDir)
}

func (r *ExecRunner) Build(ctx context.Context, session *models.StagingSession) (models.StageResult, error) {
	return r.run(ctx, session, "build", r.config.BuildCommand)
}

func (r *ExecRunner) Query(ctx context.Context, session *models.StagingSession) (models.StageResult, error) {
	queries, err := filepath.Glob(filepath.Join(session.RootPath, r.config.QueryDefsDir, "*.sparql"))
	if err != nil {
		return models.StageResult{}, fmt.Errorf("failed to list query definitions: %w", err)
	}

	if len(queries) == 0 {
		return models.StageResult{}, ErrNoQueriesConfigured
	}

	return r.run(ctx, session, "query", r.config.QueryCommand)
}

// run executes one stage to completion. A nonzero exit code is not an
// error at this layer; it is part of the StageResult.
func (r *ExecRunner) run(ctx context.Context, session *models.StagingSession, stage string, argv []string) (models.StageResult, error) {
	logPath, logFile, err := r.openLog(session, stage)
	if err != nil {
		return models.StageResult{}, err
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = session.RootPath
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	r.logger.Info("Running toolchain stage",
		"stage", stage, "session_id", session.ID, "command", argv, "log_path", logPath)

	err = cmd.Run()

	result := models.StageResult{LogPath: logPath}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("failed to invoke %s stage: %w", stage, err)
		}

		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Info("Toolchain stage finished",
		"stage", stage, "session_id", session.ID, "exit_code", result.ExitCode)

	return result, nil
}

func (r *ExecRunner) openLog(session *models.StagingSession, stage string) (string, *os.File, error) {
	logDir := filepath.Join(session.RootPath, logDirName)

	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.log", stage, time.Now().UTC().Format("20060102T150405Z"))
	logPath := filepath.Join(logDir, name)

	logFile, err := os.Create(logPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create log file %s: %w", logPath, err)
	}

	return logPath, logFile, nil
}
