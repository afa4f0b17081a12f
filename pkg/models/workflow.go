package models

// Stage represents the lifecycle state of one build/query attempt.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageUploaded      Stage = "uploaded"
	StageBuildRunning  Stage = "build_running"
	StageBuildFailed   Stage = "build_failed"
	StageBuilt         Stage = "built"
	StageQueryRunning  Stage = "query_running"
	StageQueryFailed   Stage = "query_failed"
	StageQueried       Stage = "queried"
	StageConsolidating Stage = "consolidating"
	StageMatched       Stage = "matched"
	StageUnmatched     Stage = "unmatched"
	StageFinalized     Stage = "finalized"
)

// StageResult is the outcome of one external toolchain invocation.
type StageResult struct {
	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
}

// WorkflowState tracks the progress of one build/query attempt. It is
// owned by the orchestrator for the duration of the attempt and reset
// when a new attempt starts or a dashboard is finalized.
type WorkflowState struct {
	Stage          Stage    `json:"stage"`
	UploadDone     bool     `json:"upload_done"`
	SourceFile     string   `json:"source_file,omitempty"`
	BuildExitCode  *int     `json:"build_exit_code,omitempty"`
	BuildLogPath   string   `json:"build_log_path,omitempty"`
	QueryExitCode  *int     `json:"query_exit_code,omitempty"`
	QueryLogPath   string   `json:"query_log_path,omitempty"`
	QueriesRan     bool     `json:"queries_ran"`
	MatchedProfile string   `json:"matched_profile,omitempty"`
	MatchScore     float64  `json:"match_score,omitempty"`
	MissingData    []string `json:"missing_data,omitempty"`
	Datasets       []string `json:"datasets,omitempty"`

	PendingDashboardCreation bool `json:"pending_dashboard_creation"`
}

// NewWorkflowState returns a fresh state at the idle stage.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{Stage: StageIdle}
}

// CanCreateDashboard reports whether dashboard creation may be offered:
// queries ran and at least one consolidated dataset exists.
func (s *WorkflowState) CanCreateDashboard() bool {
	return s.QueriesRan && len(s.Datasets) > 0
}
