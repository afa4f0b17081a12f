// Package pipeline sequences the external build and query stages and
// tracks workflow progress per staging session.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/omlboard/omlboard/pkg/models"
)

var (
	// ErrInvalidTransition indicates a stage was requested from a state
	// that does not permit it.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrAttemptInProgress indicates a stage is already running for the
	// session. Attempts are single-flight: requests are rejected, not
	// queued.
	ErrAttemptInProgress = errors.New("an attempt stage is already running for this session")

	// ErrEmptyUpload indicates the uploaded source file had no content.
	ErrEmptyUpload = errors.New("uploaded source file is empty")

	// ErrInvalidFilename indicates the uploaded filename failed the
	// allow-list check.
	ErrInvalidFilename = errors.New("invalid upload filename")
)

// TransitionError reports which operation was attempted from which
// stage.
type TransitionError struct {
	Op   string
	From models.Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed from stage %q: %v", e.Op, e.From, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// BuildFailureError carries the exit code and log location of a failed
// build stage. The attempt halts; no automatic retry happens.
type BuildFailureError struct {
	ExitCode int
	LogPath  string
}

func (e *BuildFailureError) Error() string {
	return fmt.Sprintf("build failed with exit code %d (log: %s)", e.ExitCode, e.LogPath)
}

// QueryFailureError carries the exit code and log location of a failed
// query stage.
type QueryFailureError struct {
	ExitCode int
	LogPath  string
}

func (e *QueryFailureError) Error() string {
	return fmt.Sprintf("query stage failed with exit code %d (log: %s)", e.ExitCode, e.LogPath)
}

// IsInvalidTransition checks if an error indicates a forbidden stage
// transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsBuildFailure checks if an error is a build stage failure.
func IsBuildFailure(err error) bool {
	var target *BuildFailureError

	return errors.As(err, &target)
}

// IsQueryFailure checks if an error is a query stage failure.
func IsQueryFailure(err error) bool {
	var target *QueryFailureError

	return errors.As(err, &target)
}
