package projects

import (
	"errors"
	"fmt"
)

// Standard registry error types that all implementations should use.
var (
	// ErrProjectNotFound indicates no project matched the given owner
	// and id.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNameCollision indicates the target project folder already
	// exists for that owner and no overwrite intent was given.
	ErrNameCollision = errors.New("project folder already exists")

	// ErrInvalidName indicates an owner or project name failed the
	// path-segment allow-list.
	ErrInvalidName = errors.New("invalid owner or project name")
)

// ProjectError wraps registry errors with operation context.
type ProjectError struct {
	Op        string
	Owner     string
	ProjectID int
	Err       error
}

func (e *ProjectError) Error() string {
	if e.ProjectID != 0 {
		return fmt.Sprintf("%s operation failed for project %d of %s: %v", e.Op, e.ProjectID, e.Owner, e.Err)
	}

	return fmt.Sprintf("%s operation failed for owner %s: %v", e.Op, e.Owner, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

func (e *ProjectError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProjectError creates a registry error with context.
func NewProjectError(op, owner string, id int, err error) *ProjectError {
	return &ProjectError{Op: op, Owner: owner, ProjectID: id, Err: err}
}

// IsProjectNotFound checks if an error indicates a missing project.
func IsProjectNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}

// IsNameCollision checks if an error indicates a project folder
// collision.
func IsNameCollision(err error) bool {
	return errors.Is(err, ErrNameCollision)
}
