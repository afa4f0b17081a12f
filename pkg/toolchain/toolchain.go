// Package toolchain invokes the external ontology build toolchain and
// query stage as blocking subprocesses. Both are opaque collaborators:
// the contract is an exit code plus a captured log file.
package toolchain

import (
	"context"
	"errors"

	"github.com/omlboard/omlboard/pkg/models"
)

// ErrNoQueriesConfigured indicates the query stage was requested with
// zero query definition files present. This is distinct from a query
// failure: the stage was never attempted.
var ErrNoQueriesConfigured = errors.New("no query definitions configured")

// Runner sequences the external stages for one staging session.
// Build compiles the staged ontology source into a queryable graph.
// Query starts the query server, executes each definition and writes
// one JSON file per query into ResultsDir.
type Runner interface {
	Build(ctx context.Context, session *models.StagingSession) (models.StageResult, error)
	Query(ctx context.Context, session *models.StagingSession) (models.StageResult, error)

	// SourceDir is where uploaded ontology sources are staged.
	SourceDir(session *models.StagingSession) string

	// ResultsDir is where the query stage emits its JSON files.
	ResultsDir(session *models.StagingSession) string
}
