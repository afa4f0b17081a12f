package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/omlboard/omlboard/pkg/pipeline"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/toolchain"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handlePipelineError provides typed error handling for workflow stage
// errors. Stage failures from the external toolchain are surfaced with
// their exit code and log path so the client can show diagnostics.
func handlePipelineError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrAttemptInProgress):
		return conflict(c, "attempt_in_progress", err.Error())

	case pipeline.IsInvalidTransition(err):
		return conflict(c, "invalid_transition", err.Error())

	case errors.Is(err, pipeline.ErrEmptyUpload),
		errors.Is(err, pipeline.ErrInvalidFilename):
		return badRequest(c, err.Error())

	case errors.Is(err, toolchain.ErrNoQueriesConfigured):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("no_queries_configured").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case pipeline.IsBuildFailure(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("build_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case pipeline.IsQueryFailure(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("query_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}

// handleRegistryError provides typed error handling for project
// registry errors.
func handleRegistryError(c fiber.Ctx, err error) error {
	switch {
	case projects.IsProjectNotFound(err):
		return notFound(c, "project not found")

	case projects.IsNameCollision(err):
		return conflict(c, "name_collision", err.Error())

	case errors.Is(err, projects.ErrInvalidName):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
