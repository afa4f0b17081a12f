// Package main provides the OMLBoard API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/omlboard/omlboard/pkg/catalogue"
	"github.com/omlboard/omlboard/pkg/eventbus"
	"github.com/omlboard/omlboard/pkg/pipeline"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/web"
	"github.com/omlboard/omlboard/pkg/workspace"
)

type API struct {
	logger       *slog.Logger
	workspaces   *workspace.Manager
	orchestrator *pipeline.Orchestrator
	catalogue    *catalogue.Catalogue
	registry     projects.Registry
	eventBus     eventbus.EventPublisher
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	workspaces *workspace.Manager,
	orchestrator *pipeline.Orchestrator,
	cat *catalogue.Catalogue,
	registry projects.Registry,
	eventBus eventbus.EventPublisher,
) *API {
	return &API{
		logger:       logger,
		workspaces:   workspaces,
		orchestrator: orchestrator,
		catalogue:    cat,
		registry:     registry,
		eventBus:     eventBus,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workspaces, a.orchestrator, a.catalogue, a.registry, a.eventBus, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("OMLBoard API")
	})

	s := app.Group("/sessions")
	s.Post("/", handlers.CreateSession)
	s.Get("/", handlers.GetSessions)
	s.Get("/:id", handlers.GetSessionState)
	s.Delete("/:id", handlers.DeleteSession)
	s.Post("/:id/upload", handlers.UploadSource)
	s.Post("/:id/build", handlers.RunBuild)
	s.Post("/:id/query", handlers.RunQuery)
	s.Post("/:id/consolidate", handlers.RunConsolidate)
	s.Post("/:id/finalize", handlers.FinalizeSession)

	p := app.Group("/profiles")
	p.Get("/", handlers.GetProfiles)
	p.Get("/:name", handlers.GetProfile)

	pr := app.Group("/projects")
	pr.Get("/", handlers.GetProjects)
	pr.Post("/", handlers.CreateProject)
	pr.Get("/:id", handlers.GetProject)
	pr.Patch("/:id", handlers.UpdateProject)
	pr.Delete("/:id", handlers.DeleteProject)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
