package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/omlboard/omlboard/pkg/catalogue"
	"github.com/omlboard/omlboard/pkg/eventbus"
	"github.com/omlboard/omlboard/pkg/events"
	"github.com/omlboard/omlboard/pkg/models"
	"github.com/omlboard/omlboard/pkg/pipeline"
	"github.com/omlboard/omlboard/pkg/projects"
	"github.com/omlboard/omlboard/pkg/workspace"
)

type APIHandlers struct {
	workspaces   *workspace.Manager
	orchestrator *pipeline.Orchestrator
	catalogue    *catalogue.Catalogue
	registry     projects.Registry
	eventBus     eventbus.EventPublisher
	validator    *validator.Validate
}

func NewAPIHandlers(
	workspaces *workspace.Manager,
	orchestrator *pipeline.Orchestrator,
	cat *catalogue.Catalogue,
	registry projects.Registry,
	eventBus eventbus.EventPublisher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workspaces:   workspaces,
		orchestrator: orchestrator,
		catalogue:    cat,
		registry:     registry,
		eventBus:     eventBus,
		validator:    validator,
	}
}

func (h *APIHandlers) publish(c fiber.Ctx, key string, event eventbus.Event) {
	if h.eventBus == nil {
		return
	}

	_ = h.eventBus.Publish(c.Context(), key, event)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.registry.HealthCheck(c.Context())

	status := "healthy"
	message := "OMLBoard API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "OMLBoard API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry": err == nil,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateSession(c fiber.Ctx) error {
	session, err := h.workspaces.Allocate()
	if err != nil {
		return internalError(c, err)
	}

	h.publish(c, session.ID, events.SessionAllocated{
		BaseEvent: events.NewBaseEvent(events.SessionAllocatedEvent, session.ID),
		RootPath:  session.RootPath,
	})

	return c.Status(fiber.StatusCreated).JSON(sessionResponse(session))
}

func (h *APIHandlers) GetSessions(c fiber.Ctx) error {
	open := h.workspaces.OpenSessions()

	sessions := make([]SessionResponse, 0, len(open))
	for _, session := range open {
		sessions = append(sessions, sessionResponse(session))
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *APIHandlers) GetSessionState(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	state := h.orchestrator.State(session)

	return c.JSON(StateResponse{
		SessionID:          session.ID,
		State:              state,
		CanCreateDashboard: state.CanCreateDashboard(),
	})
}

// DeleteSession releases the staging workspace and drops the attempt
// state. Releasing an unknown session is a 404, not an error state.
func (h *APIHandlers) DeleteSession(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	h.orchestrator.Discard(session)

	err = h.workspaces.Release(session)
	if err != nil {
		return internalError(c, err)
	}

	h.publish(c, session.ID, events.SessionReleased{
		BaseEvent: events.NewBaseEvent(events.SessionReleasedEvent, session.ID),
	})

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UploadSource(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Uploaded file could not be read")
	}
	defer file.Close()

	err = h.orchestrator.Upload(c.Context(), session, fileHeader.Filename, file)
	if err != nil {
		return handlePipelineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"session_id": session.ID,
		"filename":   fileHeader.Filename,
		"stage":      models.StageUploaded,
	})
}

func (h *APIHandlers) RunBuild(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	result, err := h.orchestrator.Build(c.Context(), session)
	if err != nil {
		return handlePipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"result":     result,
		"stage":      models.StageBuilt,
	})
}

func (h *APIHandlers) RunQuery(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	result, err := h.orchestrator.Query(c.Context(), session)
	if err != nil {
		return handlePipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"result":     result,
		"stage":      models.StageQueried,
	})
}

func (h *APIHandlers) RunConsolidate(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	report, match, err := h.orchestrator.ConsolidateAndMatch(c.Context(), session)
	if err != nil {
		return handlePipelineError(c, err)
	}

	return c.JSON(ConsolidateResponse{
		Report: report,
		Match:  match,
		Stage:  h.orchestrator.State(session).Stage,
	})
}

func (h *APIHandlers) FinalizeSession(c fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return requestError(c, err)
	}

	err = h.orchestrator.Finalize(session)
	if err != nil {
		return handlePipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"stage":      models.StageFinalized,
	})
}

func (h *APIHandlers) GetProfiles(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"profiles": h.catalogue.Profiles()})
}

func (h *APIHandlers) GetProfile(c fiber.Ctx) error {
	// Profile names contain spaces, so the path segment arrives escaped.
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		name = c.Params("name")
	}

	profile, ok := h.catalogue.ProfileByName(name)
	if !ok {
		return notFound(c, "Profile not found")
	}

	return c.JSON(profile)
}

func (h *APIHandlers) GetProjects(c fiber.Ctx) error {
	owner := c.Query("owner")
	if owner == "" {
		return badRequest(c, "Query parameter 'owner' is required")
	}

	list, err := h.registry.Projects(c.Context(), owner)
	if err != nil {
		return handleRegistryError(c, err)
	}

	return c.JSON(fiber.Map{"projects": list})
}

func (h *APIHandlers) GetProject(c fiber.Ctx) error {
	owner, id, err := h.projectKey(c)
	if err != nil {
		return requestError(c, err)
	}

	project, err := h.registry.ProjectByID(c.Context(), owner, id)
	if err != nil {
		return handleRegistryError(c, err)
	}

	return c.JSON(project)
}

// CreateProject materializes a dashboard project. With a session_id the
// artifacts come from that session's consolidated directory and the
// attempt is finalized on success.
func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var session *models.StagingSession

	sourceDir := req.SourceDir

	if req.SessionID != "" {
		var ok bool

		session, ok = h.workspaces.Session(req.SessionID)
		if !ok {
			return notFound(c, "Session not found")
		}

		sourceDir = h.orchestrator.ConsolidatedDir(session)
	}

	created, err := h.registry.CreateProject(c.Context(), projects.CreateProjectRequest{
		Owner:        req.Owner,
		Name:         req.Name,
		Description:  req.Description,
		Views:        req.Views,
		Profile:      req.Profile,
		ModulePrefix: req.ModulePrefix,
		SourceDir:    sourceDir,
		Overwrite:    req.Overwrite,
	})
	if err != nil {
		return handleRegistryError(c, err)
	}

	if session != nil {
		err = h.orchestrator.Finalize(session)
		if err != nil && !pipeline.IsInvalidTransition(err) {
			return handlePipelineError(c, err)
		}
	}

	h.publish(c, req.SessionID, events.ProjectCreated{
		BaseEvent: events.NewBaseEvent(events.ProjectCreatedEvent, req.SessionID),
		Owner:     created.Owner,
		ProjectID: created.ID,
		Name:      created.Name,
		Profile:   created.Profile,
	})

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateProject(c fiber.Ctx) error {
	owner, id, err := h.projectKey(c)
	if err != nil {
		return requestError(c, err)
	}

	var req UpdateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.registry.ProjectByID(c.Context(), owner, id)
	if err != nil {
		return handleRegistryError(c, err)
	}

	// Apply partial updates (folder and artifacts are immutable here)
	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Views != nil {
		existing.Views = req.Views
	}

	if req.Profile != nil {
		existing.Profile = *req.Profile
	}

	if req.ModulePrefix != nil {
		existing.ModulePrefix = *req.ModulePrefix
	}

	err = h.registry.UpdateProject(c.Context(), existing)
	if err != nil {
		return handleRegistryError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteProject(c fiber.Ctx) error {
	owner, id, err := h.projectKey(c)
	if err != nil {
		return requestError(c, err)
	}

	err = h.registry.DeleteProject(c.Context(), owner, id)
	if err != nil {
		return handleRegistryError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

var (
	errMissingSessionID = errors.New("session ID is required")
	errSessionNotFound  = errors.New("session not found")
	errMissingOwner     = errors.New("query parameter 'owner' is required")
	errBadProjectID     = errors.New("project ID must be an integer")
)

// session resolves the :id path parameter to an open staging session.
// The returned error is one of the request sentinels above; handlers
// pass it to requestError for the HTTP mapping.
func (h *APIHandlers) session(c fiber.Ctx) (*models.StagingSession, error) {
	id := c.Params("id")
	if id == "" {
		return nil, errMissingSessionID
	}

	session, ok := h.workspaces.Session(id)
	if !ok {
		return nil, errSessionNotFound
	}

	return session, nil
}

func (h *APIHandlers) projectKey(c fiber.Ctx) (string, int, error) {
	owner := c.Query("owner")
	if owner == "" {
		return "", 0, errMissingOwner
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return "", 0, errBadProjectID
	}

	return owner, id, nil
}

func requestError(c fiber.Ctx, err error) error {
	if errors.Is(err, errSessionNotFound) {
		return notFound(c, "Session not found")
	}

	return badRequest(c, err.Error())
}

func sessionResponse(session *models.StagingSession) SessionResponse {
	return SessionResponse{
		ID:        session.ID,
		CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
	}
}
