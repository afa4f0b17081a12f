// Package web provides HTTP request and response types for the dashboard API.
package web

import (
	"github.com/omlboard/omlboard/pkg/catalogue"
	"github.com/omlboard/omlboard/pkg/models"
)

// SessionResponse describes one staging session.
type SessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// StateResponse pairs a session with its workflow attempt state.
type StateResponse struct {
	SessionID          string               `json:"session_id"`
	State              models.WorkflowState `json:"state"`
	CanCreateDashboard bool                 `json:"can_create_dashboard"`
}

// ConsolidateResponse reports the consolidation outcome and the best
// profile candidate.
type ConsolidateResponse struct {
	Report *models.ConsolidationReport `json:"report"`
	Match  catalogue.Match             `json:"match"`
	Stage  models.Stage                `json:"stage"`
}

// CreateProjectRequest represents the request body for creating a new
// dashboard project from a session's consolidated artifacts.
type CreateProjectRequest struct {
	Owner        string   `json:"owner"         validate:"required"`
	Name         string   `json:"name"          validate:"required,min=3"`
	Description  string   `json:"description"`
	Views        []string `json:"views"         validate:"required,min=1"`
	Profile      string   `json:"profile,omitempty"`
	ModulePrefix string   `json:"module_prefix,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	SourceDir    string   `json:"source_dir,omitempty"`
	Overwrite    bool     `json:"overwrite"`
}

// UpdateProjectRequest represents the request body for updating an
// existing project. All fields are optional to support partial updates.
type UpdateProjectRequest struct {
	Name         *string  `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description  *string  `json:"description,omitempty"`
	Views        []string `json:"views,omitempty"`
	Profile      *string  `json:"profile,omitempty"`
	ModulePrefix *string  `json:"module_prefix,omitempty"`
}
