package models

import "time"

// Project is a finalized dashboard record bound to a per-owner folder.
// IDs are integers, monotonic per owner. Projects never reference
// another owner's namespace.
type Project struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"          validate:"required,min=3"`
	Description  string    `json:"description"`
	Views        []string  `json:"views"         validate:"required,min=1"`
	Folder       string    `json:"folder"`
	Profile      string    `json:"profile,omitempty"`
	ModulePrefix string    `json:"module_prefix,omitempty"`
	Owner        string    `json:"owner"         validate:"required"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
