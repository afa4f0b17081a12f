// Package events defines event types for pipeline lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every pipeline event.
const Topic = "omlboard.pipeline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	SessionAllocatedEvent EventType = "session.allocated"
	SessionReleasedEvent  EventType = "session.released"

	UploadReceivedEvent EventType = "pipeline.upload.received"

	BuildStartedEvent  EventType = "pipeline.build.started"
	BuildFinishedEvent EventType = "pipeline.build.finished"
	BuildFailedEvent   EventType = "pipeline.build.failed"

	QueryStartedEvent  EventType = "pipeline.query.started"
	QueryFinishedEvent EventType = "pipeline.query.finished"
	QueryFailedEvent   EventType = "pipeline.query.failed"

	ConsolidationCompletedEvent EventType = "pipeline.consolidation.completed"
	ProfileMatchedEvent         EventType = "pipeline.profile.matched"
	ProfileUnmatchedEvent       EventType = "pipeline.profile.unmatched"

	ProjectCreatedEvent EventType = "project.created"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
}

type SessionAllocated struct {
	BaseEvent

	RootPath string `json:"root_path"`
}

func (e SessionAllocated) GetType() EventType { return SessionAllocatedEvent }

type SessionReleased struct {
	BaseEvent
}

func (e SessionReleased) GetType() EventType { return SessionReleasedEvent }

type UploadReceived struct {
	BaseEvent

	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (e UploadReceived) GetType() EventType { return UploadReceivedEvent }

type BuildStarted struct {
	BaseEvent
}

func (e BuildStarted) GetType() EventType { return BuildStartedEvent }

type BuildFinished struct {
	BaseEvent

	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
}

func (e BuildFinished) GetType() EventType { return BuildFinishedEvent }

type BuildFailed struct {
	BaseEvent

	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
}

func (e BuildFailed) GetType() EventType { return BuildFailedEvent }

type QueryStarted struct {
	BaseEvent
}

func (e QueryStarted) GetType() EventType { return QueryStartedEvent }

type QueryFinished struct {
	BaseEvent

	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
}

func (e QueryFinished) GetType() EventType { return QueryFinishedEvent }

type QueryFailed struct {
	BaseEvent

	ExitCode int    `json:"exit_code"`
	LogPath  string `json:"log_path"`
}

func (e QueryFailed) GetType() EventType { return QueryFailedEvent }

type ConsolidationCompleted struct {
	BaseEvent

	Datasets []string `json:"datasets"`
	Skipped  int      `json:"skipped"`
}

func (e ConsolidationCompleted) GetType() EventType { return ConsolidationCompletedEvent }

type ProfileMatched struct {
	BaseEvent

	Profile string  `json:"profile"`
	Score   float64 `json:"score"`
}

func (e ProfileMatched) GetType() EventType { return ProfileMatchedEvent }

type ProfileUnmatched struct {
	BaseEvent

	BestCandidate string   `json:"best_candidate,omitempty"`
	Score         float64  `json:"score"`
	Missing       []string `json:"missing,omitempty"`
}

func (e ProfileUnmatched) GetType() EventType { return ProfileUnmatchedEvent }

type ProjectCreated struct {
	BaseEvent

	Owner     string `json:"owner"`
	ProjectID int    `json:"project_id"`
	Name      string `json:"name"`
	Profile   string `json:"profile,omitempty"`
}

func (e ProjectCreated) GetType() EventType { return ProjectCreatedEvent }
