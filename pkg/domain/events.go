package domain

import (
	"time"
)

// Action names a notification emitted after an acknowledged topology change.
type Action string

const (
	ActionNodeCreated   Action = "node.created"
	ActionNodeStarted   Action = "node.started"
	ActionNodeStopped   Action = "node.stopped"
	ActionNodeDeleted   Action = "node.deleted"
	ActionLinkCreated   Action = "link.created"
	ActionLinkDeleted   Action = "link.deleted"
	ActionProjectOpened Action = "project.opened"
	ActionProjectClosed Action = "project.closed"
)

// Event is a notification about a project.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ProjectID string    `json:"project_id"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(action Action, projectID string, payload any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		ProjectID: projectID,
		Payload:   payload,
	}
}
