package models

import "time"

// Journal event types.
const (
	EventConnect    = "CONNECT"
	EventDisconnect = "DISCONNECT"
	EventCommand    = "COMMAND"
	EventError      = "ERROR"
	EventEstop      = "ESTOP"
)

// RigEvent is a single journal entry.
type RigEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECT | DISCONNECT | COMMAND | ERROR | ESTOP
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
