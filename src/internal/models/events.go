package models

import "time"

// EventMessage is the body published to the events exchange.
type EventMessage struct {
	ID         string            `json:"id"`
	Event      string            `json:"event"`
	LoadID     string            `json:"load_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status,omitempty"`
	Version    int64             `json:"version,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Load lifecycle events
const (
	EventLoadCreated       = "load.created"
	EventLoadAccepted      = "load.accepted"
	EventLoadAssigned      = "load.assigned"
	EventLoadStatusChanged = "load.status_changed"
	EventLoadCancelled     = "load.cancelled"
	EventLoadExpired       = "load.expired"
)

// Account events
const (
	EventPasswordResetRequested = "auth.password_reset_requested"
	EventSessionsRevoked        = "auth.sessions_revoked"
	EventRefreshReuseDetected   = "auth.refresh_reuse_detected"
)
