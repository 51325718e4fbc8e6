package model

import "time"

// SessionStatus is the lifecycle state of one enrichment run.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsActive reports whether a session still occupies its client's slot.
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusPending || s == SessionStatusRunning
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusCancelled
}

// ClientStatus maps a session state onto the status stored on the client record.
func (s SessionStatus) ClientStatus() ClientStatus {
	switch s {
	case SessionStatusCompleted:
		return ClientStatusEnriched
	case SessionStatusFailed:
		return ClientStatusFailed
	case SessionStatusCancelled:
		return ClientStatusCancelled
	default:
		return ClientStatusPendingEnrichment
	}
}

// Session is the administrative record of one enrichment run.
type Session struct {
	ID           string         `json:"id" yaml:"id"`
	ClientID     string         `json:"client_id" yaml:"client_id"`
	Status       SessionStatus  `json:"status" yaml:"status"`
	ForceUpdate  bool           `json:"force_update" yaml:"force_update"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty"`
	EnrichedData *EnrichedData  `json:"enriched_data,omitempty" yaml:"enriched_data,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EnrichmentLog is one append-only observability entry for a client.
type EnrichmentLog struct {
	ID        string         `json:"id" yaml:"id"`
	ClientID  string         `json:"client_id" yaml:"client_id"`
	SessionID string         `json:"session_id" yaml:"session_id"`
	Status    SessionStatus  `json:"status" yaml:"status"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}
