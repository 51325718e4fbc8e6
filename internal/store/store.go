// Package store persists client records, enrichment sessions and the
// enrichment log.
package store

import (
	"context"
	"fmt"

	"github.com/sells-group/client-enricher/internal/model"
)

const defaultListLimit = 100

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	ClientID string              `json:"client_id,omitempty"`
	Status   model.SessionStatus `json:"status,omitempty"`
	Limit    int                 `json:"limit,omitempty"`
	Offset   int                 `json:"offset,omitempty"`
}

// ClientFilter specifies criteria for listing clients. Empty fields match
// everything.
type ClientFilter struct {
	Status   model.ClientStatus `json:"status,omitempty"`
	Industry string             `json:"industry,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// NotFoundError is returned when a lookup or update matches no row.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Store defines the persistence interface for clients and their enrichment
// sessions.
type Store interface {
	// Clients
	SaveClient(ctx context.Context, c model.ClientRecord) error
	UpdateClientStatus(ctx context.Context, clientID string, status model.ClientStatus, data *model.EnrichedData) error
	GetClient(ctx context.Context, clientID string) (*model.ClientRecord, error)
	ListClients(ctx context.Context, filter ClientFilter) ([]model.ClientRecord, error)

	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	UpdateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)

	// Enrichment log
	AppendLog(ctx context.Context, entry *model.EnrichmentLog) error
	ListLogs(ctx context.Context, clientID string) ([]model.EnrichmentLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
