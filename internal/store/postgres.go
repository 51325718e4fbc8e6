package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/client-enricher/internal/db"
	"github.com/sells-group/client-enricher/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	website       TEXT NOT NULL,
	industry      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending_enrichment',
	enriched_data JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_sessions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	force_update  BOOLEAN NOT NULL DEFAULT false,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ,
	error         TEXT NOT NULL DEFAULT '',
	enriched_data JSONB,
	metadata      JSONB
);

CREATE TABLE IF NOT EXISTS enrichment_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);
CREATE INDEX IF NOT EXISTS idx_sessions_client ON enrichment_sessions(client_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON enrichment_sessions(status);
CREATE INDEX IF NOT EXISTS idx_logs_client ON enrichment_logs(client_id, created_at DESC);
`

var clientUpsert = db.UpsertConfig{
	Table:        "clients",
	Columns:      []string{"id", "name", "website", "industry", "status", "created_at", "updated_at"},
	ConflictKeys: []string{"id"},
	UpdateCols:   []string{"name", "website", "industry", "status", "updated_at"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveClient(ctx context.Context, c model.ClientRecord) error {
	query, err := db.UpsertSQL(clientUpsert)
	if err != nil {
		return eris.Wrap(err, "postgres: build client upsert")
	}
	if c.Status == "" {
		c.Status = model.ClientStatusPendingEnrichment
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, query, c.ID, c.Name, c.Website, c.Industry, string(c.Status), now, now)
	return eris.Wrapf(err, "postgres: save client %s", c.ID)
}

func (s *PostgresStore) UpdateClientStatus(ctx context.Context, clientID string, status model.ClientStatus, data *model.EnrichedData) error {
	var dataJSON []byte
	if data != nil {
		var err error
		dataJSON, err = json.Marshal(data)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal enriched data")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE clients SET status = $1, enriched_data = COALESCE($2, enriched_data), updated_at = $3 WHERE id = $4`,
		string(status), dataJSON, time.Now().UTC(), clientID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update client status %s", clientID)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "client", ID: clientID}
	}
	return nil
}

const pgClientColumns = `id, name, website, industry, status, enriched_data, created_at, updated_at`

func (s *PostgresStore) GetClient(ctx context.Context, clientID string) (*model.ClientRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgClientColumns+` FROM clients WHERE id = $1`, clientID)
	c, err := scanPgClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "client", ID: clientID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get client %s", clientID)
	}
	return c, nil
}

func (s *PostgresStore) ListClients(ctx context.Context, filter ClientFilter) ([]model.ClientRecord, error) {
	query := `SELECT ` + pgClientColumns + ` FROM clients WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Industry != "" {
		query += fmt.Sprintf(` AND industry = $%d`, argN)
		args = append(args, filter.Industry)
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argN)
	args = append(args, listLimit(filter.Limit))
	argN++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list clients")
	}
	defer rows.Close()

	var clients []model.ClientRecord
	for rows.Next() {
		c, err := scanPgClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "postgres: list clients iterate")
}

func scanPgClient(row pgx.Row) (*model.ClientRecord, error) {
	var c model.ClientRecord
	var status string
	var dataJSON []byte

	err := row.Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &status, &dataJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.ClientStatus(status)
	if len(dataJSON) > 0 {
		c.EnrichedData = &model.EnrichedData{}
		if err := json.Unmarshal(dataJSON, c.EnrichedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal enriched data")
		}
	}
	return &c, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	dataJSON, metaJSON, err := marshalSessionJSON(sess)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_sessions (id, client_id, status, force_update, started_at, completed_at, error, enriched_data, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, sess.ClientID, string(sess.Status), sess.ForceUpdate, sess.StartedAt,
		sess.CompletedAt, sess.Error, dataJSON, metaJSON,
	)
	return eris.Wrapf(err, "postgres: insert session for client %s", sess.ClientID)
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	dataJSON, metaJSON, err := marshalSessionJSON(sess)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_sessions SET status = $1, completed_at = $2, error = $3, enriched_data = $4, metadata = $5 WHERE id = $6`,
		string(sess.Status), sess.CompletedAt, sess.Error, dataJSON, metaJSON, sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "session", ID: sess.ID}
	}
	return nil
}

const pgSessionColumns = `id, client_id, status, force_update, started_at, completed_at, error, enriched_data, metadata`

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM enrichment_sessions WHERE id = $1`, sessionID)
	sess, err := scanPgSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "session", ID: sessionID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", sessionID)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + pgSessionColumns + ` FROM enrichment_sessions WHERE 1=1`
	var args []any
	argN := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(` AND client_id = $%d`, argN)
		args = append(args, filter.ClientID)
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argN)
	args = append(args, listLimit(filter.Limit))
	argN++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanPgSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry *model.EnrichmentLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_logs (id, client_id, session_id, status, error, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.ClientID, entry.SessionID, string(entry.Status), entry.Error, metaJSON, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append log for client %s", entry.ClientID)
}

func (s *PostgresStore) ListLogs(ctx context.Context, clientID string) ([]model.EnrichmentLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, session_id, status, error, metadata, created_at FROM enrichment_logs
		 WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2`,
		clientID, defaultListLimit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var logs []model.EnrichmentLog
	for rows.Next() {
		var l model.EnrichmentLog
		var status string
		var metaJSON []byte
		if err := rows.Scan(&l.ID, &l.ClientID, &l.SessionID, &status, &l.Error, &metaJSON, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log")
		}
		l.Status = model.SessionStatus(status)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &l.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal log metadata")
			}
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list logs iterate")
}

func scanPgSession(row pgx.Row) (*model.Session, error) {
	var sess model.Session
	var status string
	var dataJSON, metaJSON []byte

	err := row.Scan(&sess.ID, &sess.ClientID, &status, &sess.ForceUpdate, &sess.StartedAt,
		&sess.CompletedAt, &sess.Error, &dataJSON, &metaJSON)
	if err != nil {
		return nil, err
	}
	sess.Status = model.SessionStatus(status)
	if len(dataJSON) > 0 {
		sess.EnrichedData = &model.EnrichedData{}
		if err := json.Unmarshal(dataJSON, sess.EnrichedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal session enriched data")
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &sess.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal session metadata")
		}
	}
	return &sess, nil
}
