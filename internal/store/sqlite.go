package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/client-enricher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	website       TEXT NOT NULL,
	industry      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending_enrichment',
	enriched_data TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_sessions (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	force_update  INTEGER NOT NULL DEFAULT 0,
	started_at    DATETIME NOT NULL,
	completed_at  DATETIME,
	error         TEXT NOT NULL DEFAULT '',
	enriched_data TEXT,
	metadata      TEXT
);

CREATE TABLE IF NOT EXISTS enrichment_logs (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	metadata   TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);
CREATE INDEX IF NOT EXISTS idx_sessions_client ON enrichment_sessions(client_id, started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON enrichment_sessions(status);
CREATE INDEX IF NOT EXISTS idx_logs_client ON enrichment_logs(client_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveClient(ctx context.Context, c model.ClientRecord) error {
	now := time.Now().UTC()
	if c.Status == "" {
		c.Status = model.ClientStatusPendingEnrichment
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, website, industry, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			website = excluded.website,
			industry = excluded.industry,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Website, c.Industry, string(c.Status), now, now,
	)
	return eris.Wrapf(err, "sqlite: save client %s", c.ID)
}

func (s *SQLiteStore) UpdateClientStatus(ctx context.Context, clientID string, status model.ClientStatus, data *model.EnrichedData) error {
	var (
		res sql.Result
		err error
	)
	if data != nil {
		dataJSON, mErr := json.Marshal(data)
		if mErr != nil {
			return eris.Wrap(mErr, "sqlite: marshal enriched data")
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE clients SET status = ?, enriched_data = ?, updated_at = ? WHERE id = ?`,
			string(status), string(dataJSON), time.Now().UTC(), clientID,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE clients SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), time.Now().UTC(), clientID,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update client status %s", clientID)
	}
	return checkRowsAffected(res, "client", clientID)
}

const sqliteClientColumns = `id, name, website, industry, status, enriched_data, created_at, updated_at`

func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*model.ClientRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteClientColumns+` FROM clients WHERE id = ?`, clientID)
	c, err := scanSQLiteClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "client", ID: clientID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get client %s", clientID)
	}
	return c, nil
}

// ListClients returns clients newest first.
func (s *SQLiteStore) ListClients(ctx context.Context, filter ClientFilter) ([]model.ClientRecord, error) {
	query := `SELECT ` + sqliteClientColumns + ` FROM clients WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, filter.Industry)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list clients")
	}
	defer rows.Close() //nolint:errcheck

	var clients []model.ClientRecord
	for rows.Next() {
		c, err := scanSQLiteClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "sqlite: list clients iterate")
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_sessions (id, client_id, status, force_update, started_at, completed_at, error, enriched_data, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ClientID, string(sess.Status), sess.ForceUpdate, sess.StartedAt.UTC(),
		nullTime(sess.CompletedAt), sess.Error, nullString(dataJSON), nullString(metaJSON),
	)
	return eris.Wrapf(err, "sqlite: insert session for client %s", sess.ClientID)
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	dataJSON, metaJSON, err := marshalSessionJSON(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_sessions SET status = ?, completed_at = ?, error = ?, enriched_data = ?, metadata = ? WHERE id = ?`,
		string(sess.Status), nullTime(sess.CompletedAt), sess.Error, nullString(dataJSON), nullString(metaJSON), sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", sess.ID)
	}
	return checkRowsAffected(res, "session", sess.ID)
}

const sqliteSessionColumns = `id, client_id, status, force_update, started_at, completed_at, error, enriched_data, metadata`

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM enrichment_sessions WHERE id = ?`, sessionID)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "session", ID: sessionID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", sessionID)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sqliteSessionColumns + ` FROM enrichment_sessions WHERE 1=1`
	var args []any

	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close() //nolint:errcheck

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) AppendLog(ctx context.Context, entry *model.EnrichmentLog) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_logs (id, client_id, session_id, status, error, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ClientID, entry.SessionID, string(entry.Status), entry.Error, nullString(metaJSON), entry.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append log for client %s", entry.ClientID)
}

func (s *SQLiteStore) ListLogs(ctx context.Context, clientID string) ([]model.EnrichmentLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, session_id, status, error, metadata, created_at FROM enrichment_logs
		 WHERE client_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clientID, defaultListLimit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list logs")
	}
	defer rows.Close() //nolint:errcheck

	var logs []model.EnrichmentLog
	for rows.Next() {
		var l model.EnrichmentLog
		var metaJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.ClientID, &l.SessionID, &l.Status, &l.Error, &metaJSON, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log")
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &l.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal log metadata")
			}
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list logs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteClient(row scannable) (*model.ClientRecord, error) {
	var c model.ClientRecord
	var dataJSON sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.Status, &dataJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" {
		c.EnrichedData = &model.EnrichedData{}
		if err := json.Unmarshal([]byte(dataJSON.String), c.EnrichedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal enriched data")
		}
	}
	return &c, nil
}

func scanSQLiteSession(row scannable) (*model.Session, error) {
	var sess model.Session
	var completedAt sql.NullTime
	var dataJSON, metaJSON sql.NullString

	err := row.Scan(&sess.ID, &sess.ClientID, &sess.Status, &sess.ForceUpdate, &sess.StartedAt,
		&completedAt, &sess.Error, &dataJSON, &metaJSON)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	if dataJSON.Valid && dataJSON.String != "" {
		sess.EnrichedData = &model.EnrichedData{}
		if err := json.Unmarshal([]byte(dataJSON.String), sess.EnrichedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal session enriched data")
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &sess.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal session metadata")
		}
	}
	return &sess, nil
}

func marshalSessionJSON(sess *model.Session) (data, meta []byte, err error) {
	if sess.EnrichedData != nil {
		data, err = json.Marshal(sess.EnrichedData)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal session enriched data")
		}
	}
	meta, err = marshalMetadata(sess.Metadata)
	return data, meta, err
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "marshal metadata")
	}
	return b, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
