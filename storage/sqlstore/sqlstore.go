// Package sqlstore implements storage.Storage on database/sql. SQLite
// (modernc.org/sqlite, pure Go) and Postgres (pgx stdlib driver) are
// supported; sessions are stored one row per session with the memory
// snapshot and the data maps as JSON columns.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/storage"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver ("sqlite")
)

// Options configure a Store.
type Options struct {
	// Table is the sessions table name. Defaults to "agent_sessions".
	Table string
	// AutoMigrate creates the table on Open when missing.
	AutoMigrate bool
	// MaxOpenConns limits the pool (0 keeps the driver default).
	MaxOpenConns int
}

// Store is a SQL backed storage.Storage.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

var _ storage.Storage = (*Store)(nil)

var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const columns = "session_id, agent_id, user_id, memory, agent_data, user_data, session_data, created_at, updated_at"

// Open connects to a database and returns a Store. dialect is "sqlite" or
// "postgres".
func Open(ctx context.Context, dialect, dsn string, optFns ...func(o *Options)) (*Store, error) {
	d, err := DialectFor(dialect)
	if err != nil {
		return nil, err
	}
	opts := Options{Table: "agent_sessions", AutoMigrate: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := New(db, d, func(o *Options) { *o = opts })
	if err != nil {
		db.Close()
		return nil, err
	}
	if opts.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return store, nil
}

// New wraps an existing connection. It does not touch the schema.
func New(db *sql.DB, dialect Dialect, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Table: "agent_sessions"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !validTable.MatchString(opts.Table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", opts.Table)
	}
	return &Store{db: db, dialect: dialect, table: opts.Table}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the sessions table and its user index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	j := s.dialect.JSONType
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT PRIMARY KEY,
			agent_id TEXT,
			user_id TEXT,
			memory %s,
			agent_data %s,
			user_data %s,
			session_data %s,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, s.table, j, j, j, j),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s (user_id)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// Read implements storage.Storage.
func (s *Store) Read(ctx context.Context, sessionID string) (*core.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = %s`, columns, s.table, s.dialect.Placeholder(1))
	row := s.db.QueryRowContext(ctx, query, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	return sess, nil
}

// Upsert implements storage.Storage.
func (s *Store) Upsert(ctx context.Context, session *core.Session) (*core.Session, error) {
	if session == nil || session.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	sess := session.Clone()
	storage.Touch(sess)

	memory, err := json.Marshal(sess.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to encode memory: %w", err)
	}
	agentData, userData, sessionData, err := encodeData(sess)
	if err != nil {
		return nil, err
	}

	d := s.dialect
	query := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (session_id) DO UPDATE SET
			agent_id = excluded.agent_id,
			user_id = excluded.user_id,
			memory = excluded.memory,
			agent_data = excluded.agent_data,
			user_data = excluded.user_data,
			session_data = excluded.session_data,
			updated_at = excluded.updated_at`,
		s.table, columns,
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3),
		d.jsonParam(4), d.jsonParam(5), d.jsonParam(6), d.jsonParam(7),
		d.Placeholder(8), d.Placeholder(9),
	)
	if _, err := s.db.ExecContext(ctx, query,
		sess.SessionID, sess.AgentID, sess.UserID,
		string(memory), agentData, userData, sessionData,
		sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("failed to upsert session %s: %w", sess.SessionID, err)
	}

	return s.Read(ctx, sess.SessionID)
}

// Delete implements storage.Storage.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = %s`, s.table, s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List implements storage.Storage.
func (s *Store) List(ctx context.Context, userID string) ([]*core.Session, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s FROM %s`, columns, s.table)
	var args []any
	if userID != "" {
		fmt.Fprintf(&b, ` WHERE user_id = %s`, s.dialect.Placeholder(1))
		args = append(args, userID)
	}
	b.WriteString(` ORDER BY updated_at DESC`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*core.Session, error) {
	var (
		sess                  core.Session
		agentID, userID       sql.NullString
		memory, agentData     []byte
		userData, sessionData []byte
		createdAt, updatedAt  int64
	)
	if err := row.Scan(&sess.SessionID, &agentID, &userID, &memory, &agentData, &userData, &sessionData, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.AgentID = agentID.String
	sess.UserID = userID.String
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := decodeJSON(memory, &sess.Memory); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	for _, f := range []struct {
		raw []byte
		dst *map[string]any
	}{
		{agentData, &sess.AgentData},
		{userData, &sess.UserData},
		{sessionData, &sess.SessionData},
	} {
		if err := decodeJSON(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &sess, nil
}

func encodeData(sess *core.Session) (agentData, userData, sessionData any, err error) {
	enc := func(m map[string]any) (any, error) {
		if m == nil {
			return nil, nil
		}
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	if agentData, err = enc(sess.AgentData); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode agent_data: %w", err)
	}
	if userData, err = enc(sess.UserData); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode user_data: %w", err)
	}
	if sessionData, err = enc(sess.SessionData); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode session_data: %w", err)
	}
	return agentData, userData, sessionData, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
