package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/assessli/companion/internal/model"
	"github.com/assessli/companion/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Profiles() store.Profiles { return &profiles{db: s.db} }
func (s *pgStore) Messages() store.Messages { return &messages{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates both tables if they do not exist.
func (s *pgStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
            id TEXT PRIMARY KEY,
            name TEXT,
            email TEXT,
            phone TEXT,
            meta JSONB,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            user_id TEXT,
            role TEXT NOT NULL,
            message TEXT NOT NULL,
            metadata JSONB,
            ts TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS messages_ts_idx ON messages(ts)`,
		`CREATE INDEX IF NOT EXISTS messages_user_ts_idx ON messages(user_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return model.NewStorageError("ensure schema", err)
		}
	}
	return nil
}

// --- Profiles ---

type profiles struct{ db *sql.DB }

func (p *profiles) Put(ctx context.Context, in *model.Profile) (*model.Profile, error) {
	metaJSON, err := json.Marshal(in.Meta)
	if err != nil {
		return nil, model.NewStorageError("encode profile meta", err)
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO profiles (id, name, email, phone, meta, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            meta = EXCLUDED.meta,
            created_at = EXCLUDED.created_at
    `, in.ID, in.Name, in.Email, in.Phone, string(metaJSON), in.CreatedAt.UTC())
	if err != nil {
		return nil, model.NewStorageError("put profile", err)
	}
	return in, nil
}

func (p *profiles) Get(ctx context.Context, id string) (*model.Profile, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT id, name, email, phone, meta, created_at FROM profiles WHERE id=$1
    `, id)
	pr, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return pr, err
}

func (p *profiles) List(ctx context.Context) ([]*model.Profile, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, name, email, phone, meta, created_at
        FROM profiles ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, model.NewStorageError("list profiles", err)
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Profile
	for rows.Next() {
		pr, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list profiles", err)
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var pr model.Profile
	var meta sql.NullString
	var created time.Time
	if err := row.Scan(&pr.ID, &pr.Name, &pr.Email, &pr.Phone, &meta, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, model.NewStorageError("scan profile", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &pr.Meta); err != nil {
			return nil, model.NewStorageError("decode profile meta", err)
		}
	}
	pr.CreatedAt = created.UTC()
	return &pr, nil
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, in *model.Message) (*model.Message, error) {
	metaJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, model.NewStorageError("encode message metadata", err)
	}
	_, err = m.db.ExecContext(ctx, `
        INSERT INTO messages (id, user_id, role, message, metadata, ts)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, in.ID, in.UserID, in.Role, in.Body, string(metaJSON), in.TS.UTC())
	if err != nil {
		return nil, model.NewStorageError("create message", err)
	}
	return in, nil
}

func (m *messages) ListRecent(ctx context.Context, limit int) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT id, user_id, role, message, metadata, ts
        FROM messages ORDER BY ts DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, model.NewStorageError("list recent messages", err)
	}
	return collectMessages(rows)
}

func (m *messages) ListByProfile(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error) {
	q := `SELECT id, user_id, role, message, metadata, ts FROM messages WHERE user_id=$1 ORDER BY ts ASC`
	args := []interface{}{req.UserID}
	if req.Limit > 0 {
		q += ` LIMIT $2`
		args = append(args, req.Limit)
	}
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, model.NewStorageError("list profile messages", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]*model.Message, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		var meta sql.NullString
		var ts time.Time
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Body, &meta, &ts); err != nil {
			return nil, model.NewStorageError("scan message", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &msg.Metadata); err != nil {
				return nil, model.NewStorageError("decode message metadata", err)
			}
		}
		msg.TS = ts.UTC()
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("iterate messages", err)
	}
	return out, nil
}
