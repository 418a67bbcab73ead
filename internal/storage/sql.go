package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/triggers"
)

// Placeholder selects the bind parameter style of a driver
type Placeholder int

const (
	// Question binds with ? (SQLite)
	Question Placeholder = iota
	// Dollar binds with $1, $2, ... (PostgreSQL)
	Dollar
)

// SQLStore implements Storage over a database/sql handle. Backends open the
// handle, run their own migrations and embed the store.
type SQLStore struct {
	db          *sql.DB
	placeholder Placeholder
}

// NewSQLStore wraps db
func NewSQLStore(db *sql.DB, placeholder Placeholder) *SQLStore {
	return &SQLStore{db: db, placeholder: placeholder}
}

// DB returns the underlying handle
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.ConnectionError("database ping failed", err)
	}
	return nil
}

// rebind rewrites ? placeholders for the configured driver
func (s *SQLStore) rebind(query string) string {
	if s.placeholder != Dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveTrigger(ctx context.Context, cfg triggers.Config) error {
	if cfg.ID == "" {
		return errors.ValidationError("trigger id is required")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return errors.InternalError("failed to encode trigger config", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO triggers (id, config, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`),
		cfg.ID, string(data), now, now)
	if err != nil {
		return errors.InternalError("failed to save trigger", err).WithContext("trigger_id", cfg.ID)
	}
	return nil
}

func (s *SQLStore) GetTrigger(ctx context.Context, id string) (*TriggerRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT config, created_at, updated_at FROM triggers WHERE id = ?`), id)

	record, err := scanTrigger(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("trigger").WithContext("trigger_id", id)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load trigger", err).WithContext("trigger_id", id)
	}
	return record, nil
}

func (s *SQLStore) ListTriggers(ctx context.Context) ([]*TriggerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT config, created_at, updated_at FROM triggers ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.InternalError("failed to list triggers", err)
	}
	defer rows.Close()

	var records []*TriggerRecord
	for rows.Next() {
		record, err := scanTrigger(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan trigger", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to list triggers", err)
	}
	return records, nil
}

func (s *SQLStore) DeleteTrigger(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM triggers WHERE id = ?`), id)
	if err != nil {
		return errors.InternalError("failed to delete trigger", err).WithContext("trigger_id", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError("trigger").WithContext("trigger_id", id)
	}
	return nil
}

func (s *SQLStore) GetCredential(ctx context.Context, ref string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT payload FROM credentials WHERE ref = ?`), ref).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", errors.NotFoundError("credential").WithContext("ref", ref)
	}
	if err != nil {
		return "", errors.InternalError("failed to load credential", err).WithContext("ref", ref)
	}
	return payload, nil
}

func (s *SQLStore) SaveCredential(ctx context.Context, ref, payload string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO credentials (ref, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ref) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`),
		ref, payload, now, now)
	if err != nil {
		return errors.InternalError("failed to save credential", err).WithContext("ref", ref)
	}
	return nil
}

func (s *SQLStore) DeleteCredential(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM credentials WHERE ref = ?`), ref)
	if err != nil {
		return errors.InternalError("failed to delete credential", err).WithContext("ref", ref)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError("credential").WithContext("ref", ref)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrigger(row scanner) (*TriggerRecord, error) {
	var (
		data   string
		record TriggerRecord
	)
	if err := row.Scan(&data, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &record.Config); err != nil {
		return nil, err
	}
	return &record, nil
}

// Migrate runs each statement in order inside ctx
func (s *SQLStore) Migrate(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.InternalError("migration failed", err)
		}
	}
	return nil
}
