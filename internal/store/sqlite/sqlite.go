// Package sqlite stores keys and values in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"whsper/internal/db"
	"whsper/internal/migrate"
	"whsper/internal/store"
)

type Store struct {
	DB   *sql.DB
	Path string
	Now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens the workspace database and applies migrations.
func Open(ctx context.Context, cfg db.Config) (*Store, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	path := cfg.Path
	if path == "" {
		path = db.Path(cfg.Workspace)
	}
	return &Store{DB: conn, Path: path, Now: time.Now}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// View runs fn inside a read transaction; SQLite pins the snapshot at the
// first read and holds it until rollback.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(txn{ctx: ctx, tx: tx})
}

func (s *Store) Update(ctx context.Context, fn func(store.Writer) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if err := fn(txn{ctx: ctx, tx: tx, now: now}); err != nil {
		return err
	}
	return tx.Commit()
}

type txn struct {
	ctx context.Context
	tx  *sql.Tx
	now func() time.Time
}

func (t txn) Get(key store.Key) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM kv WHERE key=?`, key.String()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (t txn) Put(key store.Key, value []byte) error {
	if t.now == nil {
		return fmt.Errorf("put %s: read-only transaction", key)
	}
	ts := t.now().UTC().Format(time.RFC3339)
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO kv(key,tag,value,updated_at) VALUES (?,?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, key.String(), key.Tag, value, ts)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
