package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/kv/migrations"
	"github.com/dmitrijs2005/teadiary/internal/dbx"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	conn *sql.DB
	db   dbx.DBTX
	now  func() time.Time
}

// Open opens (creating if needed) the SQLite database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// one connection: a single writer avoids SQLITE_BUSY, and ":memory:"
	// databases live only as long as their connection
	conn.SetMaxOpenConns(1)

	if err := dbx.Migrate(ctx, conn, dbx.Migrations{FS: migrations.Migrations, Dialect: "sqlite3"}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return &SQLiteStore{conn: conn, db: conn, now: time.Now}, nil
}

// NewSQLiteStore wraps an already migrated handle. SetMany is only atomic
// when the handle is a *sql.DB.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	s := &SQLiteStore{db: db, now: time.Now}
	if conn, ok := db.(*sql.DB); ok {
		s.conn = conn
	}
	return s
}

func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, s.db, key, value)
}

func (s *SQLiteStore) set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// SetMany writes all values in one transaction.
func (s *SQLiteStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if s.conn == nil {
		for k, v := range values {
			if err := s.set(ctx, s.db, k, v); err != nil {
				return err
			}
		}
		return nil
	}
	return dbx.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range values {
			if err := s.set(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}

	return result, nil
}
