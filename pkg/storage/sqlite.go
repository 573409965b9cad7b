package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/types"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	account_id TEXT PRIMARY KEY,
	json       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteProvider implements the Database interface on a local SQLite file,
// for installs that run next to the home-automation box.
type SQLiteProvider struct {
	db   *sql.DB
	path string
}

// configuredSQLite sets up the SQLite provider.
// It registers flags for configuration.
func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "tauronsensor.db", "Path of the SQLite database file")

	s := &SQLiteProvider{}

	lflag.Do(func() {
		s.path = *path
	})

	return s
}

// NewSQLite returns a provider for the database file at path. Init must be
// called before use.
func NewSQLite(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Validate checks if the provider is properly configured.
func (s *SQLiteProvider) Validate() error {
	if s.path == "" {
		return errors.New("sqlite-path is required")
	}
	return nil
}

// Init opens the database and creates the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite (%s): %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite (%s): %w", s.path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	s.db = db
	return nil
}

// Close closes the database.
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetSnapshot retrieves the last stored snapshot for the account.
func (s *SQLiteProvider) GetSnapshot(ctx context.Context, accountID string) (types.StoredSnapshot, error) {
	if accountID == "" {
		return types.StoredSnapshot{}, fmt.Errorf("accountID cannot be empty")
	}

	var jsonStr string
	err := s.db.QueryRowContext(ctx, "SELECT json FROM snapshots WHERE account_id = ?", accountID).Scan(&jsonStr)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StoredSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return types.StoredSnapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var snap types.StoredSnapshot
	if err := json.Unmarshal([]byte(jsonStr), &snap); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal snapshot json", slog.String("accountID", accountID), slog.Any("err", err))
		return types.StoredSnapshot{}, fmt.Errorf("failed to unmarshal snapshot json: %w", err)
	}
	return snap, nil
}

// SetSnapshot replaces the account's snapshot.
func (s *SQLiteProvider) SetSnapshot(ctx context.Context, accountID string, snap types.StoredSnapshot) error {
	if accountID == "" {
		return fmt.Errorf("accountID cannot be empty")
	}
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (account_id, json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET json = excluded.json, updated_at = excluded.updated_at`,
		accountID,
		string(jsonBytes),
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
