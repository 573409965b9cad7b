package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Database persists the last-known sensor snapshot per account. Every write
// replaces the previous snapshot; no history is kept.
type Database interface {
	GetSnapshot(ctx context.Context, accountID string) (types.StoredSnapshot, error)
	SetSnapshot(ctx context.Context, accountID string, snap types.StoredSnapshot) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "none", "Storage provider to use (available: none, firestore, sqlite)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "none", "":
			p.Database = Nop{}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// Nop is a Database that stores nothing. The coordinator then starts every
// process without a snapshot until the first successful poll.
type Nop struct{}

var _ Database = Nop{}

func (Nop) GetSnapshot(ctx context.Context, accountID string) (types.StoredSnapshot, error) {
	return types.StoredSnapshot{}, ErrSnapshotNotFound
}

func (Nop) SetSnapshot(ctx context.Context, accountID string, snap types.StoredSnapshot) error {
	return nil
}

func (Nop) Close() error {
	return nil
}
