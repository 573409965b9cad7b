package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/types"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each account has a single document under "accounts".
type FirestoreProvider struct {
	client          *firestore.Client
	projectID       string
	database        string
	credentialsFile string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")
	credentialsFile := lflag.String("firestore-credentials-file", "", "Service account JSON file (defaults to application default credentials)")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.credentialsFile = *credentialsFile

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	if f.credentialsFile != "" {
		if _, err := os.Stat(f.credentialsFile); err != nil {
			return fmt.Errorf("firestore credentials file: %w", err)
		}
	}
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	var opts []option.ClientOption
	if f.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.credentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getDoc(accountID string) (*firestore.DocumentRef, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID cannot be empty")
	}
	return f.client.Collection("accounts").Doc(accountID), nil
}

// GetSnapshot retrieves the last stored snapshot for the account.
func (f *FirestoreProvider) GetSnapshot(ctx context.Context, accountID string) (types.StoredSnapshot, error) {
	ref, err := f.getDoc(accountID)
	if err != nil {
		return types.StoredSnapshot{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.StoredSnapshot{}, ErrSnapshotNotFound
		}
		return types.StoredSnapshot{}, fmt.Errorf("failed to fetch snapshot doc: %w", err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "snapshot doc missing json", slog.String("accountID", accountID))
		return types.StoredSnapshot{}, fmt.Errorf("snapshot document missing 'json' field: %w", err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "snapshot doc json not string", slog.String("accountID", accountID))
		return types.StoredSnapshot{}, fmt.Errorf("snapshot 'json' field is not a string")
	}

	var s types.StoredSnapshot
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal snapshot json", slog.String("accountID", accountID), slog.Any("err", err))
		return types.StoredSnapshot{}, fmt.Errorf("failed to unmarshal snapshot json: %w", err)
	}
	return s, nil
}

// SetSnapshot overwrites the account's snapshot document. It stores the
// snapshot as a JSON string for portability.
func (f *FirestoreProvider) SetSnapshot(ctx context.Context, accountID string, snap types.StoredSnapshot) error {
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ref, err := f.getDoc(accountID)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": snap.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
