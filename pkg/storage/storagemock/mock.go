package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tauronsensor/tauronsensor/pkg/storage"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSnapshot(ctx context.Context, accountID string) (types.StoredSnapshot, error) {
	args := m.Called(ctx, accountID)
	// return not found if not specified
	if len(args) > 0 {
		return args.Get(0).(types.StoredSnapshot), args.Error(1)
	}
	return types.StoredSnapshot{}, storage.ErrSnapshotNotFound
}

func (m *MockDatabase) SetSnapshot(ctx context.Context, accountID string, snap types.StoredSnapshot) error {
	args := m.Called(ctx, accountID, snap)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
