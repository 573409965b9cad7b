package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

func TestSQLiteProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	s := NewSQLite(path)
	require.NoError(t, s.Validate())
	require.NoError(t, s.Init(ctx))
	defer s.Close()

	t.Run("Validate", func(t *testing.T) {
		assert.ErrorContains(t, NewSQLite("").Validate(), "sqlite-path")
	})

	t.Run("EmptyAccountID", func(t *testing.T) {
		_, err := s.GetSnapshot(ctx, "")
		assert.ErrorContains(t, err, "accountID cannot be empty")
		assert.ErrorContains(t, s.SetSnapshot(ctx, "", types.StoredSnapshot{}), "accountID cannot be empty")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.GetSnapshot(ctx, "missing")
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("SetAndOverwrite", func(t *testing.T) {
		now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.SetSnapshot(ctx, "jan", types.StoredSnapshot{
			UpdatedAt: now,
			Snapshot: types.Snapshot{
				types.MetricTotalDailyConsumption: {State: types.Float(6), UnitOfMeasurement: "kWh", FriendlyName: "Dzienne zużycie energii"},
				types.MetricPeakConsumptionHour:   {State: nil, FriendlyName: "Godzina szczytowego zużycia"},
			},
		}))

		got, err := s.GetSnapshot(ctx, "jan")
		require.NoError(t, err)
		assert.True(t, now.Equal(got.UpdatedAt))
		require.Contains(t, got.Snapshot, types.MetricTotalDailyConsumption)
		assert.Equal(t, 6.0, *got.Snapshot[types.MetricTotalDailyConsumption].State)
		assert.Equal(t, "Dzienne zużycie energii", got.Snapshot[types.MetricTotalDailyConsumption].FriendlyName)
		assert.Nil(t, got.Snapshot[types.MetricPeakConsumptionHour].State)

		require.NoError(t, s.SetSnapshot(ctx, "jan", types.StoredSnapshot{
			UpdatedAt: now.Add(15 * time.Minute),
			Snapshot: types.Snapshot{
				types.MetricEnergyStored: {State: types.Float(1.2), UnitOfMeasurement: "kWh"},
			},
		}))
		got, err = s.GetSnapshot(ctx, "jan")
		require.NoError(t, err)
		assert.Len(t, got.Snapshot, 1, "snapshot is replaced wholesale")
		assert.Equal(t, 1.2, *got.Snapshot[types.MetricEnergyStored].State)
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		require.NoError(t, s.SetSnapshot(ctx, "reopen", types.StoredSnapshot{UpdatedAt: time.Now()}))

		s2 := NewSQLite(path)
		require.NoError(t, s2.Init(ctx))
		defer s2.Close()
		_, err := s2.GetSnapshot(ctx, "reopen")
		assert.NoError(t, err)
	})
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var db Database = Nop{}
	require.NoError(t, db.SetSnapshot(ctx, "jan", types.StoredSnapshot{}))
	_, err := db.GetSnapshot(ctx, "jan")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.NoError(t, db.Close())
}
