package server

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

type mockCoordinator struct {
	mock.Mock
}

var _ Coordinator = (*mockCoordinator)(nil)

func (m *mockCoordinator) Snapshot() (types.Snapshot, time.Time, bool) {
	args := m.Called()
	// return no data if not specified
	if len(args) > 0 {
		return args.Get(0).(types.Snapshot), args.Get(1).(time.Time), args.Bool(2)
	}
	return nil, time.Time{}, false
}

func (m *mockCoordinator) Subscribe() (<-chan types.Snapshot, func()) {
	args := m.Called()
	return args.Get(0).(chan types.Snapshot), args.Get(1).(func())
}

func (m *mockCoordinator) ForceRefresh(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func testSnapshot(consumption float64) types.Snapshot {
	return types.Snapshot{
		types.MetricTotalDailyConsumption: {State: types.Float(consumption), UnitOfMeasurement: "kWh", FriendlyName: "Dzienne zużycie energii"},
		types.MetricPeakProductionHour:    {State: nil, FriendlyName: "Godzina szczytowej produkcji"},
	}
}
