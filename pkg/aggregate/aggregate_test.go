package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

func series(values ...*float64) *types.ChartData {
	if values == nil {
		values = []*float64{}
	}
	return &types.ChartData{Values: values}
}

func nums(vs ...float64) *types.ChartData {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = types.Float(v)
	}
	return series(out...)
}

func TestAggregate(t *testing.T) {
	t.Run("EndToEnd", func(t *testing.T) {
		r := Aggregate(nums(1, 2, 3), nums(4, 0, 2))

		assert.Equal(t, 6.0, r.TotalConsumption)
		assert.Equal(t, 6.0, r.TotalProduction)
		require.NotNil(t, r.PeakConsumptionHour)
		assert.Equal(t, 2, *r.PeakConsumptionHour)
		assert.Equal(t, 3.0, r.PeakConsumptionValue)
		require.NotNil(t, r.PeakProductionHour)
		assert.Equal(t, 0, *r.PeakProductionHour)
		assert.Equal(t, 4.0, r.PeakProductionValue)
		assert.InDelta(t, 4.8, r.EnergyReturned, 1e-9)
		assert.InDelta(t, 1.2, r.EnergyStored, 1e-9)
		assert.InDelta(t, -1.2, r.EnergyBalance, 1e-9)
		assert.Equal(t, 2.0, r.AverageConsumption)
		assert.Equal(t, 2.0, r.AverageProduction)
		assert.Len(t, r.HourlyConsumption, 3)
		assert.Len(t, r.HourlyProduction, 3)
	})

	t.Run("TotalsAreSums", func(t *testing.T) {
		c := []float64{0.12, 0.5, 1.25, 0.75, 0.3, 0.01}
		p := []float64{0, 0, 0.4, 2.1, 1.9, 0}
		r := Aggregate(nums(c...), nums(p...))

		var cSum, pSum float64
		for i := range c {
			cSum += c[i]
			pSum += p[i]
		}
		assert.InDelta(t, cSum, r.TotalConsumption, 1e-9)
		assert.InDelta(t, pSum, r.TotalProduction, 1e-9)
	})

	t.Run("PeakTieKeepsEarliestHour", func(t *testing.T) {
		r := Aggregate(nums(3, 7, 7, 2), nums())
		require.NotNil(t, r.PeakConsumptionHour)
		assert.Equal(t, 7.0, r.PeakConsumptionValue)
		assert.Equal(t, 1, *r.PeakConsumptionHour)
		assert.Nil(t, r.PeakProductionHour)
	})

	t.Run("NullHoursAreSkipped", func(t *testing.T) {
		r := Aggregate(series(types.Float(5), nil, types.Float(10)), nums())
		assert.Equal(t, 15.0, r.TotalConsumption)
		assert.Equal(t, []types.HourlyValue{{Hour: 0, Value: 5}, {Hour: 2, Value: 10}}, r.HourlyConsumption)
		require.NotNil(t, r.PeakConsumptionHour)
		assert.Equal(t, 2, *r.PeakConsumptionHour)
		// the null hour still counts in the average
		assert.Equal(t, 5.0, r.AverageConsumption)
	})

	t.Run("ProsumerFigures", func(t *testing.T) {
		r := Aggregate(nums(50), nums(100))
		assert.InDelta(t, 80.0, r.EnergyReturned, 1e-9)
		assert.InDelta(t, 20.0, r.EnergyStored, 1e-9)
		assert.InDelta(t, 30.0, r.EnergyBalance, 1e-9)
	})

	t.Run("UnequalLengths", func(t *testing.T) {
		r := Aggregate(nums(1, 2), nums(1, 2, 6, 3))
		assert.Equal(t, 3.0, r.TotalConsumption)
		assert.Equal(t, 12.0, r.TotalProduction)
		assert.Len(t, r.HourlyConsumption, 2)
		assert.Len(t, r.HourlyProduction, 4)
		require.NotNil(t, r.PeakProductionHour)
		assert.Equal(t, 2, *r.PeakProductionHour)
		assert.Equal(t, 1.5, r.AverageConsumption)
		assert.Equal(t, 3.0, r.AverageProduction)
	})

	t.Run("NonPositiveNeverPeaks", func(t *testing.T) {
		r := Aggregate(nums(0, 0), nums(-1, 0))
		assert.Nil(t, r.PeakConsumptionHour)
		assert.Nil(t, r.PeakProductionHour)
		assert.Equal(t, 0.0, r.PeakConsumptionValue)
		assert.Equal(t, -1.0, r.TotalProduction)
	})

	t.Run("EmptyOrMalformed", func(t *testing.T) {
		tests := []struct {
			name        string
			consumption *types.ChartData
			production  *types.ChartData
		}{
			{"BothNil", nil, nil},
			{"ConsumptionNil", nil, nums(1, 2)},
			{"ProductionNil", nums(1, 2), nil},
			{"MissingValues", &types.ChartData{}, nums(1)},
			{"EmptyValues", nums(), nums()},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := Aggregate(tt.consumption, tt.production)
				assert.Zero(t, r.TotalConsumption)
				assert.Zero(t, r.TotalProduction)
				assert.Zero(t, r.EnergyBalance)
				assert.Zero(t, r.EnergyReturned)
				assert.Zero(t, r.EnergyStored)
				assert.Zero(t, r.PeakConsumptionValue)
				assert.Zero(t, r.PeakProductionValue)
				assert.Zero(t, r.AverageConsumption)
				assert.Zero(t, r.AverageProduction)
				assert.Nil(t, r.PeakConsumptionHour)
				assert.Nil(t, r.PeakProductionHour)
				assert.Empty(t, r.HourlyConsumption)
				assert.Empty(t, r.HourlyProduction)
			})
		}
	})
}
