package sensor

import (
	"math"

	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const (
	unitKWh          = "kWh"
	stateMeasurement = "measurement"
	uniqueIDPrefix   = "tauron_"
	iconFlash        = "mdi:flash"
	iconSolarPower   = "mdi:solar-power"
	iconScaleBalance = "mdi:scale-balance"
	iconBatteryPlus  = "mdi:battery-positive"
	iconBattery      = "mdi:battery"
	iconChartLine    = "mdi:chart-line"
	iconFlashAlert   = "mdi:flash-alert"
	iconSolarVariant = "mdi:solar-power-variant"
	iconClock        = "mdi:clock"
)

func info(key types.MetricKey, name, unit, icon string) types.SensorInfo {
	return types.SensorInfo{
		Key:        key,
		Name:       name,
		Unit:       unit,
		Icon:       icon,
		StateClass: stateMeasurement,
		UniqueID:   uniqueIDPrefix + string(key),
	}
}

var metrics = []types.SensorInfo{
	info(types.MetricTotalDailyConsumption, "Dzienne zużycie energii", unitKWh, iconFlash),
	info(types.MetricTotalDailyProduction, "Dzienna produkcja energii", unitKWh, iconSolarPower),
	info(types.MetricEnergyBalance, "Bilans energii", unitKWh, iconScaleBalance),
	info(types.MetricEnergyReturned, "Energia możliwa do odebrania", unitKWh, iconBatteryPlus),
	info(types.MetricEnergyStored, "Energia magazynowana", unitKWh, iconBattery),
	info(types.MetricAverageHourlyConsumption, "Średnie godzinowe zużycie energii", unitKWh, iconChartLine),
	info(types.MetricAverageHourlyProduction, "Średnia godzinowa produkcja energii", unitKWh, iconChartLine),
	info(types.MetricPeakConsumption, "Szczytowe zużycie energii", unitKWh, iconFlashAlert),
	info(types.MetricPeakProduction, "Szczytowa produkcja energii", unitKWh, iconSolarVariant),
	info(types.MetricPeakConsumptionHour, "Godzina szczytowego zużycia", "", iconClock),
	info(types.MetricPeakProductionHour, "Godzina szczytowej produkcji", "", iconClock),
}

// Metrics returns the fixed, ordered set of sensors.
func Metrics() []types.SensorInfo {
	out := make([]types.SensorInfo, len(metrics))
	copy(out, metrics)
	return out
}

// Lookup returns the metadata for key.
func Lookup(key types.MetricKey) (types.SensorInfo, bool) {
	for _, m := range metrics {
		if m.Key == key {
			return m, true
		}
	}
	return types.SensorInfo{}, false
}

// BuildSnapshot turns a report into sensor values. Energy figures are rounded
// to two decimals (half away from zero); peak hours are passed through as-is.
func BuildSnapshot(report types.Report) types.Snapshot {
	values := map[types.MetricKey]*float64{
		types.MetricTotalDailyConsumption:    round2(report.TotalConsumption),
		types.MetricTotalDailyProduction:     round2(report.TotalProduction),
		types.MetricEnergyBalance:            round2(report.EnergyBalance),
		types.MetricEnergyReturned:           round2(report.EnergyReturned),
		types.MetricEnergyStored:             round2(report.EnergyStored),
		types.MetricAverageHourlyConsumption: round2(report.AverageConsumption),
		types.MetricAverageHourlyProduction:  round2(report.AverageProduction),
		types.MetricPeakConsumption:          round2(report.PeakConsumptionValue),
		types.MetricPeakProduction:           round2(report.PeakProductionValue),
		types.MetricPeakConsumptionHour:      hour(report.PeakConsumptionHour),
		types.MetricPeakProductionHour:       hour(report.PeakProductionHour),
	}

	snap := make(types.Snapshot, len(metrics))
	for _, m := range metrics {
		snap[m.Key] = types.SensorValue{
			State:             values[m.Key],
			UnitOfMeasurement: m.Unit,
			FriendlyName:      m.Name,
		}
	}
	return snap
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}

func hour(h *int) *float64 {
	if h == nil {
		return nil
	}
	v := float64(*h)
	return &v
}
