package types

import "time"

// MetricKey identifies one sensor exposed to the home-automation side.
type MetricKey string

const (
	MetricTotalDailyConsumption    MetricKey = "total_daily_consumption"
	MetricTotalDailyProduction     MetricKey = "total_daily_production"
	MetricEnergyBalance            MetricKey = "energy_balance"
	MetricEnergyReturned           MetricKey = "energy_returned"
	MetricEnergyStored             MetricKey = "energy_stored"
	MetricAverageHourlyConsumption MetricKey = "average_hourly_consumption"
	MetricAverageHourlyProduction  MetricKey = "average_hourly_production"
	MetricPeakConsumption          MetricKey = "peak_consumption"
	MetricPeakProduction           MetricKey = "peak_production"
	MetricPeakConsumptionHour      MetricKey = "peak_consumption_hour"
	MetricPeakProductionHour       MetricKey = "peak_production_hour"
)

// SensorInfo describes how a metric is presented.
type SensorInfo struct {
	Key        MetricKey `json:"key"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit,omitempty"`
	Icon       string    `json:"icon"`
	StateClass string    `json:"stateClass"`
	UniqueID   string    `json:"uniqueID"`
}

// SensorValue is the displayed state of one metric. State is nil when the
// metric has no value, which only happens for the peak hour metrics.
type SensorValue struct {
	State             *float64 `json:"state"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	FriendlyName      string   `json:"friendly_name"`
}

// Snapshot maps every metric to its current value. A new Snapshot replaces
// the previous one entirely.
type Snapshot map[MetricKey]SensorValue

// StoredSnapshot is the last-known snapshot as persisted by storage.
type StoredSnapshot struct {
	Snapshot  Snapshot  `json:"snapshot"`
	UpdatedAt time.Time `json:"updatedAt"`
}
