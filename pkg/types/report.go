package types

// Report holds the daily statistics derived from a RawSeries. Peak hours are
// nil when no hour had a positive reading.
type Report struct {
	TotalConsumption float64 `json:"totalConsumption"`
	TotalProduction  float64 `json:"totalProduction"`

	// prosumer figures
	EnergyBalance  float64 `json:"energyBalance"`
	EnergyReturned float64 `json:"energyReturned"`
	EnergyStored   float64 `json:"energyStored"`

	HourlyConsumption []HourlyValue `json:"hourlyConsumption"`
	HourlyProduction  []HourlyValue `json:"hourlyProduction"`

	PeakConsumptionHour  *int    `json:"peakConsumptionHour"`
	PeakConsumptionValue float64 `json:"peakConsumptionValue"`
	PeakProductionHour   *int    `json:"peakProductionHour"`
	PeakProductionValue  float64 `json:"peakProductionValue"`

	AverageConsumption float64 `json:"averageConsumption"`
	AverageProduction  float64 `json:"averageProduction"`
}
