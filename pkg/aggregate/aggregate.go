// Package aggregate derives daily statistics from the portal's hourly series.
package aggregate

import (
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

// ProsumerRatio is the share of produced energy that the grid operator credits
// back to a prosumer.
const ProsumerRatio = 0.8

// Aggregate walks both hourly series and computes totals, peaks, averages and
// the prosumer figures. If either series is missing or has no values array an
// empty report is returned.
//
// Absent (nil) hours are skipped: they add nothing to the totals, can't become
// a peak and get no hourly entry. They still count towards the averages'
// denominator. Peaks only advance on a strictly greater value so the earliest
// hour wins a tie.
func Aggregate(consumption, production *types.ChartData) types.Report {
	report := types.Report{
		HourlyConsumption: []types.HourlyValue{},
		HourlyProduction:  []types.HourlyValue{},
	}
	if !consumption.HasValues() || !production.HasValues() {
		return report
	}

	cv := consumption.Values
	pv := production.Values
	hours := max(len(cv), len(pv))

	var cPeak, pPeak peak
	for h := 0; h < hours; h++ {
		if h < len(cv) && cv[h] != nil {
			v := *cv[h]
			report.TotalConsumption += v
			report.HourlyConsumption = append(report.HourlyConsumption, types.HourlyValue{Hour: h, Value: v})
			cPeak.observe(h, v)
		}
		if h < len(pv) && pv[h] != nil {
			v := *pv[h]
			report.TotalProduction += v
			report.HourlyProduction = append(report.HourlyProduction, types.HourlyValue{Hour: h, Value: v})
			pPeak.observe(h, v)
		}
	}

	report.PeakConsumptionValue, report.PeakConsumptionHour = cPeak.value, cPeak.hour
	report.PeakProductionValue, report.PeakProductionHour = pPeak.value, pPeak.hour

	report.EnergyReturned = report.TotalProduction * ProsumerRatio
	report.EnergyStored = report.TotalProduction - report.EnergyReturned
	report.EnergyBalance = report.EnergyReturned - report.TotalConsumption

	if len(cv) > 0 {
		report.AverageConsumption = report.TotalConsumption / float64(len(cv))
	}
	if len(pv) > 0 {
		report.AverageProduction = report.TotalProduction / float64(len(pv))
	}

	return report
}

// peak tracks the running maximum of a series. The zero value starts at 0 with
// no hour so only positive readings are ever recorded.
type peak struct {
	value float64
	hour  *int
}

func (p *peak) observe(hour int, v float64) {
	if v > p.value {
		p.value = v
		p.hour = &hour
	}
}
