package types

import "time"

// ChartData is the body returned by the portal's chart endpoint. Values holds
// one entry per hour and an entry is nil when the portal has no reading for
// that hour. A nil ChartData or a nil Values means the payload was missing or
// malformed.
type ChartData struct {
	Values []*float64 `json:"values"`
}

// HasValues returns true if the payload carried a recognizable values array.
func (c *ChartData) HasValues() bool {
	return c != nil && c.Values != nil
}

// RawSeries is the pair of hourly series for a date window.
type RawSeries struct {
	From        time.Time  `json:"from"`
	To          time.Time  `json:"to"`
	Consumption *ChartData `json:"consumption"`
	Production  *ChartData `json:"production"`
}

// HourlyValue is a single present hourly reading.
type HourlyValue struct {
	Hour  int     `json:"hour"`
	Value float64 `json:"value"`
}

// Float returns a pointer to v. Useful for building ChartData literals.
func Float(v float64) *float64 {
	return &v
}
