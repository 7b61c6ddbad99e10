// Package analytics derives maintenance and inventory KPIs from immutable
// record snapshots. Every function is pure: the caller supplies the
// collections and the reference clock, nothing is cached or mutated, and a
// nil result always means "cannot be determined", never zero.
package analytics

import (
	"math"
	"time"
)

// Window defaults, overridable per call.
const (
	DefaultReliabilityWindowDays  = 180
	DefaultAvailabilityWindowDays = 30
	DefaultTrendWindowDays        = 90
	DefaultStockoutLookbackDays   = 30
	DefaultReorderHorizonDays     = 30
	DefaultSafetyFactor           = 1.2
)

func cutoff(now time.Time, windowDays int) time.Time {
	return now.AddDate(0, 0, -windowDays)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}
