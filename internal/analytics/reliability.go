package analytics

import (
	"math"
	"sort"
	"time"

	"plantline/internal/domain"
)

// MTBF computes mean time between failures in hours over completed corrective
// work orders within the window. assetID 0 means all assets; windowDays <= 0
// falls back to DefaultReliabilityWindowDays. Returns nil with fewer than two
// qualifying failures.
func MTBF(orders []domain.WorkOrder, assetID int64, windowDays int, now time.Time) *float64 {
	if windowDays <= 0 {
		windowDays = DefaultReliabilityWindowDays
	}
	since := cutoff(now, windowDays)

	var failures []domain.WorkOrder
	for _, wo := range orders {
		if wo.Kind != domain.KindCorrective || wo.Status != domain.StatusCompleted || wo.CompletedAt == nil {
			continue
		}
		if wo.CompletedAt.Before(since) {
			continue
		}
		if assetID != 0 && wo.AssetID != assetID {
			continue
		}
		failures = append(failures, wo)
	}
	if len(failures) < 2 {
		return nil
	}

	// Sort before spanning: out-of-order reporting must not produce negative gaps.
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].CompletedAt.Before(*failures[j].CompletedAt)
	})
	span := failures[len(failures)-1].CompletedAt.Sub(*failures[0].CompletedAt).Hours()
	return ptr(round1(span / float64(len(failures)-1)))
}

// MTTR computes mean time to repair in hours over all completed work orders
// (both kinds) within the window. A completed order reporting neither
// downtime_hours nor a usable started/completed pair contributes zero hours,
// deflating the mean rather than shrinking the denominator. Returns nil when
// nothing qualifies.
func MTTR(orders []domain.WorkOrder, assetID int64, windowDays int, now time.Time) *float64 {
	if windowDays <= 0 {
		windowDays = DefaultReliabilityWindowDays
	}
	since := cutoff(now, windowDays)

	var (
		total float64
		count int
	)
	for _, wo := range orders {
		if wo.Status != domain.StatusCompleted || wo.CompletedAt == nil || wo.CompletedAt.Before(since) {
			continue
		}
		if assetID != 0 && wo.AssetID != assetID {
			continue
		}
		count++
		total += repairHours(wo)
	}
	if count == 0 {
		return nil
	}
	return ptr(round1(total / float64(count)))
}

func repairHours(wo domain.WorkOrder) float64 {
	if wo.DowntimeHours != nil && *wo.DowntimeHours > 0 {
		return *wo.DowntimeHours
	}
	if wo.StartedAt != nil && wo.CompletedAt != nil {
		return math.Max(0, wo.CompletedAt.Sub(*wo.StartedAt).Hours())
	}
	return 0
}

// Availability computes the percentage of the window the asset was not in
// recorded downtime, clamped to [0,100]. Overlapping or duplicated downtime
// entries can exceed the period; the clamp keeps the result bounded. Zero
// qualifying records yields 100, since no downtime was recorded.
func Availability(orders []domain.WorkOrder, assetID int64, windowDays int, now time.Time) *float64 {
	if windowDays <= 0 {
		windowDays = DefaultAvailabilityWindowDays
	}
	since := cutoff(now, windowDays)

	var totalDowntime float64
	for _, wo := range orders {
		if wo.Status != domain.StatusCompleted || wo.CompletedAt == nil || wo.CompletedAt.Before(since) {
			continue
		}
		if assetID != 0 && wo.AssetID != assetID {
			continue
		}
		if wo.DowntimeHours != nil {
			totalDowntime += *wo.DowntimeHours
		}
	}

	periodHours := float64(windowDays) * 24
	availability := (periodHours - totalDowntime) / periodHours * 100
	return ptr(math.Max(0, math.Min(100, round1(availability))))
}
