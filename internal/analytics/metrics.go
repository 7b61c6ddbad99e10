package analytics

import (
	"math"
	"time"

	"plantline/internal/domain"
)

// MaintenanceMetrics is the KPI bundle for a reporting window. MTBF, MTTR and
// Availability stay nil when their calculators lack data;
// PreventiveRatePercent is 0 for an empty window, which is a computed zero,
// not missing data.
type MaintenanceMetrics struct {
	TotalWorkOrders       int      `json:"total_work_orders"`
	Completed             int      `json:"completed"`
	PreventiveCount       int      `json:"preventive_count"`
	CorrectiveCount       int      `json:"corrective_count"`
	PreventiveRatePercent float64  `json:"preventive_rate_percent"`
	AvgDowntimeHours      float64  `json:"avg_downtime_hours"`
	TotalCost             int64    `json:"total_cost"`
	MTBF                  *float64 `json:"mtbf"`
	MTTR                  *float64 `json:"mttr"`
	Availability          *float64 `json:"availability"`
}

// Metrics composes the reliability calculators and the window aggregates into
// one bundle. Pure composition, no logic of its own beyond counting.
func Metrics(orders []domain.WorkOrder, windowDays int, now time.Time) MaintenanceMetrics {
	if windowDays <= 0 {
		windowDays = DefaultAvailabilityWindowDays
	}
	since := cutoff(now, windowDays)

	var m MaintenanceMetrics
	var downtime, cost float64
	for _, wo := range orders {
		if wo.CreatedAt.Before(since) {
			continue
		}
		m.TotalWorkOrders++
		if wo.Status != domain.StatusCompleted {
			continue
		}
		m.Completed++
		switch wo.Kind {
		case domain.KindPreventive:
			m.PreventiveCount++
		case domain.KindCorrective:
			m.CorrectiveCount++
		}
		if wo.DowntimeHours != nil {
			downtime += *wo.DowntimeHours
		}
		if wo.LaborCost != nil {
			cost += *wo.LaborCost
		}
		if wo.PartsCost != nil {
			cost += *wo.PartsCost
		}
	}

	if m.TotalWorkOrders > 0 {
		m.PreventiveRatePercent = math.Round(float64(m.PreventiveCount) / float64(m.TotalWorkOrders) * 100)
	}
	if m.Completed > 0 {
		m.AvgDowntimeHours = round1(downtime / float64(m.Completed))
	}
	m.TotalCost = int64(math.Round(cost))
	m.MTBF = MTBF(orders, 0, windowDays, now)
	m.MTTR = MTTR(orders, 0, windowDays, now)
	m.Availability = Availability(orders, 0, windowDays, now)
	return m
}
