package analytics

import (
	"math"
	"sort"
	"time"

	"plantline/internal/domain"
)

// TrendPoint is one calendar bucket of inventory flow. Consumption and
// Purchases are absolute-value sums; adjustments and returns are ignored.
type TrendPoint struct {
	Period      string  `json:"period"`
	Consumption float64 `json:"consumption"`
	Purchases   float64 `json:"purchases"`
}

// MonthlyTrend buckets movements into calendar months ("2026-09") within the
// window. itemID 0 means all items; windowDays <= 0 falls back to
// DefaultTrendWindowDays. Only months with activity appear; the result is
// sorted ascending.
func MonthlyTrend(movements []domain.InventoryMovement, itemID int64, windowDays int, now time.Time) []TrendPoint {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindowDays
	}
	since := cutoff(now, windowDays)

	byMonth := map[string]*TrendPoint{}
	for _, m := range movements {
		if m.CreatedAt.Before(since) {
			continue
		}
		if itemID != 0 && m.ItemID != itemID {
			continue
		}
		key := m.CreatedAt.Format("2006-01")
		p, ok := byMonth[key]
		if !ok {
			p = &TrendPoint{Period: key}
			byMonth[key] = p
		}
		accumulate(p, m)
	}

	points := make([]TrendPoint, 0, len(byMonth))
	for _, p := range byMonth {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points
}

// DailyTrend buckets movements into calendar days, pre-seeding every day in
// [now-windowDays, now] with zeros so charts render a continuous series. The
// result always has windowDays+1 points, sorted ascending. Movements dated
// outside the seeded range are dropped.
func DailyTrend(movements []domain.InventoryMovement, itemID int64, windowDays int, now time.Time) []TrendPoint {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindowDays
	}

	byDay := make(map[string]*TrendPoint, windowDays+1)
	points := make([]TrendPoint, windowDays+1)
	for d := 0; d <= windowDays; d++ {
		key := now.AddDate(0, 0, -(windowDays - d)).Format("2006-01-02")
		points[d] = TrendPoint{Period: key}
		byDay[key] = &points[d]
	}

	for _, m := range movements {
		if itemID != 0 && m.ItemID != itemID {
			continue
		}
		p, ok := byDay[m.CreatedAt.Format("2006-01-02")]
		if !ok {
			continue
		}
		accumulate(p, m)
	}
	return points
}

func accumulate(p *TrendPoint, m domain.InventoryMovement) {
	switch m.MovementType {
	case domain.MovementConsumption:
		p.Consumption += math.Abs(m.Quantity)
	case domain.MovementPurchase:
		p.Purchases += math.Abs(m.Quantity)
	}
}

// Consumer is one item's total consumption within a lookback window.
type Consumer struct {
	ItemID   int64   `json:"item_id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit,omitempty"`
	Total    float64 `json:"total"`
	SharePct float64 `json:"share_pct"`
}

// TopConsumers ranks items by absolute consumption within the lookback
// window, keeping the top limit entries. SharePct is relative to the largest
// consumer, for bar rendering.
func TopConsumers(movements []domain.InventoryMovement, items []domain.InventoryItem, lookbackDays, limit int, now time.Time) []Consumer {
	if lookbackDays <= 0 {
		lookbackDays = DefaultStockoutLookbackDays
	}
	since := cutoff(now, lookbackDays)

	totals := map[int64]float64{}
	for _, m := range movements {
		if m.MovementType != domain.MovementConsumption || m.CreatedAt.Before(since) {
			continue
		}
		totals[m.ItemID] += math.Abs(m.Quantity)
	}

	names := make(map[int64]domain.InventoryItem, len(items))
	for _, it := range items {
		names[it.ID] = it
	}

	consumers := make([]Consumer, 0, len(totals))
	for id, total := range totals {
		c := Consumer{ItemID: id, Total: total}
		if it, ok := names[id]; ok {
			c.Name = it.Name
			c.Unit = it.Unit
		}
		consumers = append(consumers, c)
	}
	sort.Slice(consumers, func(i, j int) bool {
		if consumers[i].Total != consumers[j].Total {
			return consumers[i].Total > consumers[j].Total
		}
		return consumers[i].ItemID < consumers[j].ItemID
	})
	if limit > 0 && len(consumers) > limit {
		consumers = consumers[:limit]
	}
	if len(consumers) > 0 && consumers[0].Total > 0 {
		max := consumers[0].Total
		for i := range consumers {
			consumers[i].SharePct = round1(consumers[i].Total / max * 100)
		}
	}
	return consumers
}
