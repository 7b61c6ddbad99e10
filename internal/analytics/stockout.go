package analytics

import (
	"math"
	"time"

	"plantline/internal/domain"
)

// StockoutParams tune the depletion projection. Zero values fall back to the
// package defaults, so callers normally pass StockoutParams{}.
type StockoutParams struct {
	LookbackDays int
	HorizonDays  int
	SafetyFactor float64
}

func (p StockoutParams) withDefaults() StockoutParams {
	if p.LookbackDays <= 0 {
		p.LookbackDays = DefaultStockoutLookbackDays
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = DefaultReorderHorizonDays
	}
	if p.SafetyFactor <= 0 {
		p.SafetyFactor = DefaultSafetyFactor
	}
	return p
}

// StockoutForecast projects depletion for one inventory item.
// DaysUntilStockout nil means the consumption velocity is zero and the item
// never depletes on current data.
type StockoutForecast struct {
	DaysUntilStockout        *int    `json:"days_until_stockout"`
	AvgDailyConsumption      float64 `json:"avg_daily_consumption"`
	RecommendedOrderQuantity float64 `json:"recommended_order_quantity"`
}

// PredictStockout derives consumption velocity from the item's movements
// within the lookback window and projects days until depletion plus a
// reorder quantity covering HorizonDays of projected use with the safety
// factor applied, never below the item's reorder threshold.
func PredictStockout(item domain.InventoryItem, movements []domain.InventoryMovement, params StockoutParams, now time.Time) StockoutForecast {
	p := params.withDefaults()
	since := cutoff(now, p.LookbackDays)

	var total float64
	var seen bool
	for _, m := range movements {
		if m.ItemID != item.ID || m.MovementType != domain.MovementConsumption || m.CreatedAt.Before(since) {
			continue
		}
		total += math.Abs(m.Quantity)
		seen = true
	}
	if !seen {
		// No history: velocity unknown, fall back to a conservative refill.
		return StockoutForecast{
			DaysUntilStockout:        nil,
			AvgDailyConsumption:      0,
			RecommendedOrderQuantity: item.MinQuantity * 2,
		}
	}

	avg := total / float64(p.LookbackDays)

	var days *int
	if avg > 0 {
		d := int(math.Floor(item.Quantity / avg))
		days = &d
	}

	recommended := math.Ceil(avg * float64(p.HorizonDays) * p.SafetyFactor)
	if recommended < item.MinQuantity {
		recommended = item.MinQuantity
	}

	return StockoutForecast{
		DaysUntilStockout:        days,
		AvgDailyConsumption:      round2(avg),
		RecommendedOrderQuantity: recommended,
	}
}
