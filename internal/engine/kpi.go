package engine

import (
	"context"
	"math"
	"time"

	"plantline/internal/analytics"
	"plantline/internal/domain"
)

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ReliabilityReport bundles the per-asset reliability figures. Nil fields
// mean the history is too thin to compute them.
type ReliabilityReport struct {
	AssetID          int64    `json:"asset_id"`
	MTBFHours        *float64 `json:"mtbf_hours"`
	MTTRHours        *float64 `json:"mttr_hours"`
	AvailabilityPct  *float64 `json:"availability_pct"`
	ReliabilityDays  int      `json:"reliability_window_days"`
	AvailabilityDays int      `json:"availability_window_days"`
}

func (e Engine) AssetReliability(ctx context.Context, assetID int64) (ReliabilityReport, error) {
	if _, err := e.Repo.GetAsset(ctx, assetID); err != nil {
		return ReliabilityReport{}, err
	}
	orders, err := e.Repo.WorkOrderSnapshot(ctx)
	if err != nil {
		return ReliabilityReport{}, err
	}
	now := e.now()
	relDays := e.Config.Analytics.ReliabilityWindowDays
	availDays := e.Config.Analytics.AvailabilityWindowDays
	return ReliabilityReport{
		AssetID:          assetID,
		MTBFHours:        analytics.MTBF(orders, assetID, relDays, now),
		MTTRHours:        analytics.MTTR(orders, assetID, relDays, now),
		AvailabilityPct:  analytics.Availability(orders, assetID, availDays, now),
		ReliabilityDays:  relDays,
		AvailabilityDays: availDays,
	}, nil
}

// Dashboard is the one-call overview the CLI and API surface on the front
// page.
type Dashboard struct {
	Metrics      analytics.MaintenanceMetrics `json:"metrics"`
	LowStock     []domain.InventoryItem       `json:"low_stock"`
	TopConsumers []analytics.Consumer         `json:"top_consumers"`
}

func (e Engine) DashboardReport(ctx context.Context) (Dashboard, error) {
	orders, err := e.Repo.WorkOrderSnapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	low, err := e.Repo.LowStockItems(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	now := e.now()
	lookback := e.Config.Analytics.StockoutLookbackDays
	movements, err := e.Repo.ListMovements(ctx, 0, analyticsCutoff(now, lookback))
	if err != nil {
		return Dashboard{}, err
	}
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Metrics:      analytics.Metrics(orders, e.Config.Analytics.AvailabilityWindowDays, now),
		LowStock:     low,
		TopConsumers: analytics.TopConsumers(movements, items, lookback, 5, now),
	}, nil
}

// ConsumptionTrend returns per-period consumption and purchase totals for one
// item, or for the whole plant when itemID is zero. Daily granularity buckets
// by day, otherwise by month.
func (e Engine) ConsumptionTrend(ctx context.Context, itemID int64, windowDays int, daily bool) ([]analytics.TrendPoint, error) {
	if windowDays <= 0 {
		windowDays = e.Config.Analytics.TrendWindowDays
	}
	now := e.now()
	movements, err := e.Repo.ListMovements(ctx, itemID, analyticsCutoff(now, windowDays+1))
	if err != nil {
		return nil, err
	}
	if daily {
		return analytics.DailyTrend(movements, itemID, windowDays, now), nil
	}
	return analytics.MonthlyTrend(movements, itemID, windowDays, now), nil
}

// StockoutForecast projects depletion for one inventory item using the
// configured lookback, horizon and safety factor.
func (e Engine) StockoutForecast(ctx context.Context, itemID int64) (domain.InventoryItem, analytics.StockoutForecast, error) {
	item, err := e.Repo.GetItem(ctx, itemID)
	if err != nil {
		return item, analytics.StockoutForecast{}, err
	}
	now := e.now()
	params := analytics.StockoutParams{
		LookbackDays: e.Config.Analytics.StockoutLookbackDays,
		HorizonDays:  e.Config.Analytics.ReorderHorizonDays,
		SafetyFactor: e.Config.Analytics.SafetyFactor,
	}
	movements, err := e.Repo.ListMovements(ctx, itemID, analyticsCutoff(now, params.LookbackDays))
	if err != nil {
		return item, analytics.StockoutForecast{}, err
	}
	return item, analytics.PredictStockout(item, movements, params, now), nil
}

func analyticsCutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
