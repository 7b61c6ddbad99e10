package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantline/internal/domain"
)

func movement(itemID int64, movType string, qty float64, at time.Time) domain.InventoryMovement {
	return domain.InventoryMovement{
		ItemID:       itemID,
		MovementType: movType,
		Quantity:     qty,
		CreatedAt:    at,
	}
}

func TestMonthlyTrendAbsoluteValueSummation(t *testing.T) {
	at := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementConsumption, -3, at),
		movement(1, domain.MovementConsumption, -7, at.Add(48*time.Hour)),
		movement(1, domain.MovementPurchase, 20, at.Add(time.Hour)),
	}
	points := MonthlyTrend(movements, 0, 90, testNow)
	require.Len(t, points, 1)
	assert.Equal(t, "2026-05", points[0].Period)
	assert.Equal(t, 10.0, points[0].Consumption)
	assert.Equal(t, 20.0, points[0].Purchases)
}

func TestMonthlyTrendIgnoresAdjustmentsAndReturns(t *testing.T) {
	at := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementAdjustment, 50, at),
		movement(1, domain.MovementReturn, 5, at),
		movement(1, domain.MovementConsumption, -2, at),
	}
	points := MonthlyTrend(movements, 0, 90, testNow)
	require.Len(t, points, 1)
	assert.Equal(t, 2.0, points[0].Consumption)
	assert.Equal(t, 0.0, points[0].Purchases)
}

func TestMonthlyTrendSortedAscending(t *testing.T) {
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementConsumption, -1, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		movement(1, domain.MovementConsumption, -1, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)),
		movement(1, domain.MovementConsumption, -1, time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)),
	}
	points := MonthlyTrend(movements, 0, 90, testNow)
	require.Len(t, points, 3)
	assert.Equal(t, "2026-03", points[0].Period)
	assert.Equal(t, "2026-04", points[1].Period)
	assert.Equal(t, "2026-05", points[2].Period)
}

func TestMonthlyTrendItemFilterAndWindow(t *testing.T) {
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementConsumption, -5, testNow.Add(-24*time.Hour)),
		movement(2, domain.MovementConsumption, -9, testNow.Add(-24*time.Hour)),
		movement(1, domain.MovementConsumption, -5, testNow.AddDate(0, 0, -120)), // outside 90d
	}
	points := MonthlyTrend(movements, 1, 90, testNow)
	require.Len(t, points, 1)
	assert.Equal(t, 5.0, points[0].Consumption)
}

func TestDailyTrendSeedsEveryDay(t *testing.T) {
	windowDays := 30
	points := DailyTrend(nil, 0, windowDays, testNow)
	require.Len(t, points, windowDays+1)
	for i, p := range points {
		assert.Zero(t, p.Consumption, "day %d", i)
		assert.Zero(t, p.Purchases, "day %d", i)
	}
	assert.Equal(t, testNow.AddDate(0, 0, -windowDays).Format("2006-01-02"), points[0].Period)
	assert.Equal(t, testNow.Format("2006-01-02"), points[windowDays].Period)
}

func TestDailyTrendBucketsByCalendarDay(t *testing.T) {
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementConsumption, -4, testNow.Add(-2*time.Hour)),
		movement(1, domain.MovementPurchase, 6, testNow.Add(-3*time.Hour)),
		movement(1, domain.MovementConsumption, -1, testNow.AddDate(0, 0, -45)), // outside seeded range
	}
	points := DailyTrend(movements, 0, 30, testNow)
	last := points[len(points)-1]
	assert.Equal(t, 4.0, last.Consumption)
	assert.Equal(t, 6.0, last.Purchases)

	var total float64
	for _, p := range points {
		total += p.Consumption
	}
	assert.Equal(t, 4.0, total)
}

func TestTopConsumersRanking(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: 1, Name: "grease", Unit: "kg"},
		{ID: 2, Name: "filters", Unit: "u"},
		{ID: 3, Name: "belts", Unit: "u"},
	}
	movements := []domain.InventoryMovement{
		movement(1, domain.MovementConsumption, -10, testNow.Add(-time.Hour)),
		movement(2, domain.MovementConsumption, -40, testNow.Add(-time.Hour)),
		movement(3, domain.MovementConsumption, -20, testNow.Add(-time.Hour)),
		movement(2, domain.MovementPurchase, 100, testNow.Add(-time.Hour)), // not consumption
	}
	top := TopConsumers(movements, items, 30, 2, testNow)
	require.Len(t, top, 2)
	assert.Equal(t, "filters", top[0].Name)
	assert.Equal(t, 40.0, top[0].Total)
	assert.Equal(t, 100.0, top[0].SharePct)
	assert.Equal(t, "belts", top[1].Name)
	assert.Equal(t, 50.0, top[1].SharePct)
}
