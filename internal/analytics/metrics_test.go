package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantline/internal/domain"
)

func withCosts(wo domain.WorkOrder, labor, parts float64) domain.WorkOrder {
	wo.LaborCost = &labor
	wo.PartsCost = &parts
	return wo
}

func TestMetricsBundle(t *testing.T) {
	pending := domain.WorkOrder{
		AssetID:   1,
		Kind:      domain.KindCorrective,
		Status:    domain.StatusPending,
		CreatedAt: testNow.Add(-48 * time.Hour),
	}
	orders := []domain.WorkOrder{
		pending,
		withCosts(withDowntime(completedOrder(1, domain.KindCorrective, 24*time.Hour), 8), 100.40, 80.20),
		withCosts(completedOrder(1, domain.KindPreventive, 48*time.Hour), 50, 0),
		completedOrder(2, domain.KindCorrective, 72*time.Hour),
	}

	m := Metrics(orders, 30, testNow)
	assert.Equal(t, 4, m.TotalWorkOrders)
	assert.Equal(t, 3, m.Completed)
	assert.Equal(t, 1, m.PreventiveCount)
	assert.Equal(t, 2, m.CorrectiveCount)
	assert.Equal(t, 25.0, m.PreventiveRatePercent) // 1 of 4 in window
	assert.Equal(t, 2.7, m.AvgDowntimeHours)       // 8 / 3 rounded
	assert.Equal(t, int64(231), m.TotalCost)       // round(230.60)

	require.NotNil(t, m.MTBF)
	assert.Equal(t, 48.0, *m.MTBF) // corrective completions 24h and 72h ago
	require.NotNil(t, m.MTTR)
	require.NotNil(t, m.Availability)
}

func TestMetricsEmptyWindow(t *testing.T) {
	old := completedOrder(1, domain.KindPreventive, 90*24*time.Hour)
	old.CreatedAt = testNow.AddDate(0, 0, -90)

	m := Metrics([]domain.WorkOrder{old}, 30, testNow)
	assert.Equal(t, 0, m.TotalWorkOrders)
	// Rate is a computed zero for an empty window, unlike the nil
	// insufficient-data results below it.
	assert.Equal(t, 0.0, m.PreventiveRatePercent)
	assert.Equal(t, int64(0), m.TotalCost)
	assert.Nil(t, m.MTBF)
	assert.Nil(t, m.MTTR)
	require.NotNil(t, m.Availability)
	assert.Equal(t, 100.0, *m.Availability)
}
