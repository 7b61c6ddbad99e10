package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantline/internal/domain"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func completedOrder(assetID int64, kind string, completedAgo time.Duration) domain.WorkOrder {
	completed := testNow.Add(-completedAgo)
	return domain.WorkOrder{
		AssetID:     assetID,
		Kind:        kind,
		Status:      domain.StatusCompleted,
		CreatedAt:   completed.Add(-24 * time.Hour),
		CompletedAt: &completed,
	}
}

func withDowntime(wo domain.WorkOrder, hours float64) domain.WorkOrder {
	wo.DowntimeHours = &hours
	return wo
}

func withSpan(wo domain.WorkOrder, repair time.Duration) domain.WorkOrder {
	started := wo.CompletedAt.Add(-repair)
	wo.StartedAt = &started
	return wo
}

func TestMTBFSpanOverGaps(t *testing.T) {
	// Two failures 240h apart: span / (count-1) = 240.0.
	orders := []domain.WorkOrder{
		completedOrder(1, domain.KindCorrective, 240*time.Hour),
		completedOrder(1, domain.KindCorrective, 0),
	}
	got := MTBF(orders, 0, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 240.0, *got)
}

func TestMTBFRequiresTwoFailures(t *testing.T) {
	assert.Nil(t, MTBF(nil, 0, 180, testNow))
	assert.Nil(t, MTBF([]domain.WorkOrder{
		completedOrder(1, domain.KindCorrective, time.Hour),
	}, 0, 180, testNow))

	// Preventive completions never count as failures.
	assert.Nil(t, MTBF([]domain.WorkOrder{
		completedOrder(1, domain.KindPreventive, time.Hour),
		completedOrder(1, domain.KindPreventive, 48*time.Hour),
	}, 0, 180, testNow))
}

func TestMTBFSortsBeforeSpanning(t *testing.T) {
	// Failures reported out of order must not yield a negative span.
	orders := []domain.WorkOrder{
		completedOrder(1, domain.KindCorrective, 0),
		completedOrder(1, domain.KindCorrective, 100*time.Hour),
		completedOrder(1, domain.KindCorrective, 50*time.Hour),
	}
	got := MTBF(orders, 0, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got) // 100h span over 2 gaps
}

func TestMTBFFilters(t *testing.T) {
	orders := []domain.WorkOrder{
		completedOrder(1, domain.KindCorrective, time.Hour),
		completedOrder(1, domain.KindCorrective, 25*time.Hour),
		completedOrder(2, domain.KindCorrective, 2*time.Hour),
		completedOrder(2, domain.KindCorrective, 200*24*time.Hour), // outside window
	}
	got := MTBF(orders, 1, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 24.0, *got)

	// Asset 2 only has one failure inside the window.
	assert.Nil(t, MTBF(orders, 2, 180, testNow))
}

func TestMTTRPrefersReportedDowntime(t *testing.T) {
	orders := []domain.WorkOrder{
		withDowntime(withSpan(completedOrder(1, domain.KindCorrective, time.Hour), 10*time.Hour), 4),
		withSpan(completedOrder(1, domain.KindPreventive, 2*time.Hour), 2*time.Hour),
	}
	got := MTTR(orders, 0, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got) // (4 + 2) / 2
}

func TestMTTRZeroDurationFallback(t *testing.T) {
	// A completed order with neither downtime nor a started_at contributes
	// zero hours: it deflates the mean instead of leaving the denominator.
	orders := []domain.WorkOrder{
		withDowntime(completedOrder(1, domain.KindCorrective, time.Hour), 6),
		completedOrder(1, domain.KindCorrective, 2*time.Hour), // data-starved
	}
	got := MTTR(orders, 0, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)
}

func TestMTTRNegativeSpanFlooredAtZero(t *testing.T) {
	wo := completedOrder(1, domain.KindCorrective, time.Hour)
	started := wo.CompletedAt.Add(5 * time.Hour) // started after completed
	wo.StartedAt = &started
	got := MTTR([]domain.WorkOrder{wo}, 0, 180, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestMTTRNilWithoutRecords(t *testing.T) {
	assert.Nil(t, MTTR(nil, 0, 180, testNow))
	assert.Nil(t, MTTR([]domain.WorkOrder{
		{AssetID: 1, Kind: domain.KindCorrective, Status: domain.StatusInProgress, CreatedAt: testNow},
	}, 0, 180, testNow))
}

func TestAvailabilityFullDowntimeClampsToZero(t *testing.T) {
	// 720h downtime over a 30-day window is exactly the whole period.
	orders := []domain.WorkOrder{
		withDowntime(completedOrder(1, domain.KindCorrective, time.Hour), 720),
	}
	got := Availability(orders, 0, 30, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestAvailabilityClampedDespiteExcessDowntime(t *testing.T) {
	orders := []domain.WorkOrder{
		withDowntime(completedOrder(1, domain.KindCorrective, time.Hour), 5000),
		withDowntime(completedOrder(1, domain.KindCorrective, 2*time.Hour), 5000),
	}
	got := Availability(orders, 0, 30, testNow)
	require.NotNil(t, got)
	assert.GreaterOrEqual(t, *got, 0.0)
	assert.LessOrEqual(t, *got, 100.0)
	assert.Equal(t, 0.0, *got)
}

func TestAvailabilityNoRecordsIsFullyAvailable(t *testing.T) {
	got := Availability(nil, 0, 30, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)
}

func TestAvailabilityPartialDowntime(t *testing.T) {
	orders := []domain.WorkOrder{
		withDowntime(completedOrder(1, domain.KindCorrective, time.Hour), 72),
	}
	got := Availability(orders, 0, 30, testNow)
	require.NotNil(t, got)
	assert.Equal(t, 90.0, *got) // (720-72)/720
}

func TestReliabilityIdempotent(t *testing.T) {
	orders := []domain.WorkOrder{
		completedOrder(1, domain.KindCorrective, 240*time.Hour),
		withDowntime(completedOrder(1, domain.KindCorrective, time.Hour), 12),
	}
	first := MTBF(orders, 0, 180, testNow)
	second := MTBF(orders, 0, 180, testNow)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)

	m1 := Metrics(orders, 30, testNow)
	m2 := Metrics(orders, 30, testNow)
	assert.Equal(t, m1, m2)
}
