package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"plantline/internal/analytics"
	"plantline/internal/config"
	"plantline/internal/db"
	"plantline/internal/domain"
	"plantline/internal/engine"
	"plantline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Asset  domain.Asset
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("test plant")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	asset, err := eng.CreateAsset(ctx, engine.AssetCreateOptions{Name: "compressor 1", Criticality: 4, ActorID: "tester"})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx, Asset: asset}
}

func (env *testEnv) advance(t *testing.T, d time.Duration) {
	t.Helper()
	now := env.Engine.Now()
	env.Engine.Now = func() time.Time { return now.Add(d) }
}

func TestWorkOrderStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	wo, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{
		AssetID: env.Asset.ID, Title: "bearing noise", Priority: "high", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("report failure: %v", err)
	}
	if wo.Kind != domain.KindCorrective || wo.Status != domain.StatusPending {
		t.Fatalf("unexpected new order: %+v", wo)
	}

	wo, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "approved", ActorID: "tester"})
	if err != nil || wo.Status != "approved" {
		t.Fatalf("to approved: %v", err)
	}
	wo, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "in_progress", ActorID: "tester"})
	if err != nil || wo.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	if wo.StartedAt == nil {
		t.Fatalf("expected started_at stamped")
	}
	wo, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "completed", ActorID: "tester"})
	if err != nil || wo.Status != "completed" {
		t.Fatalf("to completed: %v", err)
	}
	if wo.CompletedAt == nil {
		t.Fatalf("expected completed_at stamped")
	}
	// terminal: no further moves
	_, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "pending", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestWorkOrderSkipApproval(t *testing.T) {
	env := newTestEnv(t)
	wo, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{AssetID: env.Asset.ID, Title: "leak", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	// pending straight to in_progress is allowed
	wo, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "in_progress", ActorID: "tester"})
	if err != nil || wo.Status != "in_progress" {
		t.Fatalf("pending -> in_progress: %v", err)
	}
	// completed requires in_progress, pending -> completed is not
	other, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{AssetID: env.Asset.ID, Title: "other", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: other.ID, Status: "completed", ActorID: "tester"}); err == nil {
		t.Fatalf("expected pending -> completed to be rejected")
	}
}

func TestMachineDownFlagsAssetAndCompletionRestores(t *testing.T) {
	env := newTestEnv(t)
	wo, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{
		AssetID: env.Asset.ID, Title: "seized", MachineDown: true, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err := env.Engine.Repo.GetAsset(env.Ctx, env.Asset.ID)
	if err != nil || a.Status != domain.AssetBroken {
		t.Fatalf("expected broken asset, got %s (%v)", a.Status, err)
	}

	if _, err := env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "in_progress", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	env.advance(t, 6*time.Hour)
	downtime := 6.0
	wo, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{
		ID: wo.ID, Status: "completed", ActorID: "tester",
		Completion: &engine.CompletionDetails{DowntimeHours: &downtime, SolutionNotes: "replaced bearing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if wo.DowntimeHours == nil || *wo.DowntimeHours != 6.0 {
		t.Fatalf("downtime not recorded: %+v", wo)
	}
	a, err = env.Engine.Repo.GetAsset(env.Ctx, env.Asset.ID)
	if err != nil || a.Status != domain.AssetOperational {
		t.Fatalf("expected asset back in service, got %s (%v)", a.Status, err)
	}
}

func TestCompletionRejectsNegativeFigures(t *testing.T) {
	env := newTestEnv(t)
	wo, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{AssetID: env.Asset.ID, Title: "x", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "in_progress", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	bad := -1.0
	_, err = env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{
		ID: wo.ID, Status: "completed", ActorID: "tester",
		Completion: &engine.CompletionDetails{LaborCost: &bad},
	})
	if err == nil {
		t.Fatalf("expected negative labor cost to be rejected")
	}
}

func TestRecordMovementAdjustsStockAtomically(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Name: "grease", Quantity: 10, MinQuantity: 4, Unit: "kg", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "consumption", Quantity: 3, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if err != nil || got.Quantity != 7 {
		t.Fatalf("expected 7 on hand, got %g (%v)", got.Quantity, err)
	}

	// sign of the request does not matter, consumption always draws down
	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "consumption", Quantity: -2, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Quantity != 5 {
		t.Fatalf("expected 5 on hand, got %g", got.Quantity)
	}

	// overdraw is rejected and nothing is written
	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "consumption", Quantity: 50, ActorID: "tester"}); err == nil {
		t.Fatalf("expected insufficient stock error")
	}
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Quantity != 5 {
		t.Fatalf("stock changed after rejected movement: %g", got.Quantity)
	}
	moves, err := env.Engine.Repo.ListMovements(env.Ctx, it.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(moves))
	}

	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "purchase", Quantity: 20, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Quantity != 25 {
		t.Fatalf("expected 25 on hand, got %g", got.Quantity)
	}
}

func TestCloseSheetValidatesBeforeWriting(t *testing.T) {
	env := newTestEnv(t)
	td, err := env.Engine.CreateTaskDefinition(env.Ctx, engine.TaskDefinitionOptions{
		AssetID: env.Asset.ID, Name: "check oil level", Frequency: "daily", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.CloseSheet(env.Ctx, engine.SheetCloseOptions{
		AssetID: env.Asset.ID, Month: 5, Year: 2026, WorkingDays: 22, ActorID: "tester",
		Counts: []engine.SheetTaskCount{{TaskDefID: td.ID, Performed: 25, Possible: 22}},
	})
	var tce *analytics.TaskCountError
	if !errors.As(err, &tce) {
		t.Fatalf("expected task count error, got %v", err)
	}
	if len(tce.TaskDefIDs) != 1 || tce.TaskDefIDs[0] != td.ID {
		t.Fatalf("wrong offenders: %v", tce.TaskDefIDs)
	}
	// nothing was written
	if _, err := env.Engine.Repo.GetSheet(env.Ctx, env.Asset.ID, 5, 2026); err == nil {
		t.Fatalf("expected no sheet after rejected close")
	}

	sheet, err := env.Engine.CloseSheet(env.Ctx, engine.SheetCloseOptions{
		AssetID: env.Asset.ID, Month: 5, Year: 2026, WorkingDays: 22, ActorID: "tester",
		Counts: []engine.SheetTaskCount{{TaskDefID: td.ID, Performed: 20, Possible: 22}},
	})
	if err != nil {
		t.Fatalf("close sheet: %v", err)
	}
	if sheet.Status != "closed" {
		t.Fatalf("unexpected sheet status %s", sheet.Status)
	}

	report, err := env.Engine.SheetCompliance(env.Ctx, env.Asset.ID, 5, 2026)
	if err != nil {
		t.Fatal(err)
	}
	want := float64(20) / 22 * 100
	if report.GlobalPercent != want {
		t.Fatalf("global percent = %v, want %v", report.GlobalPercent, want)
	}
	if report.ByFrequency["daily"] != want {
		t.Fatalf("daily percent = %v", report.ByFrequency["daily"])
	}
}

func TestCloseSheetResubmitReplacesCounts(t *testing.T) {
	env := newTestEnv(t)
	td, err := env.Engine.CreateTaskDefinition(env.Ctx, engine.TaskDefinitionOptions{
		AssetID: env.Asset.ID, Name: "belt tension", Frequency: "weekly", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, performed := range []int{2, 4} {
		if _, err := env.Engine.CloseSheet(env.Ctx, engine.SheetCloseOptions{
			AssetID: env.Asset.ID, Month: 4, Year: 2026, WorkingDays: 20, ActorID: "tester",
			Counts: []engine.SheetTaskCount{{TaskDefID: td.ID, Performed: performed, Possible: 4}},
		}); err != nil {
			t.Fatalf("close with performed=%d: %v", performed, err)
		}
	}
	report, err := env.Engine.SheetCompliance(env.Ctx, env.Asset.ID, 4, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if report.GlobalPercent != 100 {
		t.Fatalf("resubmit should replace counts, got %v%%", report.GlobalPercent)
	}
	sheets, err := env.Engine.Repo.ListSheets(env.Ctx, env.Asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 {
		t.Fatalf("expected a single sheet for the month, got %d", len(sheets))
	}
}

func TestCloseSheetRejectsForeignTaskDef(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.CreateAsset(env.Ctx, engine.AssetCreateOptions{Name: "pump 2", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	td, err := env.Engine.CreateTaskDefinition(env.Ctx, engine.TaskDefinitionOptions{
		AssetID: other.ID, Name: "flush", Frequency: "monthly", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CloseSheet(env.Ctx, engine.SheetCloseOptions{
		AssetID: env.Asset.ID, Month: 3, Year: 2026, WorkingDays: 21, ActorID: "tester",
		Counts: []engine.SheetTaskCount{{TaskDefID: td.ID, Performed: 1, Possible: 1}},
	})
	if err == nil {
		t.Fatalf("expected rejection for task def from another asset")
	}
}

func TestGenerateDueWorkOrders(t *testing.T) {
	env := newTestEnv(t)
	due := env.Engine.Now().AddDate(0, 0, -1)
	s, err := env.Engine.CreateSchedule(env.Ctx, engine.ScheduleCreateOptions{
		AssetID: env.Asset.ID, Title: "monthly lubrication", FrequencyDays: 30, FirstDue: due, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Active {
		t.Fatalf("new schedule should be active")
	}

	created, err := env.Engine.GenerateDueWorkOrders(env.Ctx, "scheduler")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 generated order, got %d", len(created))
	}
	if created[0].Kind != domain.KindPreventive || created[0].AssetID != env.Asset.ID {
		t.Fatalf("unexpected order: %+v", created[0])
	}

	// second run finds nothing due
	again, err := env.Engine.GenerateDueWorkOrders(env.Ctx, "scheduler")
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("expected idempotent second run, got %d orders", len(again))
	}

	schedules, err := env.Engine.ListSchedules(env.Ctx, env.Asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if !schedules[0].NextDueDate.After(env.Engine.Now()) {
		t.Fatalf("next due not advanced: %v", schedules[0].NextDueDate)
	}
	if schedules[0].LastGeneratedDate == nil {
		t.Fatalf("last generated date not stamped")
	}
}

func TestAssetReliabilityUsesStoredOrders(t *testing.T) {
	env := newTestEnv(t)
	// two corrective completions 48h apart
	for i := 0; i < 2; i++ {
		wo, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{AssetID: env.Asset.ID, Title: "fault", ActorID: "tester"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{ID: wo.ID, Status: "in_progress", ActorID: "tester"}); err != nil {
			t.Fatal(err)
		}
		dt := 2.0
		if _, err := env.Engine.SetWorkOrderStatus(env.Ctx, engine.WorkOrderStatusOptions{
			ID: wo.ID, Status: "completed", ActorID: "tester",
			Completion: &engine.CompletionDetails{DowntimeHours: &dt},
		}); err != nil {
			t.Fatal(err)
		}
		env.advance(t, 48*time.Hour)
	}

	report, err := env.Engine.AssetReliability(env.Ctx, env.Asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.MTBFHours == nil || *report.MTBFHours != 48.0 {
		t.Fatalf("mtbf = %v, want 48.0", report.MTBFHours)
	}
	if report.MTTRHours == nil || *report.MTTRHours != 2.0 {
		t.Fatalf("mttr = %v, want 2.0", report.MTTRHours)
	}
	if report.AvailabilityPct == nil {
		t.Fatalf("availability missing")
	}
}

func TestDashboardReport(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Name: "filter", Quantity: 2, MinQuantity: 5, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "consumption", Quantity: 1, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}

	dash, err := env.Engine.DashboardReport(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dash.LowStock) != 1 || dash.LowStock[0].ID != it.ID {
		t.Fatalf("expected the filter in low stock: %+v", dash.LowStock)
	}
	if len(dash.TopConsumers) != 1 || dash.TopConsumers[0].ItemID != it.ID {
		t.Fatalf("expected the filter as top consumer: %+v", dash.TopConsumers)
	}
	if dash.Metrics.TotalWorkOrders != 0 {
		t.Fatalf("expected no work orders in window, got %d", dash.Metrics.TotalWorkOrders)
	}
}

func TestStockoutForecastFromEngine(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateItem(env.Ctx, engine.ItemCreateOptions{Name: "oil", Quantity: 40, MinQuantity: 10, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	// 60 units consumed over the 30 day lookback: 2 per day
	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "purchase", Quantity: 100, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecordMovement(env.Ctx, engine.MovementOptions{ItemID: it.ID, Type: "consumption", Quantity: 60, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}

	item, forecast, err := env.Engine.StockoutForecast(env.Ctx, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Quantity != 80 {
		t.Fatalf("expected 80 on hand, got %g", item.Quantity)
	}
	if forecast.AvgDailyConsumption != 2.0 {
		t.Fatalf("avg daily = %v, want 2.0", forecast.AvgDailyConsumption)
	}
	if forecast.DaysUntilStockout == nil || *forecast.DaysUntilStockout != 40 {
		t.Fatalf("days until stockout = %v, want 40", forecast.DaysUntilStockout)
	}
	if forecast.RecommendedOrderQuantity != 72 {
		t.Fatalf("recommended = %v, want 72", forecast.RecommendedOrderQuantity)
	}
}

func TestEventsAppended(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ReportFailure(env.Ctx, engine.WorkOrderCreateOptions{AssetID: env.Asset.ID, Title: "x", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) < 2 {
		t.Fatalf("expected asset.created and workorder.reported events, got %d", len(evts))
	}
	filtered, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "workorder.reported", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(filtered))
	}
}
