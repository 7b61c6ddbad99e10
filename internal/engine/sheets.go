package engine

import (
	"context"
	"errors"
	"fmt"

	"plantline/internal/analytics"
	"plantline/internal/domain"
	"plantline/internal/events"
)

type TaskDefinitionOptions struct {
	AssetID   int64
	Component string
	Name      string
	Frequency string
	ActorID   string
}

func (e Engine) CreateTaskDefinition(ctx context.Context, opts TaskDefinitionOptions) (domain.TaskDefinition, error) {
	if opts.Name == "" {
		return domain.TaskDefinition{}, errors.New("name is required")
	}
	if !e.Config.KnownFrequency(opts.Frequency) {
		return domain.TaskDefinition{}, fmt.Errorf("unknown frequency %s", opts.Frequency)
	}
	if _, err := e.Repo.GetAsset(ctx, opts.AssetID); err != nil {
		return domain.TaskDefinition{}, err
	}
	td := domain.TaskDefinition{
		AssetID:   opts.AssetID,
		Component: opts.Component,
		Name:      opts.Name,
		Frequency: opts.Frequency,
	}
	td, err := e.Repo.InsertTaskDefinition(ctx, td)
	if err != nil {
		return td, fmt.Errorf("insert task definition: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return td, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "taskdef.created", "task_definition", fmt.Sprint(td.ID), opts.ActorID, events.EventPayload{
		"asset_id":  td.AssetID,
		"frequency": td.Frequency,
	}); err != nil {
		return td, err
	}
	return td, tx.Commit()
}

// SheetTaskCount is one task's performed-vs-possible tally as submitted on a
// closing sheet.
type SheetTaskCount struct {
	TaskDefID int64
	Performed int
	Possible  int
}

type SheetCloseOptions struct {
	AssetID      int64
	Month        int
	Year         int
	WorkingDays  int
	Observations string
	Counts       []SheetTaskCount
	ActorID      string
}

// CloseSheet validates and records a monthly maintenance sheet. Every count
// must pass validation before anything is written; resubmitting the same
// month replaces the sheet and its counts wholesale.
func (e Engine) CloseSheet(ctx context.Context, opts SheetCloseOptions) (domain.MonthlySheet, error) {
	if opts.Month < 1 || opts.Month > 12 {
		return domain.MonthlySheet{}, fmt.Errorf("invalid month %d", opts.Month)
	}
	if opts.Year < 2000 || opts.Year > 2200 {
		return domain.MonthlySheet{}, fmt.Errorf("invalid year %d", opts.Year)
	}
	if opts.WorkingDays < 0 || opts.WorkingDays > 31 {
		return domain.MonthlySheet{}, fmt.Errorf("invalid working days %d", opts.WorkingDays)
	}
	if len(opts.Counts) == 0 {
		return domain.MonthlySheet{}, errors.New("at least one task count is required")
	}
	if _, err := e.Repo.GetAsset(ctx, opts.AssetID); err != nil {
		return domain.MonthlySheet{}, err
	}

	defs, err := e.Repo.ListTaskDefinitions(ctx, opts.AssetID)
	if err != nil {
		return domain.MonthlySheet{}, err
	}
	freqByDef := make(map[int64]string, len(defs))
	for _, d := range defs {
		freqByDef[d.ID] = d.Frequency
	}

	tallies := make([]analytics.TaskTally, 0, len(opts.Counts))
	for _, c := range opts.Counts {
		freq, ok := freqByDef[c.TaskDefID]
		if !ok {
			return domain.MonthlySheet{}, fmt.Errorf("task definition %d does not belong to asset %d", c.TaskDefID, opts.AssetID)
		}
		tallies = append(tallies, analytics.TaskTally{
			TaskDefID: c.TaskDefID,
			Frequency: freq,
			Performed: c.Performed,
			Possible:  c.Possible,
		})
	}
	if err := analytics.ValidateTaskCounts(tallies); err != nil {
		return domain.MonthlySheet{}, err
	}
	report := analytics.Compliance(tallies)

	sheet := domain.MonthlySheet{
		AssetID:      opts.AssetID,
		Month:        opts.Month,
		Year:         opts.Year,
		WorkingDays:  opts.WorkingDays,
		Observations: opts.Observations,
		Status:       "closed",
		CreatedAt:    e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return sheet, err
	}
	defer tx.Rollback()
	sheet, err = e.Repo.UpsertSheet(ctx, tx, sheet)
	if err != nil {
		return sheet, fmt.Errorf("upsert sheet: %w", err)
	}
	counts := make([]domain.MonthlyTaskCount, 0, len(opts.Counts))
	for _, c := range opts.Counts {
		counts = append(counts, domain.MonthlyTaskCount{
			SheetID:        sheet.ID,
			TaskDefID:      c.TaskDefID,
			PerformedCount: c.Performed,
			PossibleCount:  c.Possible,
		})
	}
	if err := e.Repo.ReplaceSheetCounts(ctx, tx, sheet.ID, counts); err != nil {
		return sheet, fmt.Errorf("replace sheet counts: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "sheet.closed", "monthly_sheet", fmt.Sprint(sheet.ID), opts.ActorID, events.EventPayload{
		"asset_id":       opts.AssetID,
		"month":          opts.Month,
		"year":           opts.Year,
		"global_percent": round1(report.GlobalPercent),
	}); err != nil {
		return sheet, err
	}
	return sheet, tx.Commit()
}

// SheetCompliance reports compliance for one closed sheet. Percentages are
// unrounded; presentation layers round at the edge.
func (e Engine) SheetCompliance(ctx context.Context, assetID int64, month, year int) (analytics.ComplianceReport, error) {
	sheet, err := e.Repo.GetSheet(ctx, assetID, month, year)
	if err != nil {
		return analytics.ComplianceReport{}, err
	}
	tallies, err := e.Repo.SheetTallies(ctx, sheet.ID)
	if err != nil {
		return analytics.ComplianceReport{}, err
	}
	return analytics.Compliance(tallies), nil
}
