package repo

import (
	"context"
	"database/sql"

	"plantline/internal/analytics"
	"plantline/internal/domain"
)

func (r Repo) InsertTaskDefinition(ctx context.Context, td domain.TaskDefinition) (domain.TaskDefinition, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO task_definitions(asset_id,component,name,frequency) VALUES (?,?,?,?)`,
		td.AssetID, nullable(td.Component), td.Name, td.Frequency)
	if err != nil {
		return td, err
	}
	td.ID, err = res.LastInsertId()
	return td, err
}

func (r Repo) ListTaskDefinitions(ctx context.Context, assetID int64) ([]domain.TaskDefinition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,asset_id,COALESCE(component,''),name,frequency FROM task_definitions WHERE asset_id=? ORDER BY frequency, component, id`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskDefinition
	for rows.Next() {
		var td domain.TaskDefinition
		if err := rows.Scan(&td.ID, &td.AssetID, &td.Component, &td.Name, &td.Frequency); err != nil {
			return nil, err
		}
		res = append(res, td)
	}
	return res, rows.Err()
}

func scanSheet(scan func(...any) error) (domain.MonthlySheet, error) {
	var s domain.MonthlySheet
	var created string
	err := scan(&s.ID, &s.AssetID, &s.Month, &s.Year, &s.WorkingDays, &s.Observations, &s.Status, &created)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.CreatedAt, err = parseTime(created)
	return s, err
}

const sheetCols = `id,asset_id,month,year,working_days,COALESCE(observations,''),status,created_at`

func (r Repo) GetSheet(ctx context.Context, assetID int64, month, year int) (domain.MonthlySheet, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sheetCols+` FROM monthly_sheets WHERE asset_id=? AND month=? AND year=?`, assetID, month, year)
	return scanSheet(row.Scan)
}

func (r Repo) GetSheetByID(ctx context.Context, id int64) (domain.MonthlySheet, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sheetCols+` FROM monthly_sheets WHERE id=?`, id)
	return scanSheet(row.Scan)
}

func (r Repo) ListSheets(ctx context.Context, assetID int64) ([]domain.MonthlySheet, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sheetCols+` FROM monthly_sheets WHERE asset_id=? ORDER BY year DESC, month DESC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MonthlySheet
	for rows.Next() {
		s, err := scanSheet(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertSheet creates or refreshes the sheet row for an asset-month.
func (r Repo) UpsertSheet(ctx context.Context, tx *sql.Tx, s domain.MonthlySheet) (domain.MonthlySheet, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO monthly_sheets(asset_id,month,year,working_days,observations,status,created_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(asset_id,month,year) DO UPDATE SET working_days=excluded.working_days, observations=excluded.observations, status=excluded.status`,
		s.AssetID, s.Month, s.Year, s.WorkingDays, nullable(s.Observations), s.Status, timeStr(s.CreatedAt))
	if err != nil {
		return s, err
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		s.ID = id
	}
	// On conflict LastInsertId is unreliable; read the row back.
	row := tx.QueryRowContext(ctx, `SELECT id FROM monthly_sheets WHERE asset_id=? AND month=? AND year=?`, s.AssetID, s.Month, s.Year)
	if err := row.Scan(&s.ID); err != nil {
		return s, err
	}
	return s, nil
}

// ReplaceSheetCounts deletes and reinserts a sheet's counts in one shot. A
// sheet close always replaces the whole set, never a subset.
func (r Repo) ReplaceSheetCounts(ctx context.Context, tx *sql.Tx, sheetID int64, counts []domain.MonthlyTaskCount) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_task_counts WHERE sheet_id=?`, sheetID); err != nil {
		return err
	}
	for _, c := range counts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO monthly_task_counts(sheet_id,task_def_id,performed_count,possible_count) VALUES (?,?,?,?)`,
			sheetID, c.TaskDefID, c.PerformedCount, c.PossibleCount); err != nil {
			return err
		}
	}
	return nil
}

// SheetTallies fetches a sheet's counts joined with each task's frequency,
// shaped for the compliance scorer.
func (r Repo) SheetTallies(ctx context.Context, sheetID int64) ([]analytics.TaskTally, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT c.task_def_id, d.frequency, c.performed_count, c.possible_count
FROM monthly_task_counts c JOIN task_definitions d ON d.id = c.task_def_id
WHERE c.sheet_id=? ORDER BY c.task_def_id`, sheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []analytics.TaskTally
	for rows.Next() {
		var t analytics.TaskTally
		if err := rows.Scan(&t.TaskDefID, &t.Frequency, &t.Performed, &t.Possible); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
