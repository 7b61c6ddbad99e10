package repo

import (
	"context"
	"database/sql"
	"time"

	"plantline/internal/domain"
)

const scheduleCols = `id,asset_id,title,frequency_days,next_due_date,last_generated_date,active`

func scanSchedule(scan func(...any) error) (domain.MaintenanceSchedule, error) {
	var s domain.MaintenanceSchedule
	var due string
	var lastGen sql.NullString
	err := scan(&s.ID, &s.AssetID, &s.Title, &s.FrequencyDays, &due, &lastGen, &s.Active)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if s.NextDueDate, err = parseTime(due); err != nil {
		return s, err
	}
	if lastGen.Valid {
		t, err := parseTime(lastGen.String)
		if err != nil {
			return s, err
		}
		s.LastGeneratedDate = &t
	}
	return s, nil
}

func (r Repo) InsertSchedule(ctx context.Context, s domain.MaintenanceSchedule) (domain.MaintenanceSchedule, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO maintenance_schedules(asset_id,title,frequency_days,next_due_date,last_generated_date,active) VALUES (?,?,?,?,?,?)`,
		s.AssetID, s.Title, s.FrequencyDays, timeStr(s.NextDueDate), optTimeStr(s.LastGeneratedDate), s.Active)
	if err != nil {
		return s, err
	}
	s.ID, err = res.LastInsertId()
	return s, err
}

func (r Repo) ListSchedules(ctx context.Context, assetID int64) ([]domain.MaintenanceSchedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM maintenance_schedules`
	var args []any
	if assetID != 0 {
		query += ` WHERE asset_id=?`
		args = append(args, assetID)
	}
	query += ` ORDER BY next_due_date`
	return r.querySchedules(ctx, query, args...)
}

// DueSchedules returns active schedules whose next due date is at or before
// asOf.
func (r Repo) DueSchedules(ctx context.Context, asOf time.Time) ([]domain.MaintenanceSchedule, error) {
	return r.querySchedules(ctx, `SELECT `+scheduleCols+` FROM maintenance_schedules WHERE active=1 AND next_due_date<=? ORDER BY next_due_date`, timeStr(asOf))
}

func (r Repo) querySchedules(ctx context.Context, query string, args ...any) ([]domain.MaintenanceSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MaintenanceSchedule
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// AdvanceSchedule records a generation and pushes the due date forward.
func (r Repo) AdvanceSchedule(ctx context.Context, tx *sql.Tx, id int64, generatedAt, nextDue time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE maintenance_schedules SET last_generated_date=?, next_due_date=? WHERE id=?`,
		timeStr(generatedAt), timeStr(nextDue), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
