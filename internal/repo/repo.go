package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"plantline/internal/domain"
)

// Repo is the query layer over the event store. The analytics engine never
// touches it directly; callers fetch snapshots here and hand them over.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optTimeStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeStr(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// --- assets ---

func (r Repo) InsertAsset(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO assets(name,description,criticality,status,location,created_at) VALUES (?,?,?,?,?,?)`,
		a.Name, nullable(a.Description), a.Criticality, a.Status, nullable(a.Location), timeStr(a.CreatedAt))
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

const assetCols = `id,name,COALESCE(description,''),criticality,status,COALESCE(location,''),created_at`

func scanAsset(scan func(...any) error) (domain.Asset, error) {
	var a domain.Asset
	var created string
	err := scan(&a.ID, &a.Name, &a.Description, &a.Criticality, &a.Status, &a.Location, &created)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.CreatedAt, err = parseTime(created)
	return a, err
}

func (r Repo) GetAsset(ctx context.Context, id int64) (domain.Asset, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assetCols+` FROM assets WHERE id=?`, id)
	return scanAsset(row.Scan)
}

func (r Repo) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+assetCols+` FROM assets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAssetStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assets SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- work orders ---

const workOrderCols = `id,asset_id,COALESCE(title,''),COALESCE(description,''),kind,COALESCE(priority,''),status,
COALESCE(reported_by,''),COALESCE(assigned_to,''),created_at,started_at,completed_at,
downtime_hours,labor_hours,labor_cost,parts_cost,COALESCE(solution_notes,'')`

func scanWorkOrder(scan func(...any) error) (domain.WorkOrder, error) {
	var wo domain.WorkOrder
	var created string
	var started, completed sql.NullString
	var downtime, labor, laborCost, partsCost sql.NullFloat64
	err := scan(&wo.ID, &wo.AssetID, &wo.Title, &wo.Description, &wo.Kind, &wo.Priority, &wo.Status,
		&wo.ReportedBy, &wo.AssignedTo, &created, &started, &completed,
		&downtime, &labor, &laborCost, &partsCost, &wo.SolutionNotes)
	if err == sql.ErrNoRows {
		return wo, ErrNotFound
	}
	if err != nil {
		return wo, err
	}
	if wo.CreatedAt, err = parseTime(created); err != nil {
		return wo, fmt.Errorf("work order %d created_at: %w", wo.ID, err)
	}
	if started.Valid {
		t, err := parseTime(started.String)
		if err != nil {
			return wo, fmt.Errorf("work order %d started_at: %w", wo.ID, err)
		}
		wo.StartedAt = &t
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return wo, fmt.Errorf("work order %d completed_at: %w", wo.ID, err)
		}
		wo.CompletedAt = &t
	}
	if downtime.Valid {
		wo.DowntimeHours = &downtime.Float64
	}
	if labor.Valid {
		wo.LaborHours = &labor.Float64
	}
	if laborCost.Valid {
		wo.LaborCost = &laborCost.Float64
	}
	if partsCost.Valid {
		wo.PartsCost = &partsCost.Float64
	}
	return wo, nil
}

func (r Repo) InsertWorkOrder(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) (domain.WorkOrder, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO work_orders(asset_id,title,description,kind,priority,status,reported_by,assigned_to,created_at,started_at,completed_at,downtime_hours,labor_hours,labor_cost,parts_cost,solution_notes)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		wo.AssetID, nullable(wo.Title), nullable(wo.Description), wo.Kind, nullable(wo.Priority), wo.Status,
		nullable(wo.ReportedBy), nullable(wo.AssignedTo), timeStr(wo.CreatedAt), optTimeStr(wo.StartedAt), optTimeStr(wo.CompletedAt),
		nullableFloat(wo.DowntimeHours), nullableFloat(wo.LaborHours), nullableFloat(wo.LaborCost), nullableFloat(wo.PartsCost), nullable(wo.SolutionNotes))
	if err != nil {
		return wo, err
	}
	wo.ID, err = res.LastInsertId()
	return wo, err
}

func (r Repo) UpdateWorkOrder(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) error {
	res, err := tx.ExecContext(ctx, `UPDATE work_orders SET status=?, assigned_to=?, started_at=?, completed_at=?, downtime_hours=?, labor_hours=?, labor_cost=?, parts_cost=?, solution_notes=? WHERE id=?`,
		wo.Status, nullable(wo.AssignedTo), optTimeStr(wo.StartedAt), optTimeStr(wo.CompletedAt),
		nullableFloat(wo.DowntimeHours), nullableFloat(wo.LaborHours), nullableFloat(wo.LaborCost), nullableFloat(wo.PartsCost), nullable(wo.SolutionNotes), wo.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkOrder(ctx context.Context, id int64) (domain.WorkOrder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workOrderCols+` FROM work_orders WHERE id=?`, id)
	return scanWorkOrder(row.Scan)
}

// ListWorkOrders fetches work orders by optional asset id and time range.
// assetID 0 and zero times disable the respective filters.
func (r Repo) ListWorkOrders(ctx context.Context, assetID int64, since time.Time, statuses ...string) ([]domain.WorkOrder, error) {
	query := `SELECT ` + workOrderCols + ` FROM work_orders`
	var (
		conds []string
		args  []any
	)
	if assetID != 0 {
		conds = append(conds, "asset_id=?")
		args = append(args, assetID)
	}
	if !since.IsZero() {
		conds = append(conds, "created_at>=?")
		args = append(args, timeStr(since))
	}
	if len(statuses) > 0 {
		conds = append(conds, "status IN (?"+strings.Repeat(",?", len(statuses)-1)+")")
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, wo)
	}
	return res, rows.Err()
}

// WorkOrderSnapshot returns every work order, for the KPI calculators. The
// calculators apply their own window filtering so MTBF and Availability can
// use different lookbacks over the same snapshot.
func (r Repo) WorkOrderSnapshot(ctx context.Context) ([]domain.WorkOrder, error) {
	return r.ListWorkOrders(ctx, 0, time.Time{})
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var (
		conds []string
		args  []any
	)
	if evtType != "" {
		conds = append(conds, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		conds = append(conds, "entity_kind=?")
		args = append(args, entityKind)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
