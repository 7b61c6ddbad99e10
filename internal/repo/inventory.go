package repo

import (
	"context"
	"database/sql"
	"time"

	"plantline/internal/domain"
)

const itemCols = `id,name,COALESCE(sku,''),quantity,min_quantity,COALESCE(unit,''),COALESCE(unit_cost,0),COALESCE(location,'')`

func scanItem(scan func(...any) error) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := scan(&it.ID, &it.Name, &it.SKU, &it.Quantity, &it.MinQuantity, &it.Unit, &it.UnitCost, &it.Location)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	return it, err
}

func (r Repo) InsertItem(ctx context.Context, it domain.InventoryItem) (domain.InventoryItem, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO inventory_items(name,sku,quantity,min_quantity,unit,unit_cost,location) VALUES (?,?,?,?,?,?,?)`,
		it.Name, nullable(it.SKU), it.Quantity, it.MinQuantity, nullable(it.Unit), it.UnitCost, nullable(it.Location))
	if err != nil {
		return it, err
	}
	it.ID, err = res.LastInsertId()
	return it, err
}

func (r Repo) GetItem(ctx context.Context, id int64) (domain.InventoryItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id=?`, id)
	return scanItem(row.Scan)
}

func (r Repo) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemCols+` FROM inventory_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

// LowStockItems returns items at or below their reorder threshold.
func (r Repo) LowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE quantity <= min_quantity ORDER BY quantity/MAX(min_quantity,1e-9)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

// SetItemQuantity writes the post-movement stock level inside the movement's
// transaction.
func (r Repo) SetItemQuantity(ctx context.Context, tx *sql.Tx, id int64, quantity float64) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_items SET quantity=? WHERE id=?`, quantity, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMovement appends one movement row. Movements are never updated or
// deleted afterwards.
func (r Repo) InsertMovement(ctx context.Context, tx *sql.Tx, m domain.InventoryMovement) (domain.InventoryMovement, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO inventory_movements(item_id,movement_type,quantity,reference,created_at) VALUES (?,?,?,?,?)`,
		m.ItemID, m.MovementType, m.Quantity, nullable(m.Reference), timeStr(m.CreatedAt))
	if err != nil {
		return m, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

// ListMovements fetches movements by optional item id and time range.
func (r Repo) ListMovements(ctx context.Context, itemID int64, since time.Time) ([]domain.InventoryMovement, error) {
	query := `SELECT id,item_id,movement_type,quantity,COALESCE(reference,''),created_at FROM inventory_movements`
	var (
		conds []string
		args  []any
	)
	if itemID != 0 {
		conds = append(conds, "item_id=?")
		args = append(args, itemID)
	}
	if !since.IsZero() {
		conds = append(conds, "created_at>=?")
		args = append(args, timeStr(since))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InventoryMovement
	for rows.Next() {
		var m domain.InventoryMovement
		var created string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.MovementType, &m.Quantity, &m.Reference, &created); err != nil {
			return nil, err
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, err
		}
		m.CreatedAt = t
		res = append(res, m)
	}
	return res, rows.Err()
}
