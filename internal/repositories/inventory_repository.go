package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"route-recon/internal/models"
)

type InventoryRepository struct {
	DB *pgxpool.Pool
}

func NewInventoryRepository(db *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{DB: db}
}

// SaveInventory replaces the rows of a route/date with req.Items and
// appends a route_update to the change feed in the same transaction.
// Rows missing from the request are deleted.
func (r *InventoryRepository) SaveInventory(ctx context.Context, req *models.SaveInventoryRequest) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	codes := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		codes = append(codes, it.Code)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM inventory_items
		WHERE route = $1 AND entry_date = $2::date AND NOT (code = ANY($3::text[]))
	`, req.Route, req.Date, codes)
	if err != nil {
		return 0, err
	}

	for _, it := range req.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO inventory_items (
				route, entry_date, code, category, name,
				physical, phys_unit, transfer, trans_unit, system, sys_unit,
				difference, reimburse, reimb_unit, updated_by, updated_at
			) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
			ON CONFLICT (route, entry_date, code) DO UPDATE SET
				category = EXCLUDED.category,
				name = EXCLUDED.name,
				physical = EXCLUDED.physical,
				phys_unit = EXCLUDED.phys_unit,
				transfer = EXCLUDED.transfer,
				trans_unit = EXCLUDED.trans_unit,
				system = EXCLUDED.system,
				sys_unit = EXCLUDED.sys_unit,
				difference = EXCLUDED.difference,
				reimburse = EXCLUDED.reimburse,
				reimb_unit = EXCLUDED.reimb_unit,
				updated_by = EXCLUDED.updated_by,
				updated_at = NOW()
		`,
			req.Route, req.Date, it.Code, it.Category, it.Name,
			it.Physical, it.PhysUnit, it.Transfer, it.TransUnit, it.System, it.SysUnit,
			it.Difference, it.Reimburse, it.ReimbUnit, req.UserID,
		)
		if err != nil {
			return 0, err
		}
	}

	seq, err := appendUpdate(ctx, tx, models.UpdateRoute, req.Route, req.Date, req.UserID, req.UserName, req.Items)
	if err != nil {
		return 0, err
	}

	return seq, tx.Commit(ctx)
}

func (r *InventoryRepository) GetInventory(ctx context.Context, route, date string) ([]models.InventoryItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT category, code, name,
		       physical::float8, phys_unit, transfer::float8, trans_unit, system::float8, sys_unit,
		       difference::float8, reimburse::float8, reimb_unit
		FROM inventory_items
		WHERE route = $1 AND entry_date = $2::date
		ORDER BY category, code
	`, route, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.InventoryItem{}
	for rows.Next() {
		var it models.InventoryItem
		err := rows.Scan(
			&it.Category, &it.Code, &it.Name,
			&it.Physical, &it.PhysUnit, &it.Transfer, &it.TransUnit, &it.System, &it.SysUnit,
			&it.Difference, &it.Reimburse, &it.ReimbUnit,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
