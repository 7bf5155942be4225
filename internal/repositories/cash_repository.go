package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"route-recon/internal/models"
)

type CashRepository struct {
	DB *pgxpool.Pool
}

func NewCashRepository(db *pgxpool.Pool) *CashRepository {
	return &CashRepository{DB: db}
}

// SaveCash stores the whole record as JSON next to the headline figures
// and appends a cash_update to the change feed.
func (r *CashRepository) SaveCash(ctx context.Context, rec *models.CashRecord) (int64, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cash record: %w", err)
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cash_reconciliations (
			route, entry_date, total_sales, expected_cash, actual_cash, difference, payload, updated_by, updated_at
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (route, entry_date) DO UPDATE SET
			total_sales = EXCLUDED.total_sales,
			expected_cash = EXCLUDED.expected_cash,
			actual_cash = EXCLUDED.actual_cash,
			difference = EXCLUDED.difference,
			payload = EXCLUDED.payload,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
	`, rec.Route, rec.Date, rec.TotalSales, rec.ExpectedCash, rec.ActualCash, rec.Difference, payload, rec.UserID)
	if err != nil {
		return 0, err
	}

	seq, err := appendUpdate(ctx, tx, models.UpdateCash, rec.Route, rec.Date, rec.UserID, rec.UserName, rec)
	if err != nil {
		return 0, err
	}

	return seq, tx.Commit(ctx)
}

// GetCash returns nil when the route has no record for the day.
func (r *CashRepository) GetCash(ctx context.Context, route, date string) (*models.CashRecord, error) {
	var payload []byte
	var updatedAt time.Time
	err := r.DB.QueryRow(ctx, `
		SELECT payload, updated_at
		FROM cash_reconciliations
		WHERE route = $1 AND entry_date = $2::date
	`, route, date).Scan(&payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec models.CashRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cash record: %w", err)
	}
	rec.UpdatedAt = &updatedAt
	return &rec, nil
}
