package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"route-recon/internal/models"
)

// feedLockID serializes feed appends so sequence order equals commit order.
// Without it a poller could read MAX(seq) past a sequence whose transaction
// has not committed yet and never see that update.
const feedLockID = 7301

type FeedRepository struct {
	DB *pgxpool.Pool
}

func NewFeedRepository(db *pgxpool.Pool) *FeedRepository {
	return &FeedRepository{DB: db}
}

// appendUpdate records an update inside an open transaction and returns its sequence.
func appendUpdate(ctx context.Context, tx pgx.Tx, updateType, route, date, userID, userName string, data interface{}) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feed payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, feedLockID); err != nil {
		return 0, fmt.Errorf("failed to lock change feed: %w", err)
	}

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO change_feed (update_type, route, entry_date, user_id, user_name, payload)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		RETURNING seq
	`, updateType, route, date, userID, userName, payload).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to append change feed: %w", err)
	}
	return seq, nil
}

// UpdatesSince returns updates for route/date newer than since, plus the
// latest sequence in the whole feed.
func (r *FeedRepository) UpdatesSince(ctx context.Context, route, date string, since int64) ([]models.Update, int64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var latest int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM change_feed`).Scan(&latest); err != nil {
		return nil, 0, err
	}

	rows, err := tx.Query(ctx, `
		SELECT seq, update_type, route, entry_date::text, user_id, user_name, payload, created_at
		FROM change_feed
		WHERE route = $1 AND entry_date = $2::date AND seq > $3
		ORDER BY seq
	`, route, date, since)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	updates := []models.Update{}
	for rows.Next() {
		var u models.Update
		var payload []byte
		if err := rows.Scan(&u.Timestamp, &u.Type, &u.Route, &u.Date, &u.UserID, &u.UserName, &payload, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		u.Data = json.RawMessage(payload)
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return updates, latest, tx.Commit(ctx)
}
