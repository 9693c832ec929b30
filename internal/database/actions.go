// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/rummy/internal/cache"
)

// InsertActions writes a batch of action records in a single transaction. A table_finished action also
// stamps the table's end time.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, batch []cache.ActionRecord) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of table %s: %w", rec.ActionIndex, rec.TableID, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec cache.ActionRecord) error {
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO round_actions (
			table_id, round_number, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, q,
		rec.TableID, rec.RoundNumber, rec.ActionIndex, winnerParam(rec.ActorUserID),
		rec.ActionType, payload, time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == "table_finished" {
		finalizeQ := `
			UPDATE rummy_tables
			SET ended_at = COALESCE(ended_at, NOW())
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.TableID); err != nil {
			return err
		}
	}
	return nil
}

// MarkTableAbandoned closes a table that is still waiting or playing. The saved state is marked finished
// so the table is not restored again. It reports whether a row changed.
func MarkTableAbandoned(ctx context.Context, pool *pgxpool.Pool, tableID uuid.UUID) (bool, error) {
	var changed bool
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE rummy_tables
			SET status = 'abandoned',
			    state = jsonb_set(state, '{status}', '"finished"'),
			    ended_at = NOW()
			WHERE id = $1 AND status IN ('waiting', 'playing')
		`
		tag, err := tx.Exec(ctx, q, tableID)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark table %s abandoned: %w", tableID, err)
	}
	return changed, nil
}
