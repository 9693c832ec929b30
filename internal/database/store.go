// internal/database/store.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/sirupsen/logrus"
)

// PostgresStore persists tables as a JSONB state column plus one row per finished round.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

var _ game.Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logger.WithField("component", "store")}
}

// LoadTable reads the latest saved state of a table.
func (s *PostgresStore) LoadTable(ctx context.Context, id uuid.UUID) (*game.TableRecord, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM rummy_tables WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select table %s: %w", id, err)
	}
	return decodeRecord(state)
}

// SaveTable upserts the table row. Writes carrying an older version than the stored one are ignored.
func (s *PostgresStore) SaveTable(ctx context.Context, rec *game.TableRecord) error {
	state, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return upsertTableTx(ctx, tx, rec, state)
	})
	if err != nil {
		return fmt.Errorf("save table %s: %w", rec.ID, err)
	}
	return nil
}

// FinishRound writes the table row, the round summary and the cumulative scores in one transaction.
func (s *PostgresStore) FinishRound(ctx context.Context, rec *game.TableRecord, summary game.RoundSummary) error {
	state, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(summary.Scores)
	if err != nil {
		return fmt.Errorf("marshal round scores: %w", err)
	}
	reveal, err := json.Marshal(summary.Reveal)
	if err != nil {
		return fmt.Errorf("marshal round reveal: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := upsertTableTx(ctx, tx, rec, state); err != nil {
			return err
		}
		q := `
			INSERT INTO rummy_rounds (table_id, round_number, winner_user_id, aborted, wild_rank, scores, reveal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (table_id, round_number) DO NOTHING
		`
		if _, err := tx.Exec(ctx, q,
			summary.TableID, summary.Number, winnerParam(summary.WinnerUserID),
			summary.Aborted, wildRankParam(summary), scores, reveal,
		); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
		for userID, total := range rec.CumulativeScores {
			q := `
				INSERT INTO rummy_scores (table_id, user_id, total)
				VALUES ($1, $2, $3)
				ON CONFLICT (table_id, user_id) DO UPDATE SET total = EXCLUDED.total
			`
			if _, err := tx.Exec(ctx, q, rec.ID, userID, total); err != nil {
				return fmt.Errorf("upsert score: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish round %d of table %s: %w", summary.Number, rec.ID, err)
	}
	s.log.WithFields(logrus.Fields{"table_id": rec.ID, "round": summary.Number}).Debug("round persisted")
	return nil
}

func upsertTableTx(ctx context.Context, tx pgx.Tx, rec *game.TableRecord, state []byte) error {
	q := `
		INSERT INTO rummy_tables (id, code, host_user_id, wild_mode, status, version, state, updated_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), CASE WHEN $5 = 'finished' THEN NOW() END)
		ON CONFLICT (id) DO UPDATE SET
			host_user_id = EXCLUDED.host_user_id,
			status       = EXCLUDED.status,
			version      = EXCLUDED.version,
			state        = EXCLUDED.state,
			updated_at   = NOW(),
			ended_at     = COALESCE(rummy_tables.ended_at, EXCLUDED.ended_at)
		WHERE rummy_tables.version < EXCLUDED.version
	`
	_, err := tx.Exec(ctx, q, rec.ID, rec.Code, rec.HostUserID, string(rec.WildMode), string(rec.Status), int64(rec.Version), state)
	if err != nil {
		return fmt.Errorf("upsert table: %w", err)
	}
	return nil
}

func encodeRecord(rec *game.TableRecord) ([]byte, error) {
	state, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal table %s: %w", rec.ID, err)
	}
	return state, nil
}

func decodeRecord(state []byte) (*game.TableRecord, error) {
	var rec game.TableRecord
	if err := json.Unmarshal(state, &rec); err != nil {
		return nil, fmt.Errorf("decode table state: %w", err)
	}
	return &rec, nil
}

// winnerParam maps "no winner" to SQL NULL.
func winnerParam(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func wildRankParam(summary game.RoundSummary) *string {
	if summary.WildRank == nil {
		return nil
	}
	s := summary.WildRank.String()
	return &s
}
