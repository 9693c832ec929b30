// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS rummy_tables (
	id            UUID PRIMARY KEY,
	code          VARCHAR(6) NOT NULL UNIQUE,
	host_user_id  UUID NOT NULL,
	wild_mode     TEXT NOT NULL,
	status        TEXT NOT NULL,
	version       BIGINT NOT NULL DEFAULT 0,
	state         JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ended_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS rummy_rounds (
	table_id        UUID NOT NULL REFERENCES rummy_tables(id) ON DELETE CASCADE,
	round_number    INT NOT NULL,
	winner_user_id  UUID,
	aborted         BOOLEAN NOT NULL DEFAULT FALSE,
	wild_rank       TEXT,
	scores          JSONB NOT NULL,
	reveal          JSONB,
	finished_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (table_id, round_number)
);

CREATE TABLE IF NOT EXISTS rummy_scores (
	table_id  UUID NOT NULL REFERENCES rummy_tables(id) ON DELETE CASCADE,
	user_id   UUID NOT NULL,
	total     INT NOT NULL,
	PRIMARY KEY (table_id, user_id)
);

CREATE TABLE IF NOT EXISTS round_actions (
	id              BIGSERIAL PRIMARY KEY,
	table_id        UUID NOT NULL,
	round_number    INT NOT NULL,
	action_index    INT NOT NULL,
	actor_user_id   UUID,
	action_type     TEXT NOT NULL,
	action_payload  JSONB,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS round_actions_table_idx ON round_actions (table_id, round_number, action_index);
`

// Migrate creates the tables used by the store and the historian.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
