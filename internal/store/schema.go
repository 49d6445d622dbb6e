package store

import "context"

// schema is applied on connect. All statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS bars_1min (
	symbol     TEXT             NOT NULL,
	ts         BIGINT           NOT NULL,
	open       DOUBLE PRECISION NOT NULL,
	high       DOUBLE PRECISION NOT NULL,
	low        DOUBLE PRECISION NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	volume     BIGINT           NOT NULL,
	source     TEXT             NOT NULL DEFAULT 'websocket',
	created_at BIGINT           NOT NULL DEFAULT EXTRACT(EPOCH FROM now())::BIGINT,
	PRIMARY KEY (symbol, ts)
);

CREATE INDEX IF NOT EXISTS idx_bars_ts ON bars_1min (ts DESC);

CREATE TABLE IF NOT EXISTS quotes (
	symbol      TEXT PRIMARY KEY,
	contract_id TEXT,
	bid         DOUBLE PRECISION,
	ask         DOUBLE PRECISION,
	last        DOUBLE PRECISION,
	high        DOUBLE PRECISION,
	low         DOUBLE PRECISION,
	open        DOUBLE PRECISION,
	volume      BIGINT,
	updated_at  BIGINT
);

CREATE TABLE IF NOT EXISTS contracts (
	symbol      TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	name        TEXT,
	tick_size   DOUBLE PRECISION,
	updated_at  BIGINT
);

CREATE TABLE IF NOT EXISTS backfill_status (
	symbol       TEXT PRIMARY KEY,
	oldest_bar   BIGINT,
	newest_bar   BIGINT,
	total_bars   BIGINT  NOT NULL DEFAULT 0,
	done         BOOLEAN NOT NULL DEFAULT FALSE,
	last_updated BIGINT
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}
