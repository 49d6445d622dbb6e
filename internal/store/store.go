package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuldar/futures-data/internal/config"
	"github.com/kuldar/futures-data/internal/model"
)

// Store wraps the PostgreSQL connection pool.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates the pool, verifies connectivity, and ensures the schema.
func Connect(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// -----------------------------------------------------------------------------
// Bars
// -----------------------------------------------------------------------------

// InsertBar saves a single bar, ignoring duplicates. Returns true if the
// bar was newly inserted.
func (s *Store) InsertBar(ctx context.Context, b model.Bar) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO bars_1min (symbol, ts, open, high, low, close, volume, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, ts) DO NOTHING
	`, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, b.Source)
	if err != nil {
		return false, fmt.Errorf("insert bar: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// InsertBars saves a batch of bars with conflict-ignore semantics.
// Returns the number newly inserted (duplicates are not counted).
func (s *Store) InsertBars(ctx context.Context, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO bars_1min (symbol, ts, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, ts) DO NOTHING
		`, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, b.Source)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range bars {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch insert bars: %w", err)
		}
		if ct.RowsAffected() > 0 {
			inserted++
		}
	}

	return inserted, nil
}

// OldestBarTimestamp returns the oldest bar timestamp for a symbol,
// 0 when no bars exist.
func (s *Store) OldestBarTimestamp(ctx context.Context, symbol string) (int64, error) {
	return s.barTimestamp(ctx, symbol, "MIN")
}

// NewestBarTimestamp returns the newest bar timestamp for a symbol,
// 0 when no bars exist.
func (s *Store) NewestBarTimestamp(ctx context.Context, symbol string) (int64, error) {
	return s.barTimestamp(ctx, symbol, "MAX")
}

func (s *Store) barTimestamp(ctx context.Context, symbol, fn string) (int64, error) {
	var ts *int64
	query := fmt.Sprintf("SELECT %s(ts) FROM bars_1min WHERE symbol = $1", fn)
	if err := s.db.QueryRow(ctx, query, symbol).Scan(&ts); err != nil {
		return 0, fmt.Errorf("read bar timestamp: %w", err)
	}
	if ts == nil {
		return 0, nil
	}
	return *ts, nil
}

// BarCount returns the total bar count for a symbol.
func (s *Store) BarCount(ctx context.Context, symbol string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM bars_1min WHERE symbol = $1", symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// UpsertQuote overwrites the current quote row for a symbol.
func (s *Store) UpsertQuote(ctx context.Context, q model.Quote) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO quotes (symbol, contract_id, bid, ask, last, high, low, open, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol) DO UPDATE SET
			contract_id = EXCLUDED.contract_id,
			bid = EXCLUDED.bid,
			ask = EXCLUDED.ask,
			last = EXCLUDED.last,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			open = EXCLUDED.open,
			volume = EXCLUDED.volume,
			updated_at = EXCLUDED.updated_at
	`, q.Symbol, q.ContractID, q.Bid, q.Ask, q.Last, q.High, q.Low, q.Open, q.Volume, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert quote: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Contract mappings
// -----------------------------------------------------------------------------

// UpsertContractMapping caches a symbol → contract ID resolution.
func (s *Store) UpsertContractMapping(ctx context.Context, m model.ContractMapping) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO contracts (symbol, contract_id, name, tick_size, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			contract_id = EXCLUDED.contract_id,
			name = EXCLUDED.name,
			tick_size = EXCLUDED.tick_size,
			updated_at = EXCLUDED.updated_at
	`, m.Symbol, m.ContractID, m.Name, m.TickSize, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert contract mapping: %w", err)
	}
	return nil
}

// GetContractMapping returns the cached mapping for a symbol, nil when
// no row exists.
func (s *Store) GetContractMapping(ctx context.Context, symbol string) (*model.ContractMapping, error) {
	var m model.ContractMapping
	err := s.db.QueryRow(ctx, `
		SELECT symbol, contract_id, name, tick_size, updated_at
		FROM contracts WHERE symbol = $1
	`, symbol).Scan(&m.Symbol, &m.ContractID, &m.Name, &m.TickSize, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contract mapping: %w", err)
	}
	return &m, nil
}

// -----------------------------------------------------------------------------
// Backfill progress
// -----------------------------------------------------------------------------

// UpsertBackfillProgress records backfill state for a symbol.
func (s *Store) UpsertBackfillProgress(ctx context.Context, p model.BackfillProgress) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO backfill_status (symbol, oldest_bar, newest_bar, total_bars, done, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			oldest_bar = EXCLUDED.oldest_bar,
			newest_bar = EXCLUDED.newest_bar,
			total_bars = EXCLUDED.total_bars,
			done = EXCLUDED.done,
			last_updated = EXCLUDED.last_updated
	`, p.Symbol, p.OldestBar, p.NewestBar, p.TotalBars, p.Done, p.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert backfill progress: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Status surface
// -----------------------------------------------------------------------------

// SymbolStatus reads the operational status for one symbol.
func (s *Store) SymbolStatus(ctx context.Context, symbol string) (model.SymbolStatus, error) {
	st := model.SymbolStatus{Symbol: symbol}

	count, err := s.BarCount(ctx, symbol)
	if err != nil {
		return st, err
	}
	st.BarCount = count

	if st.OldestBar, err = s.OldestBarTimestamp(ctx, symbol); err != nil {
		return st, err
	}
	if st.NewestBar, err = s.NewestBarTimestamp(ctx, symbol); err != nil {
		return st, err
	}

	return st, nil
}

// SymbolStatuses reads operational status for each symbol in order.
func (s *Store) SymbolStatuses(ctx context.Context, symbols []string) ([]model.SymbolStatus, error) {
	out := make([]model.SymbolStatus, 0, len(symbols))
	for _, symbol := range symbols {
		st, err := s.SymbolStatus(ctx, symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
