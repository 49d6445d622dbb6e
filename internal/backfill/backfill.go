package backfill

import (
	"context"
	"log/slog"
	"time"

	"github.com/kuldar/futures-data/internal/api"
	"github.com/kuldar/futures-data/internal/model"
)

// Store is the persistence surface the engine needs.
type Store interface {
	InsertBars(ctx context.Context, bars []model.Bar) (int, error)
	OldestBarTimestamp(ctx context.Context, symbol string) (int64, error)
	NewestBarTimestamp(ctx context.Context, symbol string) (int64, error)
	BarCount(ctx context.Context, symbol string) (int64, error)
	UpsertBackfillProgress(ctx context.Context, p model.BackfillProgress) error
}

// ContractResolver maps a symbol to its platform contract ID.
type ContractResolver interface {
	Resolve(ctx context.Context, symbol string) (string, error)
}

// RequestGate blocks until an outbound API request is allowed.
type RequestGate interface {
	Acquire(ctx context.Context) error
}

// BarSource fetches historical bars.
type BarSource interface {
	RetrieveBars(ctx context.Context, contractID string, start, end time.Time, limit int) ([]api.BarRecord, error)
}

// Config holds engine settings.
type Config struct {
	Days           int           // Trailing window in days
	BarsPerRequest int           // Max bars per history page
	PageTimeout    time.Duration // Per-page request timeout
}

// Engine backfills historical minute bars through the REST API.
type Engine struct {
	cfg      Config
	resolver ContractResolver
	gate     RequestGate
	source   BarSource
	store    Store
	logger   *slog.Logger

	now func() time.Time // injectable for tests
}

// New creates a backfill engine.
func New(cfg Config, resolver ContractResolver, gate RequestGate, source BarSource, store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		resolver: resolver,
		gate:     gate,
		source:   source,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// BackfillSymbol fills the trailing window for one symbol and returns
// the number of newly saved bars. The window pages strictly backward:
// each request ends one minute before the oldest bar of the previous
// page, so pages neither overlap nor skip gaps.
func (e *Engine) BackfillSymbol(ctx context.Context, symbol string) (int, error) {
	contractID, err := e.resolver.Resolve(ctx, symbol)
	if err != nil {
		e.logger.Warn("skipping symbol, no contract", "symbol", symbol, "error", err)
		return 0, err
	}

	e.logger.Info("backfilling symbol", "symbol", symbol, "contract_id", contractID, "days", e.cfg.Days)

	windowEnd := e.now().UTC()
	windowStart := windowEnd.AddDate(0, 0, -e.cfg.Days)

	totalSaved := 0
	for windowEnd.After(windowStart) {
		if err := ctx.Err(); err != nil {
			return totalSaved, err
		}

		records, err := e.fetchPage(ctx, contractID, windowStart, windowEnd)
		if err != nil {
			// Transient failure: no data this round, stop paging.
			e.logger.Warn("history page failed", "symbol", symbol, "error", err)
			break
		}
		if len(records) == 0 {
			e.logger.Info("history exhausted", "symbol", symbol)
			break
		}

		bars, oldest := e.parseRecords(symbol, records)

		saved, err := e.store.InsertBars(ctx, bars)
		if err != nil {
			e.logger.Error("bar batch insert failed", "symbol", symbol, "error", err)
			break
		}
		totalSaved += saved

		if oldest.IsZero() {
			// Every record in the page failed to parse.
			break
		}

		e.logger.Info("history page saved",
			"symbol", symbol,
			"got", len(records),
			"saved", saved,
			"oldest", oldest.Format("2006-01-02 15:04"),
		)

		windowEnd = oldest.Add(-time.Minute)
	}

	if err := e.updateProgress(ctx, symbol); err != nil {
		e.logger.Warn("progress update failed", "symbol", symbol, "error", err)
	}

	e.logger.Info("backfill complete", "symbol", symbol, "saved", totalSaved)
	return totalSaved, nil
}

// BackfillAll runs BackfillSymbol for each symbol, isolating failures:
// an error for one symbol records a zero result and moves on.
func (e *Engine) BackfillAll(ctx context.Context, symbols []string) map[string]int {
	e.logger.Info("starting backfill", "symbols", len(symbols))

	results := make(map[string]int, len(symbols))
	for i, symbol := range symbols {
		e.logger.Info("backfill progress", "position", i+1, "total", len(symbols), "symbol", symbol)

		saved, err := e.BackfillSymbol(ctx, symbol)
		if err != nil {
			e.logger.Warn("symbol backfill failed", "symbol", symbol, "error", err)
			results[symbol] = 0
			if ctx.Err() != nil {
				break
			}
			continue
		}
		results[symbol] = saved
	}

	total := 0
	for _, n := range results {
		total += n
	}
	e.logger.Info("backfill finished", "symbols", len(results), "bars_saved", total)

	return results
}

// fetchPage requests one page of bars through the rate limiter.
func (e *Engine) fetchPage(ctx context.Context, contractID string, start, end time.Time) ([]api.BarRecord, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	pageCtx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	return e.source.RetrieveBars(pageCtx, contractID, start, end, e.cfg.BarsPerRequest)
}

// parseRecords converts API records to bars, skipping unparseable ones,
// and returns the oldest bar time in the page.
func (e *Engine) parseRecords(symbol string, records []api.BarRecord) ([]model.Bar, time.Time) {
	bars := make([]model.Bar, 0, len(records))
	var oldest time.Time

	for _, r := range records {
		bar, err := r.ToBar(symbol)
		if err != nil {
			e.logger.Warn("skipping bar record", "symbol", symbol, "error", err)
			continue
		}
		bars = append(bars, bar)

		t := time.Unix(bar.Timestamp, 0).UTC()
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}

	return bars, oldest
}

// updateProgress refreshes the backfill_status row from stored bars.
func (e *Engine) updateProgress(ctx context.Context, symbol string) error {
	oldest, err := e.store.OldestBarTimestamp(ctx, symbol)
	if err != nil {
		return err
	}
	newest, err := e.store.NewestBarTimestamp(ctx, symbol)
	if err != nil {
		return err
	}
	count, err := e.store.BarCount(ctx, symbol)
	if err != nil {
		return err
	}

	return e.store.UpsertBackfillProgress(ctx, model.BackfillProgress{
		Symbol:      symbol,
		OldestBar:   oldest,
		NewestBar:   newest,
		TotalBars:   count,
		Done:        true,
		LastUpdated: e.now().Unix(),
	})
}
