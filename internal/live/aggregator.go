package live

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kuldar/futures-data/internal/api"
	"github.com/kuldar/futures-data/internal/model"
)

// VolumeResetPolicy controls how a decreasing cumulative volume counter
// is handled.
type VolumeResetPolicy string

const (
	// VolumeIgnore drops the non-positive delta and leaves the baseline
	// untouched; the tick contributes no volume.
	VolumeIgnore VolumeResetPolicy = "ignore"

	// VolumeRebase treats the decrease as a counter epoch reset: the new
	// reading becomes the baseline without adding volume.
	VolumeRebase VolumeResetPolicy = "rebase"
)

// Store is the persistence surface the aggregator needs.
type Store interface {
	InsertBar(ctx context.Context, b model.Bar) (bool, error)
	UpsertQuote(ctx context.Context, q model.Quote) error
}

// openBar is the in-progress bar for one symbol. Exists only while its
// minute is open.
type openBar struct {
	open          float64
	high          float64
	low           float64
	close         float64
	volume        int64
	minuteTS      int64
	lastCumVolume int64
}

// Aggregator converts quote ticks into completed 1-minute bars.
type Aggregator struct {
	store  Store
	logger *slog.Logger
	policy VolumeResetPolicy

	mu        sync.Mutex
	bars      map[string]*openBar // symbol → open bar, aggregator-owned
	idMap     map[string]string   // contract ID → symbol
	barsSaved int64

	now func() time.Time // injectable for tests
}

// New creates an aggregator.
func New(store Store, policy VolumeResetPolicy, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = VolumeIgnore
	}
	return &Aggregator{
		store:  store,
		logger: logger,
		policy: policy,
		bars:   make(map[string]*openBar),
		idMap:  make(map[string]string),
		now:    time.Now,
	}
}

// SetContractMapping installs the contract ID → symbol routing table.
func (a *Aggregator) SetContractMapping(mapping map[string]string) {
	a.mu.Lock()
	a.idMap = mapping
	a.mu.Unlock()
	a.logger.Info("loaded contract mappings", "count", len(mapping))
}

// BarsSaved returns the number of completed bars persisted so far.
func (a *Aggregator) BarsSaved() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.barsSaved
}

// OnQuote processes one inbound quote tick. Ticks without a usable
// price, or whose symbol cannot be resolved, are dropped.
func (a *Aggregator) OnQuote(contractID string, q api.GatewayQuote) {
	if q.LastPrice == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	symbol := a.resolveSymbol(contractID, q.SymbolID)
	if symbol == "" {
		return
	}

	now := a.now()
	minuteTS := model.MinuteStart(now)

	// Overwrite the current-market-state row on every tick.
	quote := model.Quote{
		Symbol:     symbol,
		ContractID: contractID,
		Bid:        q.BestBid,
		Ask:        q.BestAsk,
		Last:       q.LastPrice,
		High:       q.High,
		Low:        q.Low,
		Open:       q.Open,
		Volume:     q.Volume,
		UpdatedAt:  now.Unix(),
	}
	if err := a.store.UpsertQuote(context.Background(), quote); err != nil {
		a.logger.Warn("quote upsert failed", "symbol", symbol, "error", err)
	}

	bar, ok := a.bars[symbol]
	if !ok {
		a.bars[symbol] = newOpenBar(q.LastPrice, q.Volume, minuteTS)
		a.logger.Info("started tracking", "symbol", symbol, "price", q.LastPrice)
		return
	}

	if minuteTS > bar.minuteTS {
		a.saveCompletedBar(symbol, bar)
		a.bars[symbol] = newOpenBar(q.LastPrice, q.Volume, minuteTS)
		return
	}

	if q.LastPrice > bar.high {
		bar.high = q.LastPrice
	}
	if q.LastPrice < bar.low {
		bar.low = q.LastPrice
	}
	bar.close = q.LastPrice

	if delta := q.Volume - bar.lastCumVolume; delta > 0 {
		bar.volume += delta
		bar.lastCumVolume = q.Volume
	} else if a.policy == VolumeRebase {
		// Counter epoch reset: adopt the reading so later growth counts
		// from the new epoch.
		bar.lastCumVolume = q.Volume
	}
}

// FlushAll persists every open bar and clears per-symbol state.
// This is the shutdown path: it must run before the push channel is
// torn down so the current minute is not lost.
func (a *Aggregator) FlushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, bar := range a.bars {
		a.saveCompletedBar(symbol, bar)
	}
	a.bars = make(map[string]*openBar)
}

func newOpenBar(price float64, cumVolume int64, minuteTS int64) *openBar {
	return &openBar{
		open:          price,
		high:          price,
		low:           price,
		close:         price,
		volume:        0,
		minuteTS:      minuteTS,
		lastCumVolume: cumVolume,
	}
}

// saveCompletedBar persists one bar. Callers hold a.mu.
func (a *Aggregator) saveCompletedBar(symbol string, bar *openBar) {
	b := model.Bar{
		Symbol:    symbol,
		Timestamp: bar.minuteTS,
		Open:      bar.open,
		High:      bar.high,
		Low:       bar.low,
		Close:     bar.close,
		Volume:    bar.volume,
		Source:    model.SourceWebsocket,
	}

	if _, err := a.store.InsertBar(context.Background(), b); err != nil {
		a.logger.Error("bar save failed", "symbol", symbol, "error", err)
		return
	}

	a.barsSaved++
	a.logger.Info("bar saved",
		"symbol", symbol,
		"minute", time.Unix(bar.minuteTS, 0).UTC().Format("15:04"),
		"open", bar.open,
		"close", bar.close,
		"volume", bar.volume,
	)
}

// resolveSymbol prefers the explicit contract ID mapping, falling back
// to the third dot-component of the quote's symbol ID ("F.US.MNQ" →
// "MNQ"). Returns "" when neither yields a symbol. Callers hold a.mu.
func (a *Aggregator) resolveSymbol(contractID, symbolID string) string {
	if symbol, ok := a.idMap[contractID]; ok {
		return symbol
	}
	parts := strings.Split(symbolID, ".")
	if len(parts) >= 3 {
		return parts[2]
	}
	return ""
}
