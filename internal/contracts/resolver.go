package contracts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kuldar/futures-data/internal/api"
	"github.com/kuldar/futures-data/internal/model"
)

// ErrNotFound means no contract could be resolved for a symbol.
// Negative results are never cached; the next call retries remotely.
var ErrNotFound = errors.New("contract not found")

// MappingStore is the persistent cache tier for contract mappings.
type MappingStore interface {
	GetContractMapping(ctx context.Context, symbol string) (*model.ContractMapping, error)
	UpsertContractMapping(ctx context.Context, m model.ContractMapping) error
}

// RequestGate blocks until an outbound API request is allowed.
type RequestGate interface {
	Acquire(ctx context.Context) error
}

// Searcher is the remote lookup tier.
type Searcher interface {
	SearchContracts(ctx context.Context, symbol string) ([]api.Contract, error)
}

// Resolver maps symbols to contract IDs through three tiers:
// in-memory cache, persistent store, remote search.
type Resolver struct {
	store   MappingStore
	gate    RequestGate
	search  Searcher
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]string // symbol → contract ID
}

// NewResolver creates a Resolver. timeout bounds each remote lookup.
func NewResolver(store MappingStore, gate RequestGate, search Searcher, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		gate:    gate,
		search:  search,
		logger:  logger,
		timeout: timeout,
		cache:   make(map[string]string),
	}
}

// Resolve returns the contract ID for a symbol, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (string, error) {
	// Tier 1: memory
	r.mu.Lock()
	id, ok := r.cache[symbol]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	// Tier 2: persistent store
	if mapping, err := r.store.GetContractMapping(ctx, symbol); err != nil {
		r.logger.Warn("contract cache read failed", "symbol", symbol, "error", err)
	} else if mapping != nil {
		r.remember(symbol, mapping.ContractID)
		return mapping.ContractID, nil
	}

	// Tier 3: remote search through the rate limiter
	if err := r.gate.Acquire(ctx); err != nil {
		return "", err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.search.SearchContracts(lookupCtx, symbol)
	if err != nil {
		r.logger.Warn("contract search failed", "symbol", symbol, "error", err)
		return "", ErrNotFound
	}
	if len(candidates) == 0 {
		r.logger.Warn("no contract found", "symbol", symbol)
		return "", ErrNotFound
	}

	best := selectContract(symbol, candidates)

	mapping := model.ContractMapping{
		Symbol:     symbol,
		ContractID: best.ID,
		Name:       best.Name,
		TickSize:   best.TickSize,
		UpdatedAt:  time.Now().Unix(),
	}
	if err := r.store.UpsertContractMapping(ctx, mapping); err != nil {
		r.logger.Warn("contract cache write failed", "symbol", symbol, "error", err)
	}
	r.remember(symbol, best.ID)

	r.logger.Info("resolved contract", "symbol", symbol, "contract_id", best.ID)
	return best.ID, nil
}

// ResolveAll resolves every symbol, skipping failures. The returned map
// holds contractID → symbol for push-channel routing; order holds the
// contract IDs in input order for subscriptions.
func (r *Resolver) ResolveAll(ctx context.Context, symbols []string) (mapping map[string]string, order []string) {
	mapping = make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id, err := r.Resolve(ctx, symbol)
		if err != nil {
			r.logger.Warn("skipping symbol, no contract", "symbol", symbol, "error", err)
			continue
		}
		mapping[id] = symbol
		order = append(order, id)
	}
	return mapping, order
}

func (r *Resolver) remember(symbol, id string) {
	r.mu.Lock()
	r.cache[symbol] = id
	r.mu.Unlock()
}

// selectContract picks the best candidate: an ID containing ".<symbol>"
// (case-insensitive) or ending with the symbol wins; otherwise the first
// candidate. "CON.F.US.MNQH5" matches symbol "MNQ".
func selectContract(symbol string, candidates []api.Contract) api.Contract {
	upper := strings.ToUpper(symbol)
	for _, c := range candidates {
		id := strings.ToUpper(c.ID)
		if strings.Contains(id, "."+upper) || strings.HasSuffix(id, upper) {
			return c
		}
	}
	return candidates[0]
}
