package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kuldar/futures-data/internal/api"
	"github.com/kuldar/futures-data/internal/model"
)

type fakeStore struct {
	bars    []model.Bar
	quotes  []model.Quote
	insertE error
}

func (f *fakeStore) InsertBar(ctx context.Context, b model.Bar) (bool, error) {
	if f.insertE != nil {
		return false, f.insertE
	}
	f.bars = append(f.bars, b)
	return true, nil
}

func (f *fakeStore) UpsertQuote(ctx context.Context, q model.Quote) error {
	f.quotes = append(f.quotes, q)
	return nil
}

const contractID = "CON.F.US.MNQ.H25"

func newTestAggregator(store *fakeStore, policy VolumeResetPolicy) (*Aggregator, *time.Time) {
	a := New(store, policy, nil)
	a.SetContractMapping(map[string]string{contractID: "MNQ"})

	clock := time.Date(2025, 3, 10, 14, 30, 5, 0, time.UTC)
	a.now = func() time.Time { return clock }
	return a, &clock
}

func quote(price float64, volume int64) api.GatewayQuote {
	return api.GatewayQuote{
		SymbolID:  "F.US.MNQ",
		LastPrice: price,
		BestBid:   price - 0.25,
		BestAsk:   price + 0.25,
		Volume:    volume,
	}
}

func TestOnQuoteBuildsOHLC(t *testing.T) {
	store := &fakeStore{}
	a, clock := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))
	a.OnQuote(contractID, quote(105, 1010))
	a.OnQuote(contractID, quote(95, 1020))
	a.OnQuote(contractID, quote(102, 1030))

	// Next minute closes the bar.
	*clock = clock.Add(time.Minute)
	a.OnQuote(contractID, quote(103, 1040))

	if len(store.bars) != 1 {
		t.Fatalf("saved %d bars, want 1", len(store.bars))
	}
	b := store.bars[0]
	if b.Open != 100 || b.High != 105 || b.Low != 95 || b.Close != 102 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 100/105/95/102", b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume != 30 {
		t.Errorf("volume %d, want 30", b.Volume)
	}
	if b.Source != model.SourceWebsocket {
		t.Errorf("source %q", b.Source)
	}
	if want := model.MinuteStart(time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)); b.Timestamp != want {
		t.Errorf("timestamp %d, want %d", b.Timestamp, want)
	}
}

func TestOnQuoteIgnoresZeroPrice(t *testing.T) {
	store := &fakeStore{}
	a, _ := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(0, 1000))

	if len(store.quotes) != 0 {
		t.Errorf("zero-price tick should be dropped entirely")
	}
	if a.BarsSaved() != 0 {
		t.Errorf("no bars should exist")
	}
}

func TestOnQuoteUpsertsQuoteEveryTick(t *testing.T) {
	store := &fakeStore{}
	a, _ := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))
	a.OnQuote(contractID, quote(101, 1005))

	if len(store.quotes) != 2 {
		t.Fatalf("upserted %d quotes, want 2", len(store.quotes))
	}
	if store.quotes[1].Last != 101 {
		t.Errorf("latest quote last %v, want 101", store.quotes[1].Last)
	}
	if store.quotes[1].Symbol != "MNQ" {
		t.Errorf("quote symbol %q", store.quotes[1].Symbol)
	}
}

func TestVolumeIgnorePolicy(t *testing.T) {
	store := &fakeStore{}
	a, clock := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))
	a.OnQuote(contractID, quote(100, 1010)) // +10
	a.OnQuote(contractID, quote(100, 40))   // counter reset, dropped
	a.OnQuote(contractID, quote(100, 1015)) // +5 against the old baseline

	*clock = clock.Add(time.Minute)
	a.OnQuote(contractID, quote(100, 1020))

	if len(store.bars) != 1 {
		t.Fatalf("saved %d bars, want 1", len(store.bars))
	}
	if store.bars[0].Volume != 15 {
		t.Errorf("volume %d, want 15", store.bars[0].Volume)
	}
}

func TestVolumeRebasePolicy(t *testing.T) {
	store := &fakeStore{}
	a, clock := newTestAggregator(store, VolumeRebase)

	a.OnQuote(contractID, quote(100, 1000))
	a.OnQuote(contractID, quote(100, 1010)) // +10
	a.OnQuote(contractID, quote(100, 40))   // reset adopts new baseline
	a.OnQuote(contractID, quote(100, 45))   // +5 from the new epoch

	*clock = clock.Add(time.Minute)
	a.OnQuote(contractID, quote(100, 50))

	if len(store.bars) != 1 {
		t.Fatalf("saved %d bars, want 1", len(store.bars))
	}
	if store.bars[0].Volume != 15 {
		t.Errorf("volume %d, want 15", store.bars[0].Volume)
	}
}

func TestMinuteRolloverReseedsBar(t *testing.T) {
	store := &fakeStore{}
	a, clock := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))

	*clock = clock.Add(time.Minute)
	a.OnQuote(contractID, quote(110, 1020))
	a.OnQuote(contractID, quote(112, 1025))

	*clock = clock.Add(time.Minute)
	a.OnQuote(contractID, quote(111, 1030))

	if len(store.bars) != 2 {
		t.Fatalf("saved %d bars, want 2", len(store.bars))
	}
	// The rollover tick opens the new bar; it does not extend the old one.
	if store.bars[0].Close != 100 {
		t.Errorf("first bar close %v, want 100", store.bars[0].Close)
	}
	if store.bars[1].Open != 110 {
		t.Errorf("second bar open %v, want 110", store.bars[1].Open)
	}
	// New-bar volume counts from the rollover tick's cumulative reading.
	if store.bars[1].Volume != 5 {
		t.Errorf("second bar volume %d, want 5", store.bars[1].Volume)
	}
	if a.BarsSaved() != 2 {
		t.Errorf("BarsSaved %d, want 2", a.BarsSaved())
	}
}

func TestFlushAll(t *testing.T) {
	store := &fakeStore{}
	a, _ := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))
	a.OnQuote("OTHER", api.GatewayQuote{SymbolID: "F.US.ES", LastPrice: 5000, Volume: 50})

	a.FlushAll()

	if len(store.bars) != 2 {
		t.Fatalf("flushed %d bars, want 2", len(store.bars))
	}

	// A second flush is a no-op: the open-bar state was cleared.
	a.FlushAll()
	if len(store.bars) != 2 {
		t.Errorf("second flush persisted bars again")
	}
}

func TestResolveSymbolFallback(t *testing.T) {
	store := &fakeStore{}
	a, _ := newTestAggregator(store, VolumeIgnore)

	// Unknown contract with a parseable symbol ID falls back to the
	// third dot-component.
	a.OnQuote("UNKNOWN", api.GatewayQuote{SymbolID: "F.US.ES", LastPrice: 5000, Volume: 1})
	if len(store.quotes) != 1 || store.quotes[0].Symbol != "ES" {
		t.Errorf("fallback symbol not applied: %+v", store.quotes)
	}

	// Unknown contract with an unusable symbol ID is dropped.
	a.OnQuote("UNKNOWN2", api.GatewayQuote{SymbolID: "garbage", LastPrice: 5000, Volume: 1})
	if len(store.quotes) != 1 {
		t.Errorf("unresolvable tick should be dropped")
	}
}

func TestSaveFailureDoesNotCount(t *testing.T) {
	store := &fakeStore{insertE: errors.New("db down")}
	a, _ := newTestAggregator(store, VolumeIgnore)

	a.OnQuote(contractID, quote(100, 1000))
	a.FlushAll()

	if a.BarsSaved() != 0 {
		t.Errorf("BarsSaved %d, want 0 after failed insert", a.BarsSaved())
	}
}
