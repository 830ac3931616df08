package ticker

import (
	"fmt"
	"testing"
	"time"

	"github.com/wurong98/feature-hft-exchange/models"
)

func tick(symbol string, price float64, at time.Time) models.TradeTick {
	return models.TradeTick{
		Symbol:    symbol,
		Price:     models.Num(price),
		Quantity:  models.Num(1),
		TradeTime: models.TS(at),
	}
}

func TestIngestCapacity(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(3)
	for i := 0; i < 10; i++ {
		s.Ingest(tick(fmt.Sprintf("SYM%d", i), 1, base.Add(time.Duration(i)*time.Second)))
	}
	if got := s.Len(); got != 3 {
		t.Fatalf("capacity exceeded: %d entries", got)
	}
	snap := s.Snapshot()
	if snap[0].Symbol != "SYM9" {
		t.Errorf("newest first: got %s", snap[0].Symbol)
	}
}

func TestIngestReplacesInstrumentInPlace(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(10)
	s.Ingest(tick("BTCUSDT", 100, base))
	s.Ingest(tick("ETHUSDT", 50, base.Add(time.Second)))
	s.Ingest(tick("BTCUSDT", 101, base.Add(2*time.Second)))

	if got := s.Len(); got != 2 {
		t.Fatalf("duplicate instrument entries: %d", got)
	}
	snap := s.Snapshot()
	if snap[0].Symbol != "BTCUSDT" || snap[0].Price.Float() != 101 {
		t.Errorf("replacement not newest-first: %+v", snap)
	}
}

func TestIngestResortsAfterReplacement(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(10)
	s.Ingest(tick("AAA", 1, base.Add(3*time.Second)))
	s.Ingest(tick("BBB", 2, base.Add(2*time.Second)))
	s.Ingest(tick("CCC", 3, base.Add(1*time.Second)))

	// Out-of-order update for the oldest entry: it must move to the front.
	s.Ingest(tick("CCC", 4, base.Add(10*time.Second)))

	snap := s.Snapshot()
	want := []string{"CCC", "AAA", "BBB"}
	for i, sym := range want {
		if snap[i].Symbol != sym {
			t.Fatalf("order after replacement: got %v", snap)
		}
	}
}

func TestIngestDiscardsMalformed(t *testing.T) {
	s := NewStore(10)
	if s.Ingest(models.TradeTick{Price: models.Num(1)}) {
		t.Error("tick without instrument must be discarded")
	}
	if s.Ingest(models.TradeTick{Symbol: "BTCUSDT"}) {
		t.Error("tick without price must be discarded")
	}
	if s.Len() != 0 {
		t.Errorf("malformed ticks buffered: %d", s.Len())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(10)
	s.Ingest(tick("BTCUSDT", 100, base))
	snap := s.Snapshot()
	snap[0].Symbol = "MUTATED"
	if s.Snapshot()[0].Symbol != "BTCUSDT" {
		t.Error("snapshot must not alias internal buffer")
	}
}
