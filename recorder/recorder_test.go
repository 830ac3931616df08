package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wurong98/feature-hft-exchange/config"
	"github.com/wurong98/feature-hft-exchange/models"
	"github.com/wurong98/feature-hft-exchange/session"
)

// stubSource feeds the recorder a fixed detail view and tick buffer.
type stubSource struct {
	detail session.Detail
	ticks  []models.TradeTick
}

func (s *stubSource) Detail() session.Detail    { return s.detail }
func (s *stubSource) Ticks() []models.TradeTick { return s.ticks }

func testRecorderConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	cfg := &appconfig.Config{}
	cfg.Tradedeck.Name = "TradeDeck"
	cfg.Tradedeck.Version = "1.0"
	cfg.Recorder.Enabled = true
	cfg.Recorder.Directory = t.TempDir()
	cfg.Recorder.FlushInterval = time.Minute
	return cfg
}

func snapshotAt(ms int64) models.Timestamp {
	return models.TS(time.UnixMilli(ms))
}

func readyDetail() session.Detail {
	return session.Detail{
		State:  session.StateReady,
		APIKey: "k1",
		View: models.StrategyView{
			Snapshots: []models.PnLSnapshot{{SnapshotAt: snapshotAt(1700000000000), TotalPnl: models.Num(12.5)}},
			FetchedAt: time.Now(),
		},
	}
}

func TestFlushArchivesSnapshotsAndTicks(t *testing.T) {
	src := &stubSource{
		detail: readyDetail(),
		ticks: []models.TradeTick{
			{Symbol: "BTCUSDT", TradeTime: snapshotAt(1700000000000), BuyerIsMaker: true},
		},
	}

	cfg := testRecorderConfig(t)
	r, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.flush()

	var snapshots, ticks int
	err = filepath.Walk(cfg.Recorder.Directory, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".parquet") {
			t.Errorf("unexpected file %s", path)
		}
		if strings.Contains(path, "snapshots") {
			snapshots++
		}
		if strings.Contains(path, "ticks") {
			ticks++
		}
		if info.Size() == 0 {
			t.Errorf("empty archive file %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if snapshots != 1 || ticks != 1 {
		t.Fatalf("unexpected archive files: snapshots=%d ticks=%d", snapshots, ticks)
	}
}

func TestFlushSkipsUnchangedState(t *testing.T) {
	src := &stubSource{
		detail: readyDetail(),
		ticks: []models.TradeTick{
			{Symbol: "BTCUSDT", TradeTime: snapshotAt(1700000000000)},
		},
	}

	cfg := testRecorderConfig(t)
	r, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.flush()
	r.flush() // nothing changed, must not produce new files

	count := 0
	filepath.Walk(cfg.Recorder.Directory, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	if count != 2 {
		t.Fatalf("expected 2 archive files, got %d", count)
	}
}

func TestFlushIgnoresIdleDetail(t *testing.T) {
	src := &stubSource{detail: session.Detail{State: session.StateIdle}}

	cfg := testRecorderConfig(t)
	r, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.flush()

	count := 0
	filepath.Walk(cfg.Recorder.Directory, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	if count != 0 {
		t.Fatalf("expected no archive files, got %d", count)
	}
}

func TestGenerateKeyLayout(t *testing.T) {
	cfg := testRecorderConfig(t)
	r, err := New(cfg, &stubSource{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := r.generateKey("snapshots", "api_key=k1")
	if !strings.HasPrefix(key, "snapshots/api_key=k1/") {
		t.Fatalf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".parquet") {
		t.Fatalf("unexpected key suffix: %s", key)
	}
	if strings.Contains(key, "\\") {
		t.Fatalf("key contains backslashes: %s", key)
	}
}
