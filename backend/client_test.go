package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	appconfig "github.com/wurong98/feature-hft-exchange/config"
)

// testClient returns a Client pointed at the given test server.
func testClient(baseURL string) *Client {
	cfg := &appconfig.Config{}
	cfg.Tradedeck.Name = "TradeDeck"
	cfg.Tradedeck.Version = "1.0"
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Timeout = time.Second
	cfg.Backend.ConnectionPool.MaxIdleConns = 1
	cfg.Backend.ConnectionPool.MaxConnsPerHost = 1
	cfg.Backend.ConnectionPool.IdleConnTimeout = time.Second
	return NewClient(cfg)
}

func TestLeaderboard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/leaderboard" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"apiKey":"k1","name":"alpha","totalPnl":12.5},{"apiKey":"k2","name":"beta"}]`))
	}))
	defer srv.Close()

	list, err := testClient(srv.URL).Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(list) != 2 || list[0].APIKey != "k1" || list[0].TotalPnl.Float() != 12.5 {
		t.Fatalf("unexpected leaderboard: %+v", list)
	}
}

func TestLeaderboardNonListPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"object"}`))
	}))
	defer srv.Close()

	list, err := testClient(srv.URL).Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestStrategyStatsEmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiKey":"k1","error":"strategy not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).StrategyStats(context.Background(), "k1")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Msg != "strategy not found" {
		t.Fatalf("unexpected message: %q", apiErr.Msg)
	}
}

func TestGetHTTPErrorWithCodedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":-1000,"msg":"internal error"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Leaderboard(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != -1000 || apiErr.Msg != "internal error" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestSnapshotsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "144" {
			t.Errorf("unexpected limit %q", got)
		}
		w.Write([]byte(`[{"snapshotAt":1700000000000,"totalPnl":1.5}]`))
	}))
	defer srv.Close()

	snaps, err := testClient(srv.URL).Snapshots(context.Background(), "k1", 144)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].TotalPnl.Float() != 1.5 {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
}

func TestLatestTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"BTCUSDT":{"s":"BTCUSDT","p":"50000.5","q":"0.1","T":1700000000000,"m":true}}`))
	}))
	defer srv.Close()

	ticks, err := testClient(srv.URL).LatestTrades(context.Background())
	if err != nil {
		t.Fatalf("LatestTrades: %v", err)
	}
	tick, ok := ticks["BTCUSDT"]
	if !ok || tick.Price.Float() != 50000.5 || !tick.BuyerIsMaker {
		t.Fatalf("unexpected ticks: %+v", ticks)
	}
}

func TestParseSymbols(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{`["BTCUSDT","ETHUSDT"]`, []string{"BTCUSDT", "ETHUSDT"}},
		{`"BTCUSDT,ETHUSDT"`, []string{"BTCUSDT", "ETHUSDT"}},
		{`BTCUSDT, ETHUSDT ,`, []string{"BTCUSDT", "ETHUSDT"}},
		{`[" BTCUSDT ",""]`, []string{"BTCUSDT"}},
		{``, []string{}},
	}
	for _, c := range cases {
		if got := ParseSymbols(c.raw); !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseSymbols(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestWSEndpoint(t *testing.T) {
	c := testClient("https://example.com/base")
	if got := c.WSEndpoint(); got != "wss://example.com/base/ws" {
		t.Fatalf("unexpected ws endpoint: %s", got)
	}
}
