package render

import (
	"testing"
	"time"

	"github.com/wurong98/feature-hft-exchange/chart"
	"github.com/wurong98/feature-hft-exchange/derive"
	"github.com/wurong98/feature-hft-exchange/models"
	"github.com/wurong98/feature-hft-exchange/session"
)

func TestBoardRows(t *testing.T) {
	entries := []session.Entry{
		{Rank: 1, Strategy: models.Strategy{
			Name:       "alpha",
			TotalPnl:   models.Num(12500),
			ROI:        models.Num(-3.5),
			TradeCount: models.Num(42),
		}},
		{Rank: 3, Strategy: models.Strategy{Name: "gamma"}},
	}

	rows := BoardRows(entries)
	if len(rows) != 2 {
		t.Fatalf("unexpected row count: %d", len(rows))
	}
	if rows[0].Pnl != "+12.50K" || rows[0].ROI != "-3.50%" || rows[0].Trades != "42" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[1].Rank != 3 || rows[1].Pnl != "—" {
		t.Fatalf("missing values not rendered as sentinel: %+v", rows[1])
	}
}

func TestTickRows(t *testing.T) {
	now := time.Now()
	ticks := []models.TradeTick{
		{
			Symbol:       "BTCUSDT",
			Price:        models.Num(50000.5),
			Quantity:     models.Num(0.1234),
			TradeTime:    models.TS(now.Add(-5 * time.Minute)),
			BuyerIsMaker: true,
		},
	}

	rows := TickRows(ticks, now)
	if len(rows) != 1 {
		t.Fatalf("unexpected row count: %d", len(rows))
	}
	r := rows[0]
	if r.Side != "SELL" || r.Price != "50000.50" || r.Quantity != "0.1234" || r.Age != "5m ago" {
		t.Fatalf("unexpected row: %+v", r)
	}
}

func TestSummarizeReady(t *testing.T) {
	d := session.Detail{
		State:  session.StateReady,
		APIKey: "k1",
		View: models.StrategyView{
			Stats: models.Strategy{Name: "alpha"},
			Book: models.OrderBook{
				Asks: []models.BookLevel{{Price: models.Num(50001), Quantity: models.Num(0.2)}},
			},
		},
		Metrics: derive.Metrics{
			TotalEquity:   10500,
			MarginUsage:   25,
			Risk:          derive.RiskMedium,
			UnrealizedPnl: -120,
			AvgLeverage:   10,
		},
		Chart: chart.Series{Trend: "positive"},
	}

	s := Summarize(d)
	if s.Equity != "10.50K" || s.MarginUsage != "25.00%" || s.Risk != "medium" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Unrealized != "-120.00" || s.AvgLeverage != "10x" || s.Trend != "positive" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.BestAsk != "50001.00" {
		t.Fatalf("unexpected best ask: %q", s.BestAsk)
	}
}

func TestSummarizeFailed(t *testing.T) {
	d := session.Detail{State: session.StateFailed, Err: "strategy not found"}
	s := Summarize(d)
	if s.State != "failed" || s.Err != "strategy not found" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Equity != "" {
		t.Fatalf("failed summary should not format metrics: %+v", s)
	}
}
