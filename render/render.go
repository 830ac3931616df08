// Package render projects the session's view models onto a display surface.
// The only surface here is the structured log; the row and summary builders
// are pure so richer frontends can reuse them.
package render

import (
	"context"
	"time"

	"github.com/wurong98/feature-hft-exchange/format"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/models"
	"github.com/wurong98/feature-hft-exchange/session"
)

// Source is the slice of the session the renderer reads. *session.Session
// satisfies it.
type Source interface {
	Leaderboard() []session.Entry
	HeaderStats() session.HeaderStats
	Detail() session.Detail
	Ticks() []models.TradeTick
}

// BoardRow is one formatted leaderboard row.
type BoardRow struct {
	Rank   int
	Name   string
	Pnl    string
	ROI    string
	Trades string
}

// TickRow is one formatted ticker row.
type TickRow struct {
	Symbol   string
	Side     string
	Price    string
	Quantity string
	Age      string
}

// DetailSummary is the formatted detail panel header.
type DetailSummary struct {
	State       string
	Name        string
	Equity      string
	MarginUsage string
	Risk        string
	Unrealized  string
	AvgLeverage string
	Trend       string
	BestAsk     string
	Err         string
}

// BoardRows formats leaderboard entries for display.
func BoardRows(entries []session.Entry) []BoardRow {
	rows := make([]BoardRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, BoardRow{
			Rank:   e.Rank,
			Name:   e.Strategy.Name,
			Pnl:    format.Signed(e.Strategy.TotalPnl, 2),
			ROI:    format.Signed(e.Strategy.ROI, 2) + "%",
			Trades: format.Amount(e.Strategy.TradeCount, 0),
		})
	}
	return rows
}

// TickRows formats the ticker buffer for display, newest first.
func TickRows(ticks []models.TradeTick, now time.Time) []TickRow {
	rows := make([]TickRow, 0, len(ticks))
	for _, t := range ticks {
		rows = append(rows, TickRow{
			Symbol:   t.Symbol,
			Side:     string(t.Side()),
			Price:    format.Price(t.Price),
			Quantity: format.Amount(t.Quantity, 4),
			Age:      format.RelativeTime(t.EventTime(), now),
		})
	}
	return rows
}

// Summarize formats the detail panel header from the current detail state.
func Summarize(d session.Detail) DetailSummary {
	s := DetailSummary{
		State: string(d.State),
		Name:  d.View.Stats.Name,
		Err:   d.Err,
	}
	if d.State != session.StateReady && d.State != session.StateRefreshing {
		return s
	}

	s.Equity = format.Amount(models.Num(d.Metrics.TotalEquity), 2)
	s.MarginUsage = format.Amount(models.Num(d.Metrics.MarginUsage), 2) + "%"
	s.Risk = string(d.Metrics.Risk)
	s.Unrealized = format.Signed(models.Num(d.Metrics.UnrealizedPnl), 2)
	s.AvgLeverage = format.Leverage(models.Num(d.Metrics.AvgLeverage))
	s.Trend = d.Chart.Trend
	if ask, ok := d.View.Book.BestAsk(); ok {
		s.BestAsk = format.Price(ask.Price)
	}
	return s
}

// Renderer periodically logs the formatted dashboard state.
type Renderer struct {
	source   Source
	interval time.Duration
	log      *logger.Log
}

// New creates a Renderer over the given source.
func New(source Source, interval time.Duration) *Renderer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Renderer{source: source, interval: interval, log: logger.GetLogger()}
}

// Start launches the render loop. It exits when ctx is cancelled.
func (r *Renderer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.render()
			}
		}
	}()
}

func (r *Renderer) render() {
	log := r.log.WithComponent("render")

	header := r.source.HeaderStats()
	board := BoardRows(r.source.Leaderboard())
	log.WithFields(logger.Fields{
		"strategies":   header.Strategies,
		"total_pnl":    format.Signed(models.Num(header.TotalPnl), 2),
		"total_trades": header.TotalTrades,
		"rows":         len(board),
	}).Info("leaderboard")

	summary := Summarize(r.source.Detail())
	log.WithFields(logger.Fields{
		"state":        summary.State,
		"name":         summary.Name,
		"equity":       summary.Equity,
		"margin_usage": summary.MarginUsage,
		"risk":         summary.Risk,
		"unrealized":   summary.Unrealized,
		"trend":        summary.Trend,
		"best_ask":     summary.BestAsk,
		"error":        summary.Err,
	}).Info("strategy detail")

	ticks := TickRows(r.source.Ticks(), time.Now())
	log.WithFields(logger.Fields{"rows": len(ticks)}).Info("trade ticker")
}
