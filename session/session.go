package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wurong98/feature-hft-exchange/backend"
	"github.com/wurong98/feature-hft-exchange/config"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/models"
	"github.com/wurong98/feature-hft-exchange/ticker"
)

// Session owns one dashboard's presentation state: the leaderboard cache,
// the selected strategy's detail view and the live trade ticker. It is the
// single producer for all of them; renderers only read snapshots.
type Session struct {
	id     string
	cfg    *config.Config
	client *backend.Client
	ticks  *ticker.Store
	log    *logger.Log

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	strategies []models.Strategy
	polledAt   time.Time
	filter     string
	symbols    []string

	detail       Detail
	epoch        int64
	detailCancel context.CancelFunc
}

// Entry is one ranked leaderboard row. Rank is positional in the order the
// backend returned, assigned before any filter is applied.
type Entry struct {
	Rank     int
	Strategy models.Strategy
}

// HeaderStats aggregates the last good leaderboard for the dashboard header.
type HeaderStats struct {
	Strategies  int
	TotalPnl    float64
	TotalTrades int
	UpdatedAt   time.Time
}

// New creates a session bound to the given backend client and ticker store.
func New(cfg *config.Config, client *backend.Client, ticks *ticker.Store) *Session {
	return &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		client: client,
		ticks:  ticks,
		log:    logger.GetLogger(),
		detail: Detail{State: StateIdle},
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Start launches the leaderboard and trade-feed workers. The workers run
// until Stop is called or ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	log := s.log.WithComponent("session").WithFields(logger.Fields{"session_id": s.id})
	log.WithFields(logger.Fields{
		"leaderboard_interval": s.cfg.Poll.LeaderboardInterval,
		"ticker_interval":      s.cfg.Poll.TickerInterval,
		"feed_mode":            s.cfg.Feed.Mode,
	}).Info("starting session")

	s.loadSymbolUniverse()

	s.wg.Add(1)
	go s.leaderboardWorker()

	s.wg.Add(1)
	if s.cfg.Feed.Mode == "websocket" {
		go s.websocketFeedWorker()
	} else {
		go s.pollFeedWorker()
	}

	log.Info("session started successfully")
	return nil
}

// Stop tears down the detail view, cancels all workers and waits for them.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.Teardown()
	cancel()

	s.log.WithComponent("session").Info("stopping session")
	s.wg.Wait()
	s.log.WithComponent("session").Info("session stopped")
}

// loadSymbolUniverse fetches the backend's supported instruments once at
// startup. The universe drives the websocket subscription and sanity-checks
// the configured order book symbol; a failed fetch leaves it empty and only
// logs.
func (s *Session) loadSymbolUniverse() {
	log := s.log.WithComponent("session")

	symbols, err := s.client.SupportedSymbols(s.ctx)
	if err != nil {
		log.WithError(err).Warn("supported symbol fetch failed")
		return
	}

	s.mu.Lock()
	s.symbols = symbols
	s.mu.Unlock()

	log.WithFields(logger.Fields{"symbols": len(symbols)}).Info("loaded symbol universe")

	if s.cfg.Detail.OrderbookEnabled && s.cfg.Detail.OrderbookSymbol != "" && len(symbols) > 0 {
		found := false
		for _, sym := range symbols {
			if sym == s.cfg.Detail.OrderbookSymbol {
				found = true
				break
			}
		}
		if !found {
			log.WithFields(logger.Fields{"symbol": s.cfg.Detail.OrderbookSymbol}).
				Warn("configured order book symbol is not in the supported universe")
		}
	}
}

// Symbols returns the supported instrument universe fetched at startup.
func (s *Session) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// subscribeParams builds the websocket subscription list: one trade stream
// per supported instrument, or the plain trade stream when the universe is
// unknown.
func (s *Session) subscribeParams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.symbols) == 0 {
		return []string{"trade"}
	}
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, strings.ToLower(sym)+"@trade")
	}
	return params
}

func (s *Session) leaderboardWorker() {
	defer s.wg.Done()

	log := s.log.WithComponent("leaderboard").WithFields(logger.Fields{"worker": "leaderboard_poller"})
	log.Info("starting leaderboard worker")

	interval := s.cfg.Poll.LeaderboardInterval
	s.pollLeaderboard(log)

	now := time.Now()
	nextTick := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			s.pollLeaderboard(log)

			nextTick = start.Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// pollLeaderboard refreshes the cached list. A failed fetch keeps the
// previous list so the board never blanks on a transient error.
func (s *Session) pollLeaderboard(log *logger.Entry) {
	list, err := s.client.Leaderboard(s.ctx)
	if err != nil {
		log.WithError(err).Warn("leaderboard fetch failed, keeping previous list")
		return
	}

	s.mu.Lock()
	s.strategies = list
	s.polledAt = time.Now()
	s.mu.Unlock()

	logger.IncrementLeaderboardPoll(len(list))
	log.WithFields(logger.Fields{"strategies": len(list)}).Debug("leaderboard refreshed")
}

func (s *Session) pollFeedWorker() {
	defer s.wg.Done()

	log := s.log.WithComponent("feed").WithFields(logger.Fields{"worker": "ticker_poller"})
	log.Info("starting trade feed worker")

	interval := s.cfg.Poll.TickerInterval

	now := time.Now()
	nextTick := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()

			ticks, err := s.client.LatestTrades(s.ctx)
			if err != nil {
				log.WithError(err).Warn("trade feed poll failed")
			} else {
				ingested := 0
				for _, tick := range ticks {
					if s.ticks.Ingest(tick) {
						ingested++
					}
				}
				logger.IncrementTickerPoll(ingested)
			}

			nextTick = start.Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// websocketFeedWorker streams trades over the backend websocket, falling
// back to a fresh dial after the configured delay whenever the connection
// drops.
func (s *Session) websocketFeedWorker() {
	defer s.wg.Done()

	log := s.log.WithComponent("feed").WithFields(logger.Fields{"worker": "ticker_stream"})

	wsURL := s.cfg.Feed.WSURL
	if wsURL == "" {
		wsURL = s.client.WSEndpoint()
	}
	delay := s.cfg.Feed.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	log.WithFields(logger.Fields{"url": wsURL}).Info("starting trade stream worker")

	for {
		if s.ctx.Err() != nil {
			log.Info("worker stopped due to context cancellation")
			return
		}
		if err := s.streamTrades(wsURL, log); err != nil {
			log.WithError(err).Warn("trade stream disconnected, reconnecting")
		}
		select {
		case <-s.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-time.After(delay):
		}
	}
}

func (s *Session) streamTrades(wsURL string, log *logger.Entry) error {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	sub := map[string]any{"method": "SUBSCRIBE", "params": s.subscribeParams(), "id": 1}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()

	for {
		var tick models.TradeTick
		if err := conn.ReadJSON(&tick); err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		if s.ticks.Ingest(tick) {
			logger.IncrementTickerPoll(1)
		}
	}
}

// SetFilter sets the leaderboard filter query. Filtering is applied on read
// against the last good list and never triggers a fetch.
func (s *Session) SetFilter(query string) {
	s.mu.Lock()
	s.filter = strings.ToLower(strings.TrimSpace(query))
	s.mu.Unlock()
}

// Leaderboard returns the ranked, filtered board. Entries keep the rank they
// hold in the full server-provided order even when the filter hides rows.
func (s *Session) Leaderboard() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.strategies))
	for i, st := range s.strategies {
		if s.filter != "" &&
			!strings.Contains(strings.ToLower(st.Name), s.filter) &&
			!strings.Contains(strings.ToLower(st.Description), s.filter) {
			continue
		}
		entries = append(entries, Entry{Rank: i + 1, Strategy: st})
	}
	return entries
}

// HeaderStats summarizes the last good leaderboard.
func (s *Session) HeaderStats() HeaderStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := HeaderStats{Strategies: len(s.strategies), UpdatedAt: s.polledAt}
	for _, st := range s.strategies {
		stats.TotalPnl += st.TotalPnl.Float()
		stats.TotalTrades += st.TradeCount.Int()
	}
	return stats
}

// Ticks returns the current ticker buffer, newest first.
func (s *Session) Ticks() []models.TradeTick {
	return s.ticks.Snapshot()
}
