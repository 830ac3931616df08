package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wurong98/feature-hft-exchange/backend"
	"github.com/wurong98/feature-hft-exchange/chart"
	"github.com/wurong98/feature-hft-exchange/derive"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/models"
)

// State is the detail aggregator's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
	StateFailed     State = "failed"
)

// Detail is the selected strategy's view model plus its derived values.
// All slices belong to one fetch round; the fast refresh path leaves Stats
// from the initial round by design of the backend's update cadence.
type Detail struct {
	State   State
	APIKey  string
	View    models.StrategyView
	Metrics derive.Metrics
	Chart   chart.Series
	Err     string
}

// Detail returns a copy of the current detail view model.
func (s *Session) Detail() Detail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detail
}

// Select switches the detail view to the given strategy. Selecting the
// strategy that is already loading or loaded is a no-op; anything else
// supersedes the previous selection, cancels its refresh loop and starts a
// fresh fetch round.
func (s *Session) Select(apiKey string) {
	s.mu.Lock()
	if apiKey == s.detail.APIKey {
		switch s.detail.State {
		case StateLoading, StateReady, StateRefreshing:
			s.mu.Unlock()
			return
		}
	}

	s.epoch++
	epoch := s.epoch
	if s.detailCancel != nil {
		s.detailCancel()
	}

	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s.detailCancel = cancel
	s.detail = Detail{State: StateLoading, APIKey: apiKey}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.detailWorker(ctx, epoch, apiKey)
}

// Teardown clears the selection and cancels any in-flight round. It is
// idempotent; results of a round that was in flight are discarded on arrival.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.epoch++
	if s.detailCancel != nil {
		s.detailCancel()
		s.detailCancel = nil
	}
	s.detail = Detail{State: StateIdle}
	s.mu.Unlock()
}

func (s *Session) detailWorker(ctx context.Context, epoch int64, apiKey string) {
	defer s.wg.Done()

	log := s.log.WithComponent("detail").WithFields(logger.Fields{"api_key": apiKey})
	log.Info("starting detail round")

	view, err := s.fetchRound(ctx, apiKey, true)
	if !s.commitInitial(epoch, view, err, log) {
		return
	}

	interval := s.cfg.Poll.DetailRefreshInterval

	now := time.Now()
	nextTick := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("detail refresh loop cancelled")
			return
		case <-timer.C:
			start := time.Now()

			if !s.markRefreshing(epoch) {
				return
			}
			fresh, err := s.fetchRound(ctx, apiKey, false)
			if err != nil {
				log.WithError(err).Warn("detail refresh failed, keeping stale view")
				logger.IncrementRefreshMiss()
				s.settle(epoch)
			} else {
				s.commitRefresh(epoch, fresh)
			}

			nextTick = start.Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// commitInitial publishes the first round's result. It returns false when the
// refresh loop must not be armed: the round was superseded or it failed.
func (s *Session) commitInitial(epoch int64, view models.StrategyView, err error, log *logger.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		log.Debug("discarding superseded detail round")
		return false
	}

	if err != nil {
		var apiErr *backend.APIError
		msg := "failed to load strategy"
		if errors.As(err, &apiErr) {
			msg = apiErr.Msg
		}
		log.WithError(err).Error("initial detail round failed")
		s.detail.State = StateFailed
		s.detail.Err = msg
		return false
	}

	s.detail.State = StateReady
	s.detail.Err = ""
	s.applyView(view)
	log.WithFields(logger.Fields{
		"positions": len(view.Positions),
		"orders":    len(view.Orders),
		"trades":    len(view.Trades),
		"snapshots": len(view.Snapshots),
	}).Info("detail round completed")
	return true
}

// markRefreshing flips Ready to Refreshing, or reports the round superseded.
func (s *Session) markRefreshing(epoch int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.detail.State = StateRefreshing
	return true
}

// settle returns a Refreshing view to Ready after a swallowed refresh miss.
func (s *Session) settle(epoch int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.detail.State = StateReady
}

// commitRefresh merges a fast-path round into the current view. Stats and
// the order book are kept from the initial round; the list resources are
// replaced wholesale.
func (s *Session) commitRefresh(epoch int64, fresh models.StrategyView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}

	fresh.Stats = s.detail.View.Stats
	fresh.Book = s.detail.View.Book
	s.detail.State = StateReady
	s.applyView(fresh)
}

// applyView installs a round's view and recomputes the derived values.
// Callers hold s.mu.
func (s *Session) applyView(view models.StrategyView) {
	s.detail.View = view
	s.detail.Metrics = derive.Compute(view.Stats, view.Positions)

	geo := chart.Geometry{
		Width:   s.cfg.Chart.Width,
		Height:  s.cfg.Chart.Height,
		Padding: s.cfg.Chart.Padding,
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		geo = chart.DefaultGeometry
	}
	s.detail.Chart = chart.Project(view.Snapshots, geo)

	logger.IncrementDetailRound(len(view.Positions) + len(view.Orders) + len(view.Trades) + len(view.Snapshots))
}

// fetchRound issues one round of concurrent resource fetches for a strategy.
// The round is atomic: any resource failing fails the whole round and none of
// it is rendered. The order book is supplemental and its failure only logs.
func (s *Session) fetchRound(ctx context.Context, apiKey string, includeStats bool) (models.StrategyView, error) {
	var (
		view                                      models.StrategyView
		statsErr, posErr, ordErr, trdErr, snapErr error
	)

	wg := &sync.WaitGroup{}

	if includeStats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view.Stats, statsErr = s.client.StrategyStats(ctx, apiKey)
		}()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		view.Positions, posErr = s.client.Positions(ctx, apiKey)
	}()
	go func() {
		defer wg.Done()
		view.Orders, ordErr = s.client.Orders(ctx, apiKey)
	}()
	go func() {
		defer wg.Done()
		view.Trades, trdErr = s.client.Trades(ctx, apiKey)
	}()
	go func() {
		defer wg.Done()
		view.Snapshots, snapErr = s.client.Snapshots(ctx, apiKey, s.cfg.Poll.SnapshotLimit)
	}()

	if includeStats && s.cfg.Detail.OrderbookEnabled && s.cfg.Detail.OrderbookSymbol != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			book, err := s.client.OrderBook(ctx, s.cfg.Detail.OrderbookSymbol)
			if err != nil {
				s.log.WithComponent("detail").WithError(err).Warn("order book fetch failed")
				return
			}
			view.Book = book
		}()
	}

	wg.Wait()

	for _, err := range []error{statsErr, posErr, ordErr, trdErr, snapErr} {
		if err != nil {
			return view, err
		}
	}

	sort.SliceStable(view.Trades, func(i, j int) bool {
		return view.Trades[i].Time.After(view.Trades[j].Time.Time)
	})
	if limit := s.cfg.Poll.TradeDisplayLimit; limit > 0 && len(view.Trades) > limit {
		view.Trades = view.Trades[:limit]
	}

	view.FetchedAt = time.Now()
	return view, nil
}
