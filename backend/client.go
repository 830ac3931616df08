package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wurong98/feature-hft-exchange/config"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/models"
)

// APIError is a domain error reported by the backend inside a response body,
// as opposed to a transport or HTTP failure.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("backend error: %s", e.Msg)
}

// Client fetches dashboard resources from the trading backend over HTTP.
// All requests share one pooled transport and one rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// NewClient builds a Client from the backend section of the configuration.
func NewClient(cfg *config.Config) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Backend.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Backend.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Backend.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	agent := cfg.Backend.UserAgent
	if agent == "" {
		agent = fmt.Sprintf("%s/%s", cfg.Tradedeck.Name, cfg.Tradedeck.Version)
	}

	rps := cfg.Backend.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Backend.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}

	client := &Client{
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: userAgentTransport{agent: agent, base: transport},
			Timeout:   cfg.Backend.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}

	log.WithComponent("backend").WithFields(logger.Fields{
		"base_url":            client.baseURL,
		"timeout":             cfg.Backend.Timeout,
		"max_idle_conns":      cfg.Backend.ConnectionPool.MaxIdleConns,
		"max_conns_per_host":  cfg.Backend.ConnectionPool.MaxConnsPerHost,
		"requests_per_second": rps,
	}).Info("backend client initialized")

	return client
}

// WSEndpoint derives the websocket trade-stream URL from the base URL.
func (c *Client) WSEndpoint() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if apiErr := decodeAPIError(body); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return body, nil
}

// decodeAPIError extracts a backend domain error from an error body. The
// backend emits either {"code":..,"msg":..} or {"error":".."}.
func decodeAPIError(body []byte) *APIError {
	var coded APIError
	if err := json.Unmarshal(body, &coded); err == nil && coded.Msg != "" {
		return &coded
	}
	var wrapped struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != "" {
		return &APIError{Msg: wrapped.Error}
	}
	return nil
}

// listOf decodes a JSON array into a slice. Anything other than an array,
// including null and malformed payloads, yields an empty slice so callers can
// render an empty panel instead of failing the round.
func listOf[T any](data []byte) []T {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

// Leaderboard fetches the ranked strategy list.
func (c *Client) Leaderboard(ctx context.Context) ([]models.Strategy, error) {
	body, err := c.get(ctx, "/api/dashboard/leaderboard", nil)
	if err != nil {
		return nil, err
	}
	return listOf[models.Strategy](body), nil
}

// StrategyStats fetches one strategy's account statistics. A backend-embedded
// error message is surfaced as an *APIError alongside the decoded payload.
func (c *Client) StrategyStats(ctx context.Context, apiKey string) (models.Strategy, error) {
	body, err := c.get(ctx, "/api/dashboard/strategy/"+url.PathEscape(apiKey), nil)
	if err != nil {
		return models.Strategy{}, err
	}
	var stats models.Strategy
	if err := json.Unmarshal(body, &stats); err != nil {
		return models.Strategy{}, fmt.Errorf("failed to decode strategy stats: %w", err)
	}
	if stats.Error != "" {
		return stats, &APIError{Msg: stats.Error}
	}
	return stats, nil
}

// Positions fetches a strategy's open positions.
func (c *Client) Positions(ctx context.Context, apiKey string) ([]models.Position, error) {
	body, err := c.get(ctx, "/api/dashboard/strategy/"+url.PathEscape(apiKey)+"/positions", nil)
	if err != nil {
		return nil, err
	}
	return listOf[models.Position](body), nil
}

// Orders fetches a strategy's resting orders.
func (c *Client) Orders(ctx context.Context, apiKey string) ([]models.Order, error) {
	body, err := c.get(ctx, "/api/dashboard/strategy/"+url.PathEscape(apiKey)+"/orders", nil)
	if err != nil {
		return nil, err
	}
	return listOf[models.Order](body), nil
}

// Trades fetches a strategy's historical fills.
func (c *Client) Trades(ctx context.Context, apiKey string) ([]models.Trade, error) {
	body, err := c.get(ctx, "/api/dashboard/strategy/"+url.PathEscape(apiKey)+"/trades", nil)
	if err != nil {
		return nil, err
	}
	return listOf[models.Trade](body), nil
}

// Snapshots fetches up to limit points of a strategy's PnL series.
func (c *Client) Snapshots(ctx context.Context, apiKey string, limit int) ([]models.PnLSnapshot, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	body, err := c.get(ctx, "/api/dashboard/strategy/"+url.PathEscape(apiKey)+"/snapshots", query)
	if err != nil {
		return nil, err
	}
	return listOf[models.PnLSnapshot](body), nil
}

// OrderBook fetches the current book for one symbol.
func (c *Client) OrderBook(ctx context.Context, symbol string) (models.OrderBook, error) {
	body, err := c.get(ctx, "/api/dashboard/orderbook/"+url.PathEscape(symbol), nil)
	if err != nil {
		return models.OrderBook{}, err
	}
	var book models.OrderBook
	if err := json.Unmarshal(body, &book); err != nil {
		return models.OrderBook{}, fmt.Errorf("failed to decode order book: %w", err)
	}
	return book, nil
}

// LatestTrades fetches the most recent market trade per symbol.
func (c *Client) LatestTrades(ctx context.Context) (map[string]models.TradeTick, error) {
	body, err := c.get(ctx, "/api/dashboard/market/trades", nil)
	if err != nil {
		return nil, err
	}
	ticks := map[string]models.TradeTick{}
	if err := json.Unmarshal(body, &ticks); err != nil {
		return map[string]models.TradeTick{}, nil
	}
	return ticks, nil
}

// SupportedSymbols fetches the backend's configured symbol universe.
func (c *Client) SupportedSymbols(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/dashboard/config/symbols", nil)
	if err != nil {
		return nil, err
	}
	return ParseSymbols(string(body)), nil
}

// ParseSymbols decodes the symbol universe from either of the backend's two
// encodings: a JSON string list or a comma-separated string, optionally
// JSON-quoted. Blank entries are dropped.
func ParseSymbols(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			out := make([]string, 0, len(list))
			for _, s := range list {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
		return []string{}
	}

	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		trimmed = quoted
	}

	out := []string{}
	for _, s := range strings.Split(trimmed, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
