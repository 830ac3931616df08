package models

import (
	"encoding/json"
	"time"
)

// Side is a trade or position direction.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Strategy is one leaderboard entry. The API key doubles as the strategy's
// stable identity across polls. The stats endpoint returns the same shape
// plus an optional embedded error message.
type Strategy struct {
	APIKey         string `json:"apiKey"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	InitialBalance Number `json:"initialBalance"`
	Available      Number `json:"available"`
	Frozen         Number `json:"frozen"`
	TotalPnl       Number `json:"totalPnl"`
	ROI            Number `json:"roi"`
	TradeCount     Number `json:"tradeCount"`

	// Error is the backend-reported domain error, set on stats payloads for
	// e.g. an unknown API key.
	Error string `json:"error,omitempty"`
}

// Position is one open position. The set is replaced wholesale on refresh.
type Position struct {
	Symbol        string `json:"symbol"`
	Side          Side   `json:"side"`
	EntryPrice    Number `json:"entryPrice"`
	Size          Number `json:"size"`
	Leverage      Number `json:"leverage"`
	Margin        Number `json:"margin"`
	UnrealizedPnl Number `json:"unrealizedPnl"`
}

// Order is one resting order.
type Order struct {
	OrderID  int64  `json:"orderId"`
	Symbol   string `json:"symbol"`
	Side     Side   `json:"side"`
	Price    Number `json:"price"`
	Quantity Number `json:"quantity"`
	Leverage Number `json:"leverage"`
	Status   string `json:"status"`
}

// Trade is one historical fill. Older backend builds emit "timestamp" and
// "qty" where newer ones emit "time" and "quantity"; both are accepted.
type Trade struct {
	Time     Timestamp
	Symbol   string
	Side     Side
	Price    Number
	Quantity Number
	QuoteQty Number
	Fee      Number
}

func (t *Trade) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time      Timestamp `json:"time"`
		Timestamp Timestamp `json:"timestamp"`
		Symbol    string    `json:"symbol"`
		Side      Side      `json:"side"`
		Price     Number    `json:"price"`
		Qty       Number    `json:"qty"`
		Quantity  Number    `json:"quantity"`
		QuoteQty  Number    `json:"quoteQty"`
		Fee       Number    `json:"fee"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Time = raw.Time
	if t.Time.IsZero() {
		t.Time = raw.Timestamp
	}
	t.Symbol = raw.Symbol
	t.Side = raw.Side
	t.Price = raw.Price
	t.Quantity = raw.Qty
	if !t.Quantity.IsSet() {
		t.Quantity = raw.Quantity
	}
	t.QuoteQty = raw.QuoteQty
	t.Fee = raw.Fee
	return nil
}

func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time     Timestamp `json:"time"`
		Symbol   string    `json:"symbol"`
		Side     Side      `json:"side"`
		Price    Number    `json:"price"`
		Quantity Number    `json:"quantity"`
		QuoteQty Number    `json:"quoteQty"`
		Fee      Number    `json:"fee"`
	}{t.Time, t.Symbol, t.Side, t.Price, t.Quantity, t.QuoteQty, t.Fee})
}

// PnLSnapshot is one point of a strategy's cumulative PnL series.
type PnLSnapshot struct {
	SnapshotAt Timestamp `json:"snapshotAt"`
	TotalPnl   Number    `json:"totalPnl"`
}

// TradeTick is one reported market trade in the feed's wire shape
// (single-letter Binance-style keys).
type TradeTick struct {
	Symbol       string    `json:"s"`
	Price        Number    `json:"p"`
	Quantity     Number    `json:"q"`
	TradeTime    Timestamp `json:"T"`
	BuyerIsMaker bool      `json:"m"`
}

// Side reports the aggressor side. The feed flags the maker: when the buyer
// is the maker the aggressor sold.
func (t TradeTick) Side() Side {
	if t.BuyerIsMaker {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether the tick carries enough to display. Ticks without a
// symbol or price are malformed telemetry and get discarded.
func (t TradeTick) Valid() bool {
	return t.Symbol != "" && t.Price.IsSet()
}

// EventTime is the tick's event time, falling back to zero when the feed
// omitted it.
func (t TradeTick) EventTime() time.Time {
	return t.TradeTime.Time
}

// BookLevel is one price level of the order book panel.
type BookLevel struct {
	Price    Number `json:"price"`
	Quantity Number `json:"quantity"`
}

// OrderBook is the optional order-book panel payload.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BestAsk returns the lowest ask, if any.
func (b OrderBook) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// StrategyView is the merged per-strategy view model. All slices come from
// the same fetch round except where the fast refresh path intentionally
// leaves Stats from the initial round.
type StrategyView struct {
	Stats     Strategy
	Positions []Position
	Orders    []Order
	Trades    []Trade
	Snapshots []PnLSnapshot
	Book      OrderBook
	FetchedAt time.Time
}
