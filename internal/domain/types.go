// Package domain holds the typed records exchanged between the brokerage
// adapter and the request-routing layer. Every value is a request-scoped
// snapshot; nothing here is cached or persisted.
package domain

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// TimeInForce governs how long an order stays active before it expires.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceOPG TimeInForce = "opg"
	TimeInForceCLS TimeInForce = "cls"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// OrderStatus mirrors the brokerage's order lifecycle states.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPendingNew      OrderStatus = "pending_new"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusDoneForDay      OrderStatus = "done_for_day"
	OrderStatusPendingCancel   OrderStatus = "pending_cancel"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusReplaced        OrderStatus = "replaced"
)

// Terminal reports whether no further transition can happen from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected,
		OrderStatusExpired, OrderStatusReplaced:
		return true
	}
	return false
}

// PositionSide is long or short.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Timeframe is the bar aggregation interval.
type Timeframe string

const (
	TimeframeMinute Timeframe = "Min"
	TimeframeHour   Timeframe = "Hour"
	TimeframeDay    Timeframe = "Day"
	TimeframeWeek   Timeframe = "Week"
	TimeframeMonth  Timeframe = "Month"
)

// Timeframes lists the accepted bar intervals in ascending order.
var Timeframes = []Timeframe{
	TimeframeMinute, TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeMonth,
}

// ParseTimeframe maps a user supplied interval name onto a Timeframe. It is
// case-insensitive and accepts a few common aliases ("minute", "1h", "1d").
func ParseTimeframe(s string) (Timeframe, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "minute", "1min", "1m":
		return TimeframeMinute, true
	case "hour", "1hour", "1h":
		return TimeframeHour, true
	case "day", "1day", "1d":
		return TimeframeDay, true
	case "week", "1week", "1w":
		return TimeframeWeek, true
	case "month", "1month":
		return TimeframeMonth, true
	}
	return "", false
}

// Lookback returns how far back from now bars are requested for tf.
func (tf Timeframe) Lookback() time.Duration {
	switch tf {
	case TimeframeMinute:
		return 6 * time.Hour
	case TimeframeHour:
		return 7 * 24 * time.Hour
	case TimeframeWeek:
		return 26 * 7 * 24 * time.Hour
	case TimeframeMonth:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ---------------------------------------------------------------------------
// Account and positions
// ---------------------------------------------------------------------------

// Account is a snapshot of the brokerage account's balances and flags.
type Account struct {
	ID                   string  `json:"id"`
	AccountNumber        string  `json:"account_number"`
	Status               string  `json:"status"`
	Currency             string  `json:"currency"`
	Cash                 float64 `json:"cash"`
	BuyingPower          float64 `json:"buying_power"`
	Equity               float64 `json:"equity"`
	LastEquity           float64 `json:"last_equity"`
	PatternDayTrader     bool    `json:"pattern_day_trader"`
	DaytradeCount        int64   `json:"daytrade_count"`
	TradingBlocked       bool    `json:"trading_blocked"`
	TransfersBlocked     bool    `json:"transfers_blocked"`
	AccountBlocked       bool    `json:"account_blocked"`
	TradeSuspendedByUser bool    `json:"trade_suspended_by_user"`
}

// Position is an open holding in a single symbol. Qty is negative for shorts.
type Position struct {
	Symbol         string       `json:"symbol"`
	Exchange       string       `json:"exchange,omitempty"`
	AssetClass     string       `json:"asset_class,omitempty"`
	Side           PositionSide `json:"side"`
	Qty            float64      `json:"qty"`
	AvgEntryPrice  float64      `json:"avg_entry_price"`
	CurrentPrice   float64      `json:"current_price"`
	LastdayPrice   float64      `json:"lastday_price"`
	MarketValue    float64      `json:"market_value"`
	CostBasis      float64      `json:"cost_basis"`
	UnrealizedPL   float64      `json:"unrealized_pl"`
	UnrealizedPLPC float64      `json:"unrealized_plpc"`
	ChangeToday    float64      `json:"change_today"`
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// Order is the brokerage's view of a submitted order.
type Order struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	TimeInForce    TimeInForce `json:"time_in_force"`
	Qty            float64     `json:"qty"`
	FilledQty      float64     `json:"filled_qty"`
	FilledAvgPrice float64     `json:"filled_avg_price,omitempty"`
	LimitPrice     float64     `json:"limit_price,omitempty"`
	StopPrice      float64     `json:"stop_price,omitempty"`
	ExtendedHours  bool        `json:"extended_hours"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// OrderRequest is a validated order command ready for submission.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	TimeInForce   TimeInForce
	Qty           float64
	LimitPrice    float64
	StopPrice     float64
	ExtendedHours bool
	ClientOrderID string
}

// ClosePositionRequest selects how much of a position to close. A zero Qty
// and zero Percentage close the whole position.
type ClosePositionRequest struct {
	Qty        float64
	Percentage float64
}

// ---------------------------------------------------------------------------
// Assets and market data
// ---------------------------------------------------------------------------

// Asset describes a tradable instrument.
type Asset struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Exchange     string   `json:"exchange"`
	Class        string   `json:"class"`
	Status       string   `json:"status"`
	Tradable     bool     `json:"tradable"`
	Fractionable bool     `json:"fractionable"`
	Shortable    bool     `json:"shortable"`
	Marginable   bool     `json:"marginable"`
	EasyToBorrow bool     `json:"easy_to_borrow"`
	Attributes   []string `json:"attributes,omitempty"`
}

// AssetFilter narrows an asset listing. Empty fields are not applied.
type AssetFilter struct {
	Status string
	Class  string
}

// Quote is the latest bid/ask snapshot for a symbol.
type Quote struct {
	Symbol      string    `json:"symbol"`
	BidPrice    float64   `json:"bid_price"`
	BidSize     uint32    `json:"bid_size"`
	BidExchange string    `json:"bid_exchange"`
	AskPrice    float64   `json:"ask_price"`
	AskSize     uint32    `json:"ask_size"`
	AskExchange string    `json:"ask_exchange"`
	Conditions  []string  `json:"conditions,omitempty"`
	Tape        string    `json:"tape,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Spread returns ask minus bid.
func (q Quote) Spread() float64 {
	return q.AskPrice - q.BidPrice
}

// Bar is a single OHLCV interval.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// BarsRequest selects bars for one symbol over [Start, End].
type BarsRequest struct {
	Symbol    string
	Timeframe Timeframe
	Start     time.Time
	End       time.Time
}

// Clock reports whether the market is open and the next session bounds.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// ---------------------------------------------------------------------------
// Derived views
// ---------------------------------------------------------------------------

// PositionAllocation is one position's share of the portfolio.
type PositionAllocation struct {
	Position      Position `json:"position"`
	AllocationPct float64  `json:"allocation_pct"`
}

// PortfolioSummary aggregates the account and all positions. Percentages are
// fractions (1.0 == 100%).
type PortfolioSummary struct {
	Account          Account              `json:"account"`
	TotalMarketValue float64              `json:"total_market_value"`
	PositionsValue   float64              `json:"positions_value"`
	CashPct          float64              `json:"cash_pct"`
	InvestedPct      float64              `json:"invested_pct"`
	UnrealizedPL     float64              `json:"unrealized_pl"`
	UnrealizedPLPct  float64              `json:"unrealized_pl_pct"`
	CostBasis        float64              `json:"cost_basis"`
	Positions        []PositionAllocation `json:"positions"`
}

// AssetPage is a bounded slice of an asset listing.
type AssetPage struct {
	Total  int     `json:"total"`
	Assets []Asset `json:"assets"`
}

// CancelResult reports an accepted cancellation request.
type CancelResult struct {
	OrderID        string      `json:"order_id"`
	Symbol         string      `json:"symbol"`
	PreviousStatus OrderStatus `json:"previous_status"`
}
