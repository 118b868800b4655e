package broker

import (
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"brokerdesk/internal/domain"
)

// ---------------------------------------------------------------------------
// SDK -> domain
// ---------------------------------------------------------------------------

func toAccount(a *alpaca.Account) domain.Account {
	return domain.Account{
		ID:                   a.ID,
		AccountNumber:        a.AccountNumber,
		Status:               a.Status,
		Currency:             a.Currency,
		Cash:                 a.Cash.InexactFloat64(),
		BuyingPower:          a.BuyingPower.InexactFloat64(),
		Equity:               a.Equity.InexactFloat64(),
		LastEquity:           a.LastEquity.InexactFloat64(),
		PatternDayTrader:     a.PatternDayTrader,
		DaytradeCount:        a.DaytradeCount,
		TradingBlocked:       a.TradingBlocked,
		TransfersBlocked:     a.TransfersBlocked,
		AccountBlocked:       a.AccountBlocked,
		TradeSuspendedByUser: a.TradeSuspendedByUser,
	}
}

func toPosition(p *alpaca.Position) domain.Position {
	side := domain.PositionSide(strings.ToLower(p.Side))
	qty := p.Qty.InexactFloat64()
	if side == domain.PositionSideShort && qty > 0 {
		qty = -qty
	}
	return domain.Position{
		Symbol:         strings.ToUpper(p.Symbol),
		Exchange:       p.Exchange,
		AssetClass:     string(p.AssetClass),
		Side:           side,
		Qty:            qty,
		AvgEntryPrice:  p.AvgEntryPrice.InexactFloat64(),
		CurrentPrice:   floatOf(p.CurrentPrice),
		LastdayPrice:   floatOf(p.LastdayPrice),
		MarketValue:    floatOf(p.MarketValue),
		CostBasis:      p.CostBasis.InexactFloat64(),
		UnrealizedPL:   floatOf(p.UnrealizedPL),
		UnrealizedPLPC: floatOf(p.UnrealizedPLPC),
		ChangeToday:    floatOf(p.ChangeToday),
	}
}

func toOrder(o *alpaca.Order) domain.Order {
	return domain.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         strings.ToUpper(o.Symbol),
		Side:           domain.OrderSide(o.Side),
		Type:           domain.OrderType(o.Type),
		TimeInForce:    domain.TimeInForce(o.TimeInForce),
		Qty:            floatOf(o.Qty),
		FilledQty:      o.FilledQty.InexactFloat64(),
		FilledAvgPrice: floatOf(o.FilledAvgPrice),
		LimitPrice:     floatOf(o.LimitPrice),
		StopPrice:      floatOf(o.StopPrice),
		ExtendedHours:  o.ExtendedHours,
		Status:         domain.OrderStatus(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toAsset(a *alpaca.Asset) domain.Asset {
	return domain.Asset{
		ID:           a.ID,
		Symbol:       strings.ToUpper(a.Symbol),
		Name:         a.Name,
		Exchange:     a.Exchange,
		Class:        string(a.Class),
		Status:       string(a.Status),
		Tradable:     a.Tradable,
		Fractionable: a.Fractionable,
		Shortable:    a.Shortable,
		Marginable:   a.Marginable,
		EasyToBorrow: a.EasyToBorrow,
		Attributes:   a.Attributes,
	}
}

func toQuote(symbol string, q *marketdata.Quote) domain.Quote {
	return domain.Quote{
		Symbol:      strings.ToUpper(symbol),
		BidPrice:    q.BidPrice,
		BidSize:     q.BidSize,
		BidExchange: q.BidExchange,
		AskPrice:    q.AskPrice,
		AskSize:     q.AskSize,
		AskExchange: q.AskExchange,
		Conditions:  q.Conditions,
		Tape:        q.Tape,
		Timestamp:   q.Timestamp,
	}
}

func toBar(symbol string, b *marketdata.Bar) domain.Bar {
	return domain.Bar{
		Symbol:     strings.ToUpper(symbol),
		Timestamp:  b.Timestamp,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     int64(b.Volume),
		TradeCount: int64(b.TradeCount),
		VWAP:       b.VWAP,
	}
}

// ---------------------------------------------------------------------------
// domain -> SDK
// ---------------------------------------------------------------------------

func toPlaceOrderRequest(req domain.OrderRequest) alpaca.PlaceOrderRequest {
	return alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           decimalOf(req.Qty),
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.OrderType(req.Type),
		TimeInForce:   alpaca.TimeInForce(req.TimeInForce),
		LimitPrice:    decimalOf(req.LimitPrice),
		StopPrice:     decimalOf(req.StopPrice),
		ExtendedHours: req.ExtendedHours,
		ClientOrderID: req.ClientOrderID,
	}
}

func toClosePositionRequest(req domain.ClosePositionRequest) alpaca.ClosePositionRequest {
	var out alpaca.ClosePositionRequest
	if req.Qty > 0 {
		out.Qty = decimal.NewFromFloat(req.Qty)
	} else if req.Percentage > 0 {
		out.Percentage = decimal.NewFromFloat(req.Percentage)
	}
	return out
}

func toTimeFrame(tf domain.Timeframe) marketdata.TimeFrame {
	switch tf {
	case domain.TimeframeMinute:
		return marketdata.OneMin
	case domain.TimeframeHour:
		return marketdata.OneHour
	case domain.TimeframeWeek:
		return marketdata.NewTimeFrame(1, marketdata.Week)
	case domain.TimeframeMonth:
		return marketdata.NewTimeFrame(1, marketdata.Month)
	default:
		return marketdata.OneDay
	}
}

// floatOf reads an optional decimal; the API sends null for fields such as
// market value outside trading hours.
func floatOf(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}

// decimalOf returns nil for zero so optional prices are omitted.
func decimalOf(f float64) *decimal.Decimal {
	if f == 0 {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}
