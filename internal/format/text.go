package format

import (
	"fmt"
	"strings"
	"time"

	"brokerdesk/internal/domain"
)

const tsLayout = "2006-01-02 15:04:05 MST"

func money(f float64) string {
	if f < 0 {
		return fmt.Sprintf("-$%.2f", -f)
	}
	return fmt.Sprintf("$%.2f", f)
}

func signed(f float64) string {
	if f >= 0 {
		return "+" + money(f)
	}
	return money(f)
}

func pct(frac float64) string {
	return fmt.Sprintf("%.2f%%", frac*100)
}

func signedPct(frac float64) string {
	if frac >= 0 {
		return "+" + pct(frac)
	}
	return pct(frac)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(tsLayout)
}

func qty(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Account renders the account summary block.
func Account(a domain.Account) string {
	var b strings.Builder
	b.WriteString("Account Summary:\n")
	fmt.Fprintf(&b, "Account: %s\n", a.AccountNumber)
	fmt.Fprintf(&b, "Status: %s\n", a.Status)
	fmt.Fprintf(&b, "Currency: %s\n", a.Currency)
	fmt.Fprintf(&b, "Cash: %s\n", money(a.Cash))
	fmt.Fprintf(&b, "Buying Power: %s\n", money(a.BuyingPower))
	fmt.Fprintf(&b, "Equity: %s\n", money(a.Equity))
	fmt.Fprintf(&b, "Daytrade Count: %d\n", a.DaytradeCount)
	fmt.Fprintf(&b, "Pattern Day Trader: %t\n", a.PatternDayTrader)
	if a.TradingBlocked || a.AccountBlocked || a.TradeSuspendedByUser {
		fmt.Fprintf(&b, "Trading Blocked: %t, Account Blocked: %t, Suspended By User: %t\n",
			a.TradingBlocked, a.AccountBlocked, a.TradeSuspendedByUser)
	}
	return b.String()
}

// Position renders a single position.
func Position(p domain.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Position (%s):\n", p.Symbol, strings.ToUpper(string(p.Side)))
	fmt.Fprintf(&b, "Quantity: %s\n", qty(p.Qty))
	fmt.Fprintf(&b, "Avg Entry: %s\n", money(p.AvgEntryPrice))
	fmt.Fprintf(&b, "Current Price: %s\n", money(p.CurrentPrice))
	fmt.Fprintf(&b, "Market Value: %s\n", money(p.MarketValue))
	fmt.Fprintf(&b, "Cost Basis: %s\n", money(p.CostBasis))
	fmt.Fprintf(&b, "Unrealized P/L: %s (%s)\n", signed(p.UnrealizedPL), signedPct(p.UnrealizedPLPC))
	fmt.Fprintf(&b, "Today's Change: %s\n", signedPct(p.ChangeToday))
	return b.String()
}

// Positions renders the open positions listing.
func Positions(positions []domain.Position) string {
	if len(positions) == 0 {
		return "No open positions found."
	}
	var b strings.Builder
	b.WriteString("Current Positions:\n\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "%s (%s):\n", p.Symbol, strings.ToUpper(string(p.Side)))
		fmt.Fprintf(&b, "  Quantity: %s\n", qty(p.Qty))
		fmt.Fprintf(&b, "  Avg Entry: %s\n", money(p.AvgEntryPrice))
		fmt.Fprintf(&b, "  Current Price: %s\n", money(p.CurrentPrice))
		fmt.Fprintf(&b, "  Market Value: %s\n", money(p.MarketValue))
		fmt.Fprintf(&b, "  Unrealized P/L: %s (%s)\n\n", signed(p.UnrealizedPL), signedPct(p.UnrealizedPLPC))
	}
	return b.String()
}

var orderTitles = map[domain.OrderType]string{
	domain.OrderTypeMarket:    "Market",
	domain.OrderTypeLimit:     "Limit",
	domain.OrderTypeStop:      "Stop",
	domain.OrderTypeStopLimit: "Stop-limit",
}

// OrderPlaced renders the confirmation for a submitted order.
func OrderPlaced(o domain.Order) string {
	title, ok := orderTitles[o.Type]
	if !ok {
		title = "Order"
	}
	return title + " order placed successfully!\n\n" + Order(o)
}

// Order renders one order's details.
func Order(o domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order ID: %s\n", o.ID)
	fmt.Fprintf(&b, "Client Order ID: %s\n", o.ClientOrderID)
	fmt.Fprintf(&b, "Symbol: %s\n", o.Symbol)
	fmt.Fprintf(&b, "Side: %s\n", o.Side)
	fmt.Fprintf(&b, "Type: %s\n", o.Type)
	fmt.Fprintf(&b, "Quantity: %s\n", qty(o.Qty))
	if o.FilledQty > 0 {
		fmt.Fprintf(&b, "Filled: %s @ %s\n", qty(o.FilledQty), money(o.FilledAvgPrice))
	}
	if o.LimitPrice > 0 {
		fmt.Fprintf(&b, "Limit Price: %s\n", money(o.LimitPrice))
	}
	if o.StopPrice > 0 {
		fmt.Fprintf(&b, "Stop Price: %s\n", money(o.StopPrice))
	}
	fmt.Fprintf(&b, "Time in Force: %s\n", o.TimeInForce)
	if o.ExtendedHours {
		b.WriteString("Extended Hours: true\n")
	}
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	fmt.Fprintf(&b, "Created At: %s\n", ts(o.CreatedAt))
	return b.String()
}

// Orders renders a recent-orders listing.
func Orders(orders []domain.Order) string {
	if len(orders) == 0 {
		return "No recent orders found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent Orders (last %d):\n\n", len(orders))
	for _, o := range orders {
		b.WriteString(Order(o))
		b.WriteString("\n")
	}
	return b.String()
}

// Cancel renders an accepted cancellation.
func Cancel(r domain.CancelResult) string {
	return fmt.Sprintf("Order %s (%s, was %s) has been submitted for cancellation.\n",
		r.OrderID, r.Symbol, r.PreviousStatus)
}

// Closed renders the order that closes a position.
func Closed(o domain.Order) string {
	return fmt.Sprintf("Closing order submitted for %s.\n\n", o.Symbol) + Order(o)
}

// Portfolio renders the portfolio summary with per-position allocation.
func Portfolio(s domain.PortfolioSummary) string {
	var b strings.Builder
	b.WriteString("Portfolio Summary\n=================\n\n")
	b.WriteString("Account Information:\n-------------------\n")
	fmt.Fprintf(&b, "Status: %s\n", s.Account.Status)
	fmt.Fprintf(&b, "Cash: %s (%s)\n", money(s.Account.Cash), pct(s.CashPct))
	fmt.Fprintf(&b, "Positions Value: %s (%s)\n", money(s.PositionsValue), pct(s.InvestedPct))
	fmt.Fprintf(&b, "Total Market Value: %s\n", money(s.TotalMarketValue))
	fmt.Fprintf(&b, "Buying Power: %s\n", money(s.Account.BuyingPower))
	fmt.Fprintf(&b, "Equity: %s\n\n", money(s.Account.Equity))

	if len(s.Positions) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Open Positions (%d):\n-------------------\n", len(s.Positions))
	for _, a := range s.Positions {
		p := a.Position
		fmt.Fprintf(&b, "%s (%s):\n", p.Symbol, strings.ToUpper(string(p.Side)))
		fmt.Fprintf(&b, "  Quantity: %s\n", qty(p.Qty))
		fmt.Fprintf(&b, "  Avg Entry: %s\n", money(p.AvgEntryPrice))
		fmt.Fprintf(&b, "  Current: %s\n", money(p.CurrentPrice))
		fmt.Fprintf(&b, "  Value: %s (%s of portfolio)\n", money(p.MarketValue), pct(a.AllocationPct))
		fmt.Fprintf(&b, "  P/L: %s (%s)\n\n", signed(p.UnrealizedPL), signedPct(p.UnrealizedPLPC))
	}
	fmt.Fprintf(&b, "Total Unrealized P/L: %s (%s of cost basis)\n", signed(s.UnrealizedPL), signedPct(s.UnrealizedPLPct))
	return b.String()
}

// Quote renders the latest quote.
func Quote(q domain.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latest Quote for %s:\n", q.Symbol)
	fmt.Fprintf(&b, "Ask: %s x %d\n", money(q.AskPrice), q.AskSize)
	fmt.Fprintf(&b, "Bid: %s x %d\n", money(q.BidPrice), q.BidSize)
	fmt.Fprintf(&b, "Spread: %s\n", money(q.Spread()))
	fmt.Fprintf(&b, "Timestamp: %s\n", ts(q.Timestamp))
	return b.String()
}

// Bars renders a bar listing, oldest first.
func Bars(symbol string, tf domain.Timeframe, bars []domain.Bar) string {
	if len(bars) == 0 {
		return fmt.Sprintf("No historical bars found for %s with %s timeframe.", symbol, tf)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Historical %s Bars for %s (last %d):\n\n", tf, symbol, len(bars))
	for _, bar := range bars {
		fmt.Fprintf(&b, "%s:\n", bar.Timestamp.UTC().Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "  Open: %s\n", money(bar.Open))
		fmt.Fprintf(&b, "  High: %s\n", money(bar.High))
		fmt.Fprintf(&b, "  Low: %s\n", money(bar.Low))
		fmt.Fprintf(&b, "  Close: %s\n", money(bar.Close))
		fmt.Fprintf(&b, "  Volume: %d\n\n", bar.Volume)
	}
	return b.String()
}

// Assets renders one page of an asset listing.
func Assets(page domain.AssetPage) string {
	if len(page.Assets) == 0 {
		return "No tradable assets found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tradable Assets (showing first %d of %d):\n\n", len(page.Assets), page.Total)
	for _, a := range page.Assets {
		fmt.Fprintf(&b, "%s - %s\n", a.Symbol, a.Name)
		fmt.Fprintf(&b, "  Class: %s\n", a.Class)
		fmt.Fprintf(&b, "  Exchange: %s\n", a.Exchange)
		fmt.Fprintf(&b, "  Fractionable: %t\n", a.Fractionable)
		fmt.Fprintf(&b, "  Shortable: %t\n\n", a.Shortable)
	}
	return b.String()
}

// Clock renders the market clock.
func Clock(c domain.Clock) string {
	state := "closed"
	if c.IsOpen {
		state = "open"
	}
	return fmt.Sprintf("Market is %s.\nNext Open: %s\nNext Close: %s\n", state, ts(c.NextOpen), ts(c.NextClose))
}
