package broker

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"brokerdesk/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface in memory for offline runs
// and tests. Orders are accepted and recorded but never filled; account and
// market state change only through the Set/Add seeding methods.
type SimulatorBroker struct {
	mu        sync.Mutex
	account   domain.Account
	positions map[string]domain.Position
	orders    []*domain.Order
	assets    map[string]domain.Asset
	quotes    map[string]domain.Quote
	bars      map[string][]domain.Bar
	clock     domain.Clock

	// Now stamps created orders. Tests may replace it.
	Now func() time.Time
}

// NewSimulatorBroker creates a new SimulatorBroker with an empty active USD
// account.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{
		account: domain.Account{
			ID:       uuid.NewString(),
			Status:   "ACTIVE",
			Currency: "USD",
		},
		positions: make(map[string]domain.Position),
		assets:    make(map[string]domain.Asset),
		quotes:    make(map[string]domain.Quote),
		bars:      make(map[string][]domain.Bar),
		Now:       time.Now,
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

// SetAccount replaces the simulated account snapshot.
func (b *SimulatorBroker) SetAccount(a domain.Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.account = a
}

// SetPosition stores or replaces the position for p.Symbol.
func (b *SimulatorBroker) SetPosition(p domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.Symbol = domain.NormalizeSymbol(p.Symbol)
	if p.Side == "" {
		p.Side = domain.PositionSideLong
		if p.Qty < 0 {
			p.Side = domain.PositionSideShort
		}
	}
	b.positions[p.Symbol] = p
}

// AddAsset registers an asset.
func (b *SimulatorBroker) AddAsset(a domain.Asset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a.Symbol = domain.NormalizeSymbol(a.Symbol)
	b.assets[a.Symbol] = a
}

// SetQuote stores the latest quote for q.Symbol.
func (b *SimulatorBroker) SetQuote(q domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q.Symbol = domain.NormalizeSymbol(q.Symbol)
	b.quotes[q.Symbol] = q
}

// AddBars appends bars for symbol at the given interval.
func (b *SimulatorBroker) AddBars(symbol string, tf domain.Timeframe, bars ...domain.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := barKey(domain.NormalizeSymbol(symbol), tf)
	b.bars[key] = append(b.bars[key], bars...)
	sort.Slice(b.bars[key], func(i, j int) bool {
		return b.bars[key][i].Timestamp.Before(b.bars[key][j].Timestamp)
	})
}

// AddOrder records an existing order, e.g. one that is already filled.
func (b *SimulatorBroker) AddOrder(o domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, &o)
}

// SetClock replaces the simulated market clock.
func (b *SimulatorBroker) SetClock(c domain.Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = c
}

// ---------------------------------------------------------------------------
// Broker implementation
// ---------------------------------------------------------------------------

// GetAccount returns the simulated account.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.account
	return &a, nil
}

// GetPositions returns all simulated positions sorted by symbol.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

// GetPosition returns the position for symbol.
func (b *SimulatorBroker) GetPosition(_ context.Context, symbol string) (*domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[domain.NormalizeSymbol(symbol)]
	if !ok {
		return nil, domain.NotFound("no open position for %s", symbol)
	}
	return &p, nil
}

// ListOrders returns up to limit orders, newest first.
func (b *SimulatorBroker) ListOrders(_ context.Context, limit int) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, 0, min(limit, len(b.orders)))
	for i := len(b.orders) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *b.orders[i])
	}
	return out, nil
}

// GetOrder returns the order with the given ID.
func (b *SimulatorBroker) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.findOrder(orderID)
	if o == nil {
		return nil, domain.NotFound("order %s not found", orderID)
	}
	out := *o
	return &out, nil
}

// SubmitOrder records the order in memory with status "new".
func (b *SimulatorBroker) SubmitOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	symbol := domain.NormalizeSymbol(req.Symbol)
	if _, ok := b.assets[symbol]; !ok {
		return nil, domain.NotFound("asset %s not found", symbol)
	}
	o := b.newOrder(symbol, req.Side, req.Type, req.TimeInForce, req.Qty, req.ClientOrderID)
	o.LimitPrice = req.LimitPrice
	o.StopPrice = req.StopPrice
	o.ExtendedHours = req.ExtendedHours
	out := *o
	return &out, nil
}

// CancelOrder marks the specified order as canceled.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.findOrder(orderID)
	if o == nil {
		return domain.NotFound("order %s not found", orderID)
	}
	if o.Status.Terminal() {
		return domain.Conflict("order %s is %s", orderID, o.Status)
	}
	o.Status = domain.OrderStatusCanceled
	o.UpdatedAt = b.Now()
	return nil
}

// ClosePosition records a market order that offsets the position.
func (b *SimulatorBroker) ClosePosition(_ context.Context, symbol string, req domain.ClosePositionRequest) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	symbol = domain.NormalizeSymbol(symbol)
	p, ok := b.positions[symbol]
	if !ok {
		return nil, domain.NotFound("no open position for %s", symbol)
	}

	held := math.Abs(p.Qty)
	qty := held
	switch {
	case req.Qty > 0:
		qty = req.Qty
	case req.Percentage > 0:
		qty = held * req.Percentage / 100
	}
	if qty > held {
		return nil, domain.InvalidArgument("qty", "%g exceeds held quantity %g", qty, held)
	}

	side := domain.OrderSideSell
	if p.Qty < 0 {
		side = domain.OrderSideBuy
	}
	o := b.newOrder(symbol, side, domain.OrderTypeMarket, domain.TimeInForceDay, qty, "")
	out := *o
	return &out, nil
}

// ListAssets returns assets matching filter sorted by symbol.
func (b *SimulatorBroker) ListAssets(_ context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	assets := make([]domain.Asset, 0, len(b.assets))
	for _, a := range b.assets {
		if filter.Status != "" && !strings.EqualFold(a.Status, filter.Status) {
			continue
		}
		if filter.Class != "" && !strings.EqualFold(a.Class, filter.Class) {
			continue
		}
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets, nil
}

// GetAsset returns the asset for symbol.
func (b *SimulatorBroker) GetAsset(_ context.Context, symbol string) (*domain.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.assets[domain.NormalizeSymbol(symbol)]
	if !ok {
		return nil, domain.NotFound("asset %s not found", symbol)
	}
	return &a, nil
}

// GetLatestQuote returns the stored quote for symbol.
func (b *SimulatorBroker) GetLatestQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[domain.NormalizeSymbol(symbol)]
	if !ok {
		return nil, domain.NotFound("no quote for %s", symbol)
	}
	return &q, nil
}

// GetBars returns stored bars within [req.Start, req.End].
func (b *SimulatorBroker) GetBars(_ context.Context, req domain.BarsRequest) ([]domain.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Bar
	for _, bar := range b.bars[barKey(domain.NormalizeSymbol(req.Symbol), req.Timeframe)] {
		if !req.Start.IsZero() && bar.Timestamp.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && bar.Timestamp.After(req.End) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// GetClock returns the simulated clock, stamped with Now.
func (b *SimulatorBroker) GetClock(_ context.Context) (*domain.Clock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.clock
	c.Timestamp = b.Now()
	return &c, nil
}

// ---------------------------------------------------------------------------
// helpers (callers hold b.mu)
// ---------------------------------------------------------------------------

func (b *SimulatorBroker) newOrder(symbol string, side domain.OrderSide, typ domain.OrderType, tif domain.TimeInForce, qty float64, clientID string) *domain.Order {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	now := b.Now()
	o := &domain.Order{
		ID:            uuid.NewString(),
		ClientOrderID: clientID,
		Symbol:        symbol,
		Side:          side,
		Type:          typ,
		TimeInForce:   tif,
		Qty:           qty,
		Status:        domain.OrderStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.orders = append(b.orders, o)
	return o
}

func (b *SimulatorBroker) findOrder(id string) *domain.Order {
	for _, o := range b.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func barKey(symbol string, tf domain.Timeframe) string {
	return symbol + "|" + string(tf)
}
