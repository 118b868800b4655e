// Package resolver answers resource reads by mapping a parsed route onto
// brokerage adapter calls. Every read is side-effect free.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/route"
)

// Options tunes the resolver's defaults.
type Options struct {
	DefaultBarCount int // bars returned when the URI names no count
	AssetsPageSize  int // assets returned by one listing
}

// Resolver maps routes to snapshots fetched through a Broker.
type Resolver struct {
	broker broker.Broker
	opts   Options
	log    *slog.Logger

	// Now anchors bar lookback windows. Tests may replace it.
	Now func() time.Time
}

// New creates a Resolver. Zero options fall back to the route defaults.
func New(b broker.Broker, opts Options, log *slog.Logger) *Resolver {
	if opts.DefaultBarCount <= 0 {
		opts.DefaultBarCount = route.DefaultBarCount
	}
	opts.DefaultBarCount = min(opts.DefaultBarCount, route.MaxBarCount)
	if opts.AssetsPageSize <= 0 {
		opts.AssetsPageSize = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		broker: b,
		opts:   opts,
		log:    log.With("component", "resolver"),
		Now:    time.Now,
	}
}

// Resolve reads the resource addressed by uri.
func (r *Resolver) Resolve(ctx context.Context, uri string) (any, error) {
	rt, err := route.Parse(uri)
	if err != nil {
		return nil, err
	}
	return r.ResolveRoute(ctx, rt)
}

// ResolveRoute reads the resource addressed by an already parsed route.
func (r *Resolver) ResolveRoute(ctx context.Context, rt route.Route) (any, error) {
	r.log.Debug("resolving resource", "uri", rt.URI, "kind", rt.Kind)

	switch rt.Kind {
	case route.KindAccount:
		return r.Account(ctx)
	case route.KindPositions:
		return r.Positions(ctx)
	case route.KindPosition:
		return r.Position(ctx, rt.Symbol)
	case route.KindOrders:
		return r.RecentOrders(ctx, rt.Limit)
	case route.KindQuote:
		return r.Quote(ctx, rt.Symbol)
	case route.KindBars:
		return r.Bars(ctx, rt.Symbol, rt.Timeframe, rt.Count)
	case route.KindClock:
		return r.Clock(ctx)
	case route.KindAssets:
		return r.Assets(ctx, rt.Filter)
	case route.KindAsset:
		return r.Asset(ctx, rt.Symbol)
	}
	return nil, domain.NotFound("unknown resource %s", rt.URI)
}

// Account returns the account snapshot.
func (r *Resolver) Account(ctx context.Context) (*domain.Account, error) {
	return r.broker.GetAccount(ctx)
}

// Positions returns all open positions.
func (r *Resolver) Positions(ctx context.Context) ([]domain.Position, error) {
	positions, err := r.broker.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	return positions, nil
}

// Position returns the open position for symbol.
func (r *Resolver) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	return r.broker.GetPosition(ctx, domain.NormalizeSymbol(symbol))
}

// RecentOrders returns up to limit orders of any status, newest first. The
// limit is clamped to the accepted range.
func (r *Resolver) RecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	limit = min(max(limit, route.MinOrderLimit), route.MaxOrderLimit)
	orders, err := r.broker.ListOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Quote returns the latest quote for a tradable symbol. The asset lookup
// precedes the quote call so unknown and untradable symbols are NotFound.
func (r *Resolver) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	asset, err := r.broker.GetAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !asset.Tradable {
		return nil, domain.NotFound("%s is not tradable", symbol)
	}
	q, err := r.broker.GetLatestQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, domain.NotFound("no quote for %s", symbol)
	}
	return q, nil
}

// Bars returns the most recent count bars for symbol within the timeframe's
// lookback window. A zero count means the configured default.
func (r *Resolver) Bars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	if count <= 0 {
		count = r.opts.DefaultBarCount
	}
	count = min(count, route.MaxBarCount)

	end := r.Now().UTC()
	bars, err := r.broker.GetBars(ctx, domain.BarsRequest{
		Symbol:    domain.NormalizeSymbol(symbol),
		Timeframe: tf,
		Start:     end.Add(-tf.Lookback()),
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	return bars, nil
}

// Clock returns the market clock.
func (r *Resolver) Clock(ctx context.Context) (*domain.Clock, error) {
	return r.broker.GetClock(ctx)
}

// Assets lists tradable assets matching filter. Status defaults to active.
// Only the first page is returned; Total counts every match.
func (r *Resolver) Assets(ctx context.Context, filter domain.AssetFilter) (*domain.AssetPage, error) {
	if filter.Status == "" {
		filter.Status = "active"
	}
	assets, err := r.broker.ListAssets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	tradable := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Tradable {
			tradable = append(tradable, a)
		}
	}
	page := &domain.AssetPage{Total: len(tradable), Assets: tradable}
	if len(page.Assets) > r.opts.AssetsPageSize {
		page.Assets = page.Assets[:r.opts.AssetsPageSize]
	}
	return page, nil
}

// Asset returns the asset for symbol.
func (r *Resolver) Asset(ctx context.Context, symbol string) (*domain.Asset, error) {
	return r.broker.GetAsset(ctx, domain.NormalizeSymbol(symbol))
}
