// Package broker defines the Broker interface and provides implementations
// backed by the Alpaca brokerage API and by an in-memory simulator.
package broker

import (
	"context"

	"brokerdesk/internal/domain"
)

// Broker abstracts the brokerage operations the server needs. Every method
// either returns a typed value or a *domain.Error; NotFound is reported for
// unknown symbols, orders and positions, everything else that fails in
// transit is Upstream.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// GetAccount returns a snapshot of the account's balances and flags.
	GetAccount(ctx context.Context) (*domain.Account, error)

	// GetPositions returns all open positions in the brokerage's order.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetPosition returns the open position for an upper-case symbol.
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)

	// ListOrders returns up to limit orders of any status, newest first.
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)

	// GetOrder returns a single order by its brokerage ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// SubmitOrder sends a new order. It is never retried.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// ClosePosition submits an order that closes all or part of a position.
	ClosePosition(ctx context.Context, symbol string, req domain.ClosePositionRequest) (*domain.Order, error)

	// ListAssets returns assets matching the filter.
	ListAssets(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error)

	// GetAsset returns a single asset by symbol.
	GetAsset(ctx context.Context, symbol string) (*domain.Asset, error)

	// GetLatestQuote returns the latest bid/ask for a symbol.
	GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error)

	// GetBars returns bars for a symbol in ascending time order.
	GetBars(ctx context.Context, req domain.BarsRequest) ([]domain.Bar, error)

	// GetClock returns the market clock.
	GetClock(ctx context.Context) (*domain.Clock, error)
}
