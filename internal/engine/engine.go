// Package engine validates order commands and hands each accepted command to
// the broker as exactly one order request.
package engine

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/domain"
)

// OrderCommand is an order as received from a tool call. Price fields are
// pointers so an explicit zero can be told apart from an omitted value.
type OrderCommand struct {
	Symbol        string
	Side          string
	Type          string
	TimeInForce   string
	Qty           float64
	LimitPrice    *float64
	StopPrice     *float64
	ExtendedHours bool
	ClientOrderID string
}

// CloseCommand selects a position to close. Leaving both Qty and Percentage
// nil closes the whole position.
type CloseCommand struct {
	Symbol     string
	Qty        *float64
	Percentage *float64
}

// Dispatcher turns validated commands into broker requests. It never retries
// a submission.
type Dispatcher struct {
	broker    broker.Broker
	validator *Validator
	log       *slog.Logger

	// NewClientOrderID generates ids for commands that carry none.
	NewClientOrderID func() string
}

// NewDispatcher creates a Dispatcher wired to b.
func NewDispatcher(b broker.Broker, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		broker:           b,
		validator:        NewValidator(b),
		log:              log.With("component", "dispatcher"),
		NewClientOrderID: uuid.NewString,
	}
}

// PlaceOrder validates cmd and submits it. Nothing is submitted unless both
// validation phases pass.
func (d *Dispatcher) PlaceOrder(ctx context.Context, cmd OrderCommand) (*domain.Order, error) {
	req, err := d.validator.CheckStatic(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.validator.CheckAsset(ctx, req); err != nil {
		return nil, err
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = d.NewClientOrderID()
	}

	d.log.Info("submitting order",
		"symbol", req.Symbol, "side", req.Side, "type", req.Type,
		"tif", req.TimeInForce, "qty", req.Qty, "client_order_id", req.ClientOrderID)

	order, err := d.broker.SubmitOrder(ctx, req)
	if err != nil {
		d.log.Warn("order rejected", "symbol", req.Symbol,
			"client_order_id", req.ClientOrderID, "kind", domain.KindOf(err), "error", err)
		return nil, err
	}
	if order.ClientOrderID == "" {
		order.ClientOrderID = req.ClientOrderID
	}
	return order, nil
}

// CancelOrder cancels an open order. Orders already in a terminal state are
// reported as a conflict and the broker's cancel is not called.
func (d *Dispatcher) CancelOrder(ctx context.Context, orderID string) (*domain.CancelResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.InvalidArgument("order_id", "is required")
	}

	order, err := d.broker.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, domain.Conflict("order %s is already %s", orderID, order.Status)
	}
	if err := d.broker.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}

	d.log.Info("order cancel requested", "id", orderID, "symbol", order.Symbol, "status", order.Status)
	return &domain.CancelResult{
		OrderID:        orderID,
		Symbol:         order.Symbol,
		PreviousStatus: order.Status,
	}, nil
}

// ClosePosition closes all or part of an open position and returns the
// closing order.
func (d *Dispatcher) ClosePosition(ctx context.Context, cmd CloseCommand) (*domain.Order, error) {
	symbol := domain.NormalizeSymbol(cmd.Symbol)
	if symbol == "" {
		return nil, domain.InvalidArgument("symbol", "is required")
	}
	var req domain.ClosePositionRequest
	switch {
	case cmd.Qty != nil && cmd.Percentage != nil:
		return nil, domain.InvalidArgument("qty", "qty and percentage are mutually exclusive")
	case cmd.Qty != nil:
		if !positive(*cmd.Qty) {
			return nil, domain.InvalidArgument("qty", "must be greater than 0, got %g", *cmd.Qty)
		}
		req.Qty = *cmd.Qty
	case cmd.Percentage != nil:
		if !positive(*cmd.Percentage) || *cmd.Percentage > 100 {
			return nil, domain.InvalidArgument("percentage", "must be in (0, 100], got %g", *cmd.Percentage)
		}
		req.Percentage = *cmd.Percentage
	}

	pos, err := d.broker.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if held := math.Abs(pos.Qty); req.Qty > held {
		return nil, domain.InvalidArgument("qty", "%g exceeds held quantity %g of %s", req.Qty, held, symbol)
	}

	order, err := d.broker.ClosePosition(ctx, symbol, req)
	if err != nil {
		return nil, err
	}
	d.log.Info("position close submitted", "symbol", symbol, "id", order.ID, "qty", order.Qty)
	return order, nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
