package engine

import (
	"context"
	"math"
	"strings"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/domain"
)

// MaxClientOrderIDLen is the longest client order id the brokerage accepts.
const MaxClientOrderIDLen = 128

// Validator enforces order rules in two phases: CheckStatic needs no
// network, CheckAsset performs one asset lookup.
type Validator struct {
	broker broker.Broker
}

// NewValidator creates a Validator that looks assets up through b.
func NewValidator(b broker.Broker) *Validator {
	return &Validator{broker: b}
}

// CheckStatic normalizes cmd into an OrderRequest, rejecting any parameter
// that is malformed or not applicable to the order type.
func (v *Validator) CheckStatic(cmd OrderCommand) (domain.OrderRequest, error) {
	req := domain.OrderRequest{
		Symbol:        domain.NormalizeSymbol(cmd.Symbol),
		ExtendedHours: cmd.ExtendedHours,
		ClientOrderID: strings.TrimSpace(cmd.ClientOrderID),
	}
	if req.Symbol == "" {
		return req, domain.InvalidArgument("symbol", "is required")
	}

	switch side := domain.OrderSide(strings.ToLower(strings.TrimSpace(cmd.Side))); side {
	case domain.OrderSideBuy, domain.OrderSideSell:
		req.Side = side
	default:
		return req, domain.InvalidArgument("side", "must be buy or sell, got %q", cmd.Side)
	}

	switch typ := domain.OrderType(strings.ToLower(strings.TrimSpace(cmd.Type))); typ {
	case domain.OrderTypeMarket, domain.OrderTypeLimit, domain.OrderTypeStop, domain.OrderTypeStopLimit:
		req.Type = typ
	default:
		return req, domain.InvalidArgument("type", "must be market, limit, stop or stop_limit, got %q", cmd.Type)
	}

	switch tif := domain.TimeInForce(strings.ToLower(strings.TrimSpace(cmd.TimeInForce))); tif {
	case "":
		req.TimeInForce = domain.TimeInForceDay
	case domain.TimeInForceDay, domain.TimeInForceGTC, domain.TimeInForceOPG,
		domain.TimeInForceCLS, domain.TimeInForceIOC, domain.TimeInForceFOK:
		req.TimeInForce = tif
	default:
		return req, domain.InvalidArgument("time_in_force", "must be one of day, gtc, opg, cls, ioc, fok, got %q", cmd.TimeInForce)
	}

	if !positive(cmd.Qty) {
		return req, domain.InvalidArgument("qty", "must be a finite number greater than 0, got %g", cmd.Qty)
	}
	req.Qty = cmd.Qty

	needsLimit := req.Type == domain.OrderTypeLimit || req.Type == domain.OrderTypeStopLimit
	needsStop := req.Type == domain.OrderTypeStop || req.Type == domain.OrderTypeStopLimit

	price, err := checkPrice("limit_price", cmd.LimitPrice, needsLimit, req.Type)
	if err != nil {
		return req, err
	}
	req.LimitPrice = price

	price, err = checkPrice("stop_price", cmd.StopPrice, needsStop, req.Type)
	if err != nil {
		return req, err
	}
	req.StopPrice = price

	if req.ExtendedHours && (req.Type != domain.OrderTypeLimit || req.TimeInForce != domain.TimeInForceDay) {
		return req, domain.InvalidArgument("extended_hours", "only allowed for limit orders with time in force day")
	}
	if len(req.ClientOrderID) > MaxClientOrderIDLen {
		return req, domain.InvalidArgument("client_order_id", "must be at most %d characters", MaxClientOrderIDLen)
	}
	return req, nil
}

// CheckAsset verifies the symbol resolves to a tradable asset that supports
// the requested quantity.
func (v *Validator) CheckAsset(ctx context.Context, req domain.OrderRequest) error {
	asset, err := v.broker.GetAsset(ctx, req.Symbol)
	if err != nil {
		return err
	}
	if !asset.Tradable {
		return domain.InvalidArgument("symbol", "%s is not tradable", req.Symbol)
	}
	if req.Qty != math.Trunc(req.Qty) && !asset.Fractionable {
		return domain.InvalidArgument("qty", "%s does not support fractional quantities", req.Symbol)
	}
	return nil
}

func checkPrice(field string, p *float64, required bool, typ domain.OrderType) (float64, error) {
	switch {
	case p == nil && required:
		return 0, domain.InvalidArgument(field, "is required for %s orders", typ)
	case p == nil:
		return 0, nil
	case !required:
		return 0, domain.InvalidArgument(field, "does not apply to %s orders", typ)
	case !positive(*p):
		return 0, domain.InvalidArgument(field, "must be greater than 0, got %g", *p)
	}
	return *p, nil
}
