package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/format"
	"brokerdesk/internal/route"
)

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func (s *Server) registerResources() {
	for _, r := range route.Resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    format.MIMEJSON,
		}, s.readResource)
	}
	for _, r := range route.Templates {
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: r.URITemplate,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    format.MIMEJSON,
		}, s.readResource)
	}
}

// readResource serves every resource URI; the route table decides what the
// URI addresses, so overlapping templates resolve identically.
func (s *Server) readResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	v, err := s.resolver.Resolve(ctx, uri)
	if err != nil {
		s.log.Debug("resource read failed", "uri", uri, "kind", domain.KindOf(err), "error", err)
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return nil, errors.New(format.ErrorText(err))
	}

	body, err := format.JSON(v)
	if err != nil {
		s.log.Error("encoding resource", "uri", uri, "error", err)
		return nil, errors.New("encoding resource failed")
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: format.MIMEJSON,
			Text:     string(body),
		}},
	}, nil
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

type noArgs struct{}

// MarketOrderArgs are the arguments of place_market_order.
type MarketOrderArgs struct {
	Symbol        string  `json:"symbol" jsonschema:"stock symbol, e.g. AAPL"`
	Quantity      float64 `json:"quantity" jsonschema:"number of shares, fractional allowed for fractionable assets"`
	Side          string  `json:"side" jsonschema:"buy or sell"`
	TimeInForce   string  `json:"time_in_force,omitempty" jsonschema:"day (default), gtc, opg, cls, ioc or fok"`
	ClientOrderID string  `json:"client_order_id,omitempty" jsonschema:"caller supplied idempotency id, at most 128 characters"`
}

// LimitOrderArgs are the arguments of place_limit_order.
type LimitOrderArgs struct {
	Symbol        string  `json:"symbol" jsonschema:"stock symbol, e.g. AAPL"`
	Quantity      float64 `json:"quantity" jsonschema:"number of shares"`
	Side          string  `json:"side" jsonschema:"buy or sell"`
	LimitPrice    float64 `json:"limit_price" jsonschema:"maximum price to buy or minimum price to sell"`
	TimeInForce   string  `json:"time_in_force,omitempty" jsonschema:"day (default), gtc, opg, cls, ioc or fok"`
	ExtendedHours bool    `json:"extended_hours,omitempty" jsonschema:"allow execution outside regular hours (time in force day only)"`
	ClientOrderID string  `json:"client_order_id,omitempty" jsonschema:"caller supplied idempotency id, at most 128 characters"`
}

// StopOrderArgs are the arguments of place_stop_order.
type StopOrderArgs struct {
	Symbol        string  `json:"symbol" jsonschema:"stock symbol, e.g. AAPL"`
	Quantity      float64 `json:"quantity" jsonschema:"number of shares"`
	Side          string  `json:"side" jsonschema:"buy or sell"`
	StopPrice     float64 `json:"stop_price" jsonschema:"price that triggers the order"`
	TimeInForce   string  `json:"time_in_force,omitempty" jsonschema:"day (default), gtc, opg, cls, ioc or fok"`
	ClientOrderID string  `json:"client_order_id,omitempty" jsonschema:"caller supplied idempotency id, at most 128 characters"`
}

// StopLimitOrderArgs are the arguments of place_stop_limit_order.
type StopLimitOrderArgs struct {
	Symbol        string  `json:"symbol" jsonschema:"stock symbol, e.g. AAPL"`
	Quantity      float64 `json:"quantity" jsonschema:"number of shares"`
	Side          string  `json:"side" jsonschema:"buy or sell"`
	StopPrice     float64 `json:"stop_price" jsonschema:"price that triggers the order"`
	LimitPrice    float64 `json:"limit_price" jsonschema:"limit price of the triggered order"`
	TimeInForce   string  `json:"time_in_force,omitempty" jsonschema:"day (default), gtc, opg, cls, ioc or fok"`
	ClientOrderID string  `json:"client_order_id,omitempty" jsonschema:"caller supplied idempotency id, at most 128 characters"`
}

// CancelOrderArgs are the arguments of cancel_order.
type CancelOrderArgs struct {
	OrderID string `json:"order_id" jsonschema:"ID of the order to cancel"`
}

// ClosePositionArgs are the arguments of close_position.
type ClosePositionArgs struct {
	Symbol     string   `json:"symbol" jsonschema:"symbol of the position to close"`
	Qty        *float64 `json:"qty,omitempty" jsonschema:"shares to close, at most the held quantity; omit to close all"`
	Percentage *float64 `json:"percentage,omitempty" jsonschema:"percent of the position to close (0-100], exclusive with qty"`
}

// ListAssetsArgs are the arguments of list_assets.
type ListAssetsArgs struct {
	Status     string `json:"status,omitempty" jsonschema:"asset status, active (default) or inactive"`
	AssetClass string `json:"asset_class,omitempty" jsonschema:"us_equity, us_option or crypto"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_account_info",
		Description: "Get the current account balances, buying power and status.",
	}, s.getAccountInfo)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_portfolio_summary",
		Description: "Summarize the portfolio: cash and invested share, per-position allocation and unrealized P/L.",
	}, s.getPortfolioSummary)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_positions",
		Description: "List all open positions.",
	}, s.getPositions)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "place_market_order",
		Description: "Place a market order to buy or sell a stock at the current market price.",
	}, s.placeMarketOrder)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "place_limit_order",
		Description: "Place a limit order to buy or sell a stock at a specified price or better.",
	}, s.placeLimitOrder)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "place_stop_order",
		Description: "Place a stop order that becomes a market order when the stop price is reached.",
	}, s.placeStopOrder)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "place_stop_limit_order",
		Description: "Place a stop-limit order that becomes a limit order when the stop price is reached.",
	}, s.placeStopLimitOrder)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel an open order by its ID.",
	}, s.cancelOrder)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "close_position",
		Description: "Close all or part of an open position with a market order.",
	}, s.closePosition)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_assets",
		Description: "List tradable assets, optionally filtered by status and asset class.",
	}, s.listAssets)
}

// toolResult renders a successful tool call as text plus structured content.
func toolResult(text string, v any) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, v, nil
}

// toolError reports a failed tool call in-band so the agent can read it.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, any, error) {
	info := format.Error(err)
	s.log.Info("tool call failed", "tool", tool, "category", info.Category, "error", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: format.ErrorText(err)}},
	}, info, nil
}

func (s *Server) getAccountInfo(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	a, err := s.resolver.Account(ctx)
	if err != nil {
		return s.toolError("get_account_info", err)
	}
	return toolResult(format.Account(*a), a)
}

func (s *Server) getPortfolioSummary(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	sum, err := s.portfolio.Summary(ctx)
	if err != nil {
		return s.toolError("get_portfolio_summary", err)
	}
	return toolResult(format.Portfolio(*sum), sum)
}

func (s *Server) getPositions(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	positions, err := s.resolver.Positions(ctx)
	if err != nil {
		return s.toolError("get_positions", err)
	}
	return toolResult(format.Positions(positions), map[string]any{"positions": positions})
}

func (s *Server) placeOrder(ctx context.Context, tool string, cmd engine.OrderCommand) (*mcp.CallToolResult, any, error) {
	o, err := s.dispatcher.PlaceOrder(ctx, cmd)
	if err != nil {
		return s.toolError(tool, err)
	}
	return toolResult(format.OrderPlaced(*o), o)
}

func (s *Server) placeMarketOrder(ctx context.Context, _ *mcp.CallToolRequest, in MarketOrderArgs) (*mcp.CallToolResult, any, error) {
	return s.placeOrder(ctx, "place_market_order", engine.OrderCommand{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          string(domain.OrderTypeMarket),
		TimeInForce:   in.TimeInForce,
		Qty:           in.Quantity,
		ClientOrderID: in.ClientOrderID,
	})
}

func (s *Server) placeLimitOrder(ctx context.Context, _ *mcp.CallToolRequest, in LimitOrderArgs) (*mcp.CallToolResult, any, error) {
	return s.placeOrder(ctx, "place_limit_order", engine.OrderCommand{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          string(domain.OrderTypeLimit),
		TimeInForce:   in.TimeInForce,
		Qty:           in.Quantity,
		LimitPrice:    &in.LimitPrice,
		ExtendedHours: in.ExtendedHours,
		ClientOrderID: in.ClientOrderID,
	})
}

func (s *Server) placeStopOrder(ctx context.Context, _ *mcp.CallToolRequest, in StopOrderArgs) (*mcp.CallToolResult, any, error) {
	return s.placeOrder(ctx, "place_stop_order", engine.OrderCommand{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          string(domain.OrderTypeStop),
		TimeInForce:   in.TimeInForce,
		Qty:           in.Quantity,
		StopPrice:     &in.StopPrice,
		ClientOrderID: in.ClientOrderID,
	})
}

func (s *Server) placeStopLimitOrder(ctx context.Context, _ *mcp.CallToolRequest, in StopLimitOrderArgs) (*mcp.CallToolResult, any, error) {
	return s.placeOrder(ctx, "place_stop_limit_order", engine.OrderCommand{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          string(domain.OrderTypeStopLimit),
		TimeInForce:   in.TimeInForce,
		Qty:           in.Quantity,
		StopPrice:     &in.StopPrice,
		LimitPrice:    &in.LimitPrice,
		ClientOrderID: in.ClientOrderID,
	})
}

func (s *Server) cancelOrder(ctx context.Context, _ *mcp.CallToolRequest, in CancelOrderArgs) (*mcp.CallToolResult, any, error) {
	res, err := s.dispatcher.CancelOrder(ctx, in.OrderID)
	if err != nil {
		return s.toolError("cancel_order", err)
	}
	return toolResult(format.Cancel(*res), res)
}

func (s *Server) closePosition(ctx context.Context, _ *mcp.CallToolRequest, in ClosePositionArgs) (*mcp.CallToolResult, any, error) {
	o, err := s.dispatcher.ClosePosition(ctx, engine.CloseCommand{
		Symbol:     in.Symbol,
		Qty:        in.Qty,
		Percentage: in.Percentage,
	})
	if err != nil {
		return s.toolError("close_position", err)
	}
	return toolResult(format.Closed(*o), o)
}

func (s *Server) listAssets(ctx context.Context, _ *mcp.CallToolRequest, in ListAssetsArgs) (*mcp.CallToolResult, any, error) {
	page, err := s.resolver.Assets(ctx, domain.AssetFilter{Status: in.Status, Class: in.AssetClass})
	if err != nil {
		return s.toolError("list_assets", err)
	}
	return toolResult(format.Assets(*page), page)
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body, err := format.JSON(map[string]string{
		"status":  "ok",
		"broker":  s.broker.Name(),
		"version": Version,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.MIMEJSON)
	_, _ = w.Write(body)
}
