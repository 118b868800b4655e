// Package brokerdesk is a Go client for a running brokerdesk server. It
// speaks the Model Context Protocol over streamable HTTP, or over any other
// transport the protocol SDK provides.
package brokerdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"brokerdesk/internal/domain"
)

// Response types shared with the server.
type (
	Account          = domain.Account
	Position         = domain.Position
	Order            = domain.Order
	Quote            = domain.Quote
	Bar              = domain.Bar
	Clock            = domain.Clock
	AssetPage        = domain.AssetPage
	PortfolioSummary = domain.PortfolioSummary
)

// ToolError is returned when the server reports a failed tool call.
type ToolError struct {
	Tool string
	Text string
}

func (e *ToolError) Error() string {
	return e.Tool + ": " + e.Text
}

// Client provides a Go SDK for interacting with the brokerdesk server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *mcp.ClientSession
}

// NewClient creates a new brokerdesk client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Connect opens a protocol session to baseURL/mcp.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectTransport(ctx, &mcp.StreamableClientTransport{
		Endpoint:   c.baseURL + "/mcp",
		HTTPClient: c.httpClient,
	})
}

// ConnectTransport opens a protocol session over t.
func (c *Client) ConnectTransport(ctx context.Context, t mcp.Transport) error {
	client := mcp.NewClient(&mcp.Implementation{Name: "brokerdesk-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, t, nil)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	c.session = cs
	return nil
}

// Close ends the session.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// ReadRaw returns the JSON body of the resource at uri.
func (c *Client) ReadRaw(ctx context.Context, uri string) ([]byte, error) {
	if c.session == nil {
		return nil, fmt.Errorf("read %s: not connected", uri)
	}
	res, err := c.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if len(res.Contents) == 0 {
		return nil, fmt.Errorf("read %s: empty response", uri)
	}
	return []byte(res.Contents[0].Text), nil
}

func read[T any](ctx context.Context, c *Client, uri string) (T, error) {
	var v T
	body, err := c.ReadRaw(ctx, uri)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", uri, err)
	}
	return v, nil
}

// GetAccount retrieves account information.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	return read[*Account](ctx, c, "account://info")
}

// GetPositions retrieves current positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	return read[[]Position](ctx, c, "positions://all")
}

// GetPosition retrieves the position for one symbol.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	return read[*Position](ctx, c, "positions://"+symbol)
}

// GetRecentOrders retrieves up to limit orders, newest first.
func (c *Client) GetRecentOrders(ctx context.Context, limit int) ([]Order, error) {
	return read[[]Order](ctx, c, fmt.Sprintf("orders://recent/%d", limit))
}

// GetQuote retrieves the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return read[*Quote](ctx, c, "market://"+symbol+"/quote")
}

// GetBars retrieves the most recent count bars; count 0 uses the server
// default.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, count int) ([]Bar, error) {
	uri := "market://" + symbol + "/bars/" + timeframe
	if count > 0 {
		uri += fmt.Sprintf("/%d", count)
	}
	return read[[]Bar](ctx, c, uri)
}

// GetClock retrieves the market clock.
func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	return read[*Clock](ctx, c, "market://clock")
}

// ListAssets retrieves the first page of tradable assets.
func (c *Client) ListAssets(ctx context.Context) (*AssetPage, error) {
	return read[*AssetPage](ctx, c, "assets://list")
}

// CallTool invokes a tool and returns its text output. A tool-reported
// failure is returned as *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c.session == nil {
		return "", fmt.Errorf("call %s: not connected", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	var b strings.Builder
	for _, content := range res.Content {
		if t, ok := content.(*mcp.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	if res.IsError {
		return "", &ToolError{Tool: name, Text: b.String()}
	}
	return b.String(), nil
}

// SubmitMarketOrder places a day market order and returns the confirmation.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, qty float64, side string) (string, error) {
	return c.CallTool(ctx, "place_market_order", map[string]any{
		"symbol":   symbol,
		"quantity": qty,
		"side":     side,
	})
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (string, error) {
	return c.CallTool(ctx, "cancel_order", map[string]any{"order_id": orderID})
}

// ClosePosition closes the whole position in symbol.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (string, error) {
	return c.CallTool(ctx, "close_position", map[string]any{"symbol": symbol})
}

// PortfolioSummary returns the rendered portfolio summary.
func (c *Client) PortfolioSummary(ctx context.Context) (string, error) {
	return c.CallTool(ctx, "get_portfolio_summary", nil)
}
