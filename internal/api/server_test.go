package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/broker/brokertest"
	"brokerdesk/internal/config"
	"brokerdesk/internal/domain"
)

func newTestServer(t *testing.T) (*Server, *broker.SimulatorBroker, *brokertest.Recorder) {
	t.Helper()
	sim := broker.NewSimulatorBroker()
	sim.Now = func() time.Time { return time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC) }
	sim.SetAccount(domain.Account{Status: "ACTIVE", Currency: "USD", Cash: 1000, Equity: 2800})
	sim.AddAsset(domain.Asset{Symbol: "AAPL", Name: "Apple Inc.", Status: "active", Class: "us_equity", Tradable: true, Fractionable: true})
	sim.SetPosition(domain.Position{Symbol: "AAPL", Qty: 10, MarketValue: 1800, CostBasis: 1500, UnrealizedPL: 300})
	sim.SetQuote(domain.Quote{Symbol: "AAPL", BidPrice: 179.9, AskPrice: 180.1})
	sim.AddOrder(domain.Order{ID: "filled-1", Symbol: "AAPL", Status: domain.OrderStatusFilled})

	cfg := config.Default()
	cfg.Broker = config.BrokerSimulator
	rec := brokertest.NewRecorder(sim)
	return NewServer(cfg, rec, nil), sim, rec
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()
	if _, err := s.MCP().Connect(ctx, st, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func readJSON(t *testing.T, cs *mcp.ClientSession, uri string, v any) {
	t.Helper()
	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		t.Fatalf("ReadResource(%s): %v", uri, err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("ReadResource(%s) returned %d contents, want 1", uri, len(res.Contents))
	}
	if res.Contents[0].MIMEType != "application/json" {
		t.Errorf("MIMEType = %q, want application/json", res.Contents[0].MIMEType)
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), v); err != nil {
		t.Fatalf("decoding %s: %v\n%s", uri, err, res.Contents[0].Text)
	}
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s) returned no content", name)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content is %T, want *mcp.TextContent", name, res.Content[0])
	}
	return res, text.Text
}

func TestNewServer(t *testing.T) {
	s, _, _ := newTestServer(t)
	if s == nil || s.MCP() == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestReadResources(t *testing.T) {
	s, _, _ := newTestServer(t)
	cs := connect(t, s)

	var pos domain.Position
	readJSON(t, cs, "positions://aapl", &pos)
	if pos.Symbol != "AAPL" || pos.Qty != 10 {
		t.Errorf("position = %+v, want AAPL x10", pos)
	}

	var account domain.Account
	readJSON(t, cs, "account://info", &account)
	if account.Cash != 1000 {
		t.Errorf("account cash = %v, want 1000", account.Cash)
	}

	var orders []domain.Order
	readJSON(t, cs, "orders://recent/0", &orders)
	if len(orders) != 1 {
		t.Errorf("len(orders) = %d, want 1", len(orders))
	}

	var quote domain.Quote
	readJSON(t, cs, "market://AAPL/quote", &quote)
	if quote.BidPrice != 179.9 {
		t.Errorf("quote bid = %v, want 179.9", quote.BidPrice)
	}

	var page domain.AssetPage
	readJSON(t, cs, "assets://list", &page)
	if page.Total != 1 {
		t.Errorf("asset total = %d, want 1", page.Total)
	}
}

func TestReadResourceNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	cs := connect(t, s)

	if _, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "positions://MSFT"}); err == nil {
		t.Error("ReadResource(positions://MSFT) succeeded, want not found")
	}
	_, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "market://AAPL/bars/fortnight"})
	if err == nil || !strings.Contains(err.Error(), "timeframe") {
		t.Errorf("bad timeframe error = %v, want it to name timeframe", err)
	}
}

func TestListCapabilities(t *testing.T) {
	s, _, _ := newTestServer(t)
	cs := connect(t, s)
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"get_account_info", "get_portfolio_summary", "get_positions",
		"place_market_order", "place_limit_order", "place_stop_order", "place_stop_limit_order",
		"cancel_order", "close_position", "list_assets",
	}
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, n := range want {
		if !names[n] {
			t.Errorf("tool %q not registered", n)
		}
	}

	prompts, err := cs.ListPrompts(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(prompts.Prompts) != 3 {
		t.Errorf("len(prompts) = %d, want 3", len(prompts.Prompts))
	}

	templates, err := cs.ListResourceTemplates(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates.ResourceTemplates) == 0 {
		t.Error("no resource templates registered")
	}
}

func TestPlaceMarketOrderTool(t *testing.T) {
	s, _, rec := newTestServer(t)
	cs := connect(t, s)

	res, text := callTool(t, cs, "place_market_order", map[string]any{
		"symbol": "AAPL", "quantity": 10, "side": "buy", "time_in_force": "day",
	})
	if res.IsError {
		t.Fatalf("place_market_order failed: %s", text)
	}
	if !strings.Contains(text, "Market order placed successfully!") || !strings.Contains(text, "Status: new") {
		t.Errorf("confirmation text = %q", text)
	}
	submitted := rec.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("submitted requests = %d, want 1", len(submitted))
	}
	req := submitted[0]
	if req.Symbol != "AAPL" || req.Side != domain.OrderSideBuy || req.Qty != 10 ||
		req.Type != domain.OrderTypeMarket || req.TimeInForce != domain.TimeInForceDay {
		t.Errorf("submitted request = %+v, want market buy 10 AAPL day", req)
	}
	if req.ClientOrderID == "" {
		t.Error("submitted request has no client order id")
	}
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		tool     string
		args     map[string]any
		category string
	}{
		{"place_limit_order", map[string]any{"symbol": "AAPL", "quantity": 1, "side": "buy", "limit_price": 0}, "invalid_argument"},
		{"place_market_order", map[string]any{"symbol": "ZZZZ", "quantity": 1, "side": "buy"}, "not_found"},
		{"cancel_order", map[string]any{"order_id": "filled-1"}, "conflict"},
		{"close_position", map[string]any{"symbol": "AAPL", "qty": 11}, "invalid_argument"},
	}
	for _, tt := range tests {
		s, _, rec := newTestServer(t)
		cs := connect(t, s)
		res, text := callTool(t, cs, tt.tool, tt.args)
		if !res.IsError {
			t.Errorf("%s: IsError = false, text %q", tt.tool, text)
			continue
		}
		if !strings.Contains(text, "("+tt.category+")") {
			t.Errorf("%s: text = %q, want category %s", tt.tool, text, tt.category)
		}
		if n := rec.Calls("SubmitOrder") + rec.Calls("CancelOrder") + rec.Calls("ClosePosition"); n != 0 {
			t.Errorf("%s: %d order-changing calls, want 0", tt.tool, n)
		}
	}
}

func TestPortfolioSummaryTool(t *testing.T) {
	s, _, _ := newTestServer(t)
	cs := connect(t, s)

	res, text := callTool(t, cs, "get_portfolio_summary", nil)
	if res.IsError {
		t.Fatalf("get_portfolio_summary failed: %s", text)
	}
	if !strings.Contains(text, "Total Market Value: $2800.00") {
		t.Errorf("summary text = %q", text)
	}
}

func TestGetPrompt(t *testing.T) {
	s, _, _ := newTestServer(t)
	cs := connect(t, s)

	res, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "market_research_prompt",
		Arguments: map[string]string{"symbol": "msft"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(res.Messages))
	}
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "market://MSFT/quote") {
		t.Errorf("prompt text = %q", text)
	}
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["broker"] != "simulator" {
		t.Errorf("body = %v", body)
	}
}

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs, hs := newGRPCServer()
	go gs.Serve(lis)
	defer gs.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}

	hs.Shutdown()
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check after shutdown: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after shutdown = %v, want NOT_SERVING", resp.Status)
	}
}
