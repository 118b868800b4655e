package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"brokerdesk/internal/domain"
)

func TestCode(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want codes.Code
	}{
		{domain.KindInvalidArgument, codes.InvalidArgument},
		{domain.KindNotFound, codes.NotFound},
		{domain.KindConflict, codes.FailedPrecondition},
		{domain.KindUpstream, codes.Unavailable},
		{domain.KindConfiguration, codes.Internal},
		{domain.Kind("bogus"), codes.Unknown},
	}
	for _, tt := range tests {
		if got := Code(tt.kind); got != tt.want {
			t.Errorf("Code(%q) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestError(t *testing.T) {
	err := fmt.Errorf("placing order: %w", domain.InvalidArgument("limit_price", "must be greater than 0, got 0"))
	info := Error(err)
	if info.Category != "invalid_argument" || info.Field != "limit_price" || info.Code != codes.InvalidArgument {
		t.Errorf("Error = %+v", info)
	}
	if got := ErrorText(err); got != "Error (invalid_argument): limit_price: must be greater than 0, got 0" {
		t.Errorf("ErrorText = %q", got)
	}

	// Errors without a kind never leak their text.
	info = Error(errors.New("dial tcp 10.0.0.1:443: i/o timeout"))
	if info.Category != "upstream" || strings.Contains(info.Message, "10.0.0.1") {
		t.Errorf("plain error info = %+v", info)
	}
}

func TestJSON(t *testing.T) {
	b, err := JSON(domain.Position{Symbol: "AAPL", Side: domain.PositionSideLong, Qty: 10})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, b)
	}
	if got["symbol"] != "AAPL" || got["qty"] != float64(10) || got["side"] != "long" {
		t.Errorf("decoded = %v", got)
	}
}

func TestOrderPlaced(t *testing.T) {
	out := OrderPlaced(domain.Order{
		ID:            "ord-1",
		ClientOrderID: "cid-1",
		Symbol:        "AAPL",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		TimeInForce:   domain.TimeInForceGTC,
		Qty:           10,
		LimitPrice:    180.5,
		Status:        domain.OrderStatusNew,
		CreatedAt:     time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{
		"Limit order placed successfully!",
		"Order ID: ord-1",
		"Client Order ID: cid-1",
		"Limit Price: $180.50",
		"Time in Force: gtc",
		"Status: new",
		"Created At: 2025-03-03 15:00:00 UTC",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("OrderPlaced output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stop Price") {
		t.Errorf("OrderPlaced output has a stop price for a limit order:\n%s", out)
	}
}

func TestPortfolio(t *testing.T) {
	out := Portfolio(domain.PortfolioSummary{
		Account:          domain.Account{Status: "ACTIVE", Cash: 500},
		TotalMarketValue: 1000,
		PositionsValue:   500,
		CashPct:          0.5,
		InvestedPct:      0.5,
		UnrealizedPL:     -25,
		UnrealizedPLPct:  -0.05,
		Positions: []domain.PositionAllocation{{
			Position:      domain.Position{Symbol: "AAPL", Side: domain.PositionSideLong, Qty: 5, MarketValue: 500, UnrealizedPL: -25, UnrealizedPLPC: -0.05},
			AllocationPct: 0.5,
		}},
	})
	for _, want := range []string{
		"Cash: $500.00 (50.00%)",
		"Value: $500.00 (50.00% of portfolio)",
		"P/L: -$25.00 (-5.00%)",
		"Total Unrealized P/L: -$25.00 (-5.00% of cost basis)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Portfolio output missing %q:\n%s", want, out)
		}
	}
}

func TestEmptyListings(t *testing.T) {
	if got := Positions(nil); got != "No open positions found." {
		t.Errorf("Positions(nil) = %q", got)
	}
	if got := Orders(nil); got != "No recent orders found." {
		t.Errorf("Orders(nil) = %q", got)
	}
	if got := Assets(domain.AssetPage{}); got != "No tradable assets found." {
		t.Errorf("Assets(empty) = %q", got)
	}
}

func TestAssetsHeader(t *testing.T) {
	out := Assets(domain.AssetPage{Total: 120, Assets: []domain.Asset{{Symbol: "AAPL", Name: "Apple Inc."}}})
	if !strings.HasPrefix(out, "Tradable Assets (showing first 1 of 120):") {
		t.Errorf("Assets header = %q", strings.SplitN(out, "\n", 2)[0])
	}
}
