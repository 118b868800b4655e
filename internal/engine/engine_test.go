package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/broker/brokertest"
	"brokerdesk/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func newTestDispatcher(t *testing.T) (*Dispatcher, *broker.SimulatorBroker, *brokertest.Recorder) {
	t.Helper()
	sim := broker.NewSimulatorBroker()
	sim.Now = func() time.Time { return time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC) }
	sim.AddAsset(domain.Asset{Symbol: "AAPL", Status: "active", Tradable: true, Fractionable: true})
	sim.AddAsset(domain.Asset{Symbol: "BRK.A", Status: "active", Tradable: true})
	sim.AddAsset(domain.Asset{Symbol: "HALT", Status: "active", Tradable: false})
	sim.SetPosition(domain.Position{Symbol: "AAPL", Qty: 10, MarketValue: 1800})
	sim.SetPosition(domain.Position{Symbol: "TSLA", Qty: -4, MarketValue: -800})

	rec := brokertest.NewRecorder(sim)
	return NewDispatcher(rec, nil), sim, rec
}

func TestNewDispatcher(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if d == nil {
		t.Fatal("NewDispatcher returned nil")
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	d.NewClientOrderID = func() string { return "generated-id" }

	order, err := d.PlaceOrder(context.Background(), OrderCommand{
		Symbol: "AAPL", Side: "buy", Type: "market", TimeInForce: "day", Qty: 10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	submitted := rec.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("submitted requests = %d, want 1", len(submitted))
	}
	want := domain.OrderRequest{
		Symbol:        "AAPL",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeMarket,
		TimeInForce:   domain.TimeInForceDay,
		Qty:           10,
		ClientOrderID: "generated-id",
	}
	if submitted[0] != want {
		t.Errorf("submitted request = %+v, want %+v", submitted[0], want)
	}
	if order.Side != domain.OrderSideBuy || order.Qty != 10 ||
		order.Type != domain.OrderTypeMarket || order.TimeInForce != domain.TimeInForceDay {
		t.Errorf("order = %+v, want market buy 10 day", order)
	}
	if order.ID == "" || order.Status != domain.OrderStatusNew {
		t.Errorf("order id/status = %q/%q, want non-empty/new", order.ID, order.Status)
	}
	if order.ClientOrderID != "generated-id" {
		t.Errorf("ClientOrderID = %q, want %q", order.ClientOrderID, "generated-id")
	}
}

func TestPlaceOrderKeepsCallerClientOrderID(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	order, err := d.PlaceOrder(context.Background(), OrderCommand{
		Symbol: "aapl", Side: "SELL", Type: "limit", Qty: 1, LimitPrice: ptr(200), ClientOrderID: "mine-1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ClientOrderID != "mine-1" {
		t.Errorf("ClientOrderID = %q, want %q", order.ClientOrderID, "mine-1")
	}
	if order.TimeInForce != domain.TimeInForceDay {
		t.Errorf("TimeInForce = %q, want default day", order.TimeInForce)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	long := strings.Repeat("x", MaxClientOrderIDLen+1)
	tests := []struct {
		name  string
		cmd   OrderCommand
		kind  domain.Kind
		field string
	}{
		{"zero limit price", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "limit", Qty: 1, LimitPrice: ptr(0)}, domain.KindInvalidArgument, "limit_price"},
		{"missing limit price", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "limit", Qty: 1}, domain.KindInvalidArgument, "limit_price"},
		{"missing stop price", OrderCommand{Symbol: "AAPL", Side: "sell", Type: "stop_limit", Qty: 1, LimitPrice: ptr(10)}, domain.KindInvalidArgument, "stop_price"},
		{"price on market", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 1, LimitPrice: ptr(10)}, domain.KindInvalidArgument, "limit_price"},
		{"stop on limit", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "limit", Qty: 1, LimitPrice: ptr(10), StopPrice: ptr(9)}, domain.KindInvalidArgument, "stop_price"},
		{"bad side", OrderCommand{Symbol: "AAPL", Side: "short", Type: "market", Qty: 1}, domain.KindInvalidArgument, "side"},
		{"bad type", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "trailing_stop", Qty: 1}, domain.KindInvalidArgument, "type"},
		{"bad tif", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", TimeInForce: "week", Qty: 1}, domain.KindInvalidArgument, "time_in_force"},
		{"zero qty", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 0}, domain.KindInvalidArgument, "qty"},
		{"nan qty", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: math.NaN()}, domain.KindInvalidArgument, "qty"},
		{"inf qty", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: math.Inf(1)}, domain.KindInvalidArgument, "qty"},
		{"extended market", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 1, ExtendedHours: true}, domain.KindInvalidArgument, "extended_hours"},
		{"extended gtc", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "limit", TimeInForce: "gtc", Qty: 1, LimitPrice: ptr(1), ExtendedHours: true}, domain.KindInvalidArgument, "extended_hours"},
		{"long client id", OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 1, ClientOrderID: long}, domain.KindInvalidArgument, "client_order_id"},
		{"empty symbol", OrderCommand{Side: "buy", Type: "market", Qty: 1}, domain.KindInvalidArgument, "symbol"},
		{"unknown symbol", OrderCommand{Symbol: "ZZZZ", Side: "buy", Type: "market", Qty: 1}, domain.KindNotFound, ""},
		{"untradable", OrderCommand{Symbol: "HALT", Side: "buy", Type: "market", Qty: 1}, domain.KindInvalidArgument, "symbol"},
		{"fractional", OrderCommand{Symbol: "BRK.A", Side: "buy", Type: "market", Qty: 0.5}, domain.KindInvalidArgument, "qty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, rec := newTestDispatcher(t)
			_, err := d.PlaceOrder(context.Background(), tt.cmd)
			if got := domain.KindOf(err); err == nil || got != tt.kind {
				t.Fatalf("error = %v, want kind %q", err, tt.kind)
			}
			var de *domain.Error
			if errors.As(err, &de) && de.Field != tt.field {
				t.Errorf("field = %q, want %q", de.Field, tt.field)
			}
			if n := rec.Calls("SubmitOrder"); n != 0 {
				t.Errorf("SubmitOrder calls = %d, want 0", n)
			}
		})
	}
}

func TestStaticValidationMakesNoBrokerCalls(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	_, err := d.PlaceOrder(context.Background(), OrderCommand{
		Symbol: "AAPL", Side: "buy", Type: "limit", Qty: 1, LimitPrice: ptr(0),
	})
	if !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Fatalf("error = %v, want invalid_argument", err)
	}
	if n := rec.Total(); n != 0 {
		t.Errorf("broker calls = %d, want 0", n)
	}
}

func TestStopAndLimitUnordered(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	// A buy stop-limit with the limit below the stop is accepted as is.
	_, err := d.PlaceOrder(context.Background(), OrderCommand{
		Symbol: "AAPL", Side: "buy", Type: "stop_limit", Qty: 1, StopPrice: ptr(200), LimitPrice: ptr(150),
	})
	if err != nil {
		t.Errorf("PlaceOrder: %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	d, sim, rec := newTestDispatcher(t)
	ctx := context.Background()

	order, err := d.PlaceOrder(ctx, OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 1})
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if res.OrderID != order.ID || res.PreviousStatus != domain.OrderStatusNew {
		t.Errorf("CancelResult = %+v", res)
	}

	sim.AddOrder(domain.Order{ID: "filled-1", Symbol: "AAPL", Status: domain.OrderStatusFilled})
	before := rec.Calls("CancelOrder")
	if _, err := d.CancelOrder(ctx, "filled-1"); !domain.IsKind(err, domain.KindConflict) {
		t.Errorf("cancel filled error = %v, want conflict", err)
	}
	if n := rec.Calls("CancelOrder") - before; n != 0 {
		t.Errorf("CancelOrder calls for filled order = %d, want 0", n)
	}

	if _, err := d.CancelOrder(ctx, "missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("cancel missing error = %v, want not_found", err)
	}
	if _, err := d.CancelOrder(ctx, " "); !domain.IsKind(err, domain.KindInvalidArgument) {
		t.Errorf("cancel blank error = %v, want invalid_argument", err)
	}
}

func TestClosePosition(t *testing.T) {
	ctx := context.Background()

	t.Run("over close", func(t *testing.T) {
		d, _, rec := newTestDispatcher(t)
		_, err := d.ClosePosition(ctx, CloseCommand{Symbol: "AAPL", Qty: ptr(11)})
		if !domain.IsKind(err, domain.KindInvalidArgument) {
			t.Fatalf("error = %v, want invalid_argument", err)
		}
		if n := rec.Calls("ClosePosition"); n != 0 {
			t.Errorf("ClosePosition calls = %d, want 0", n)
		}
	})

	t.Run("partial", func(t *testing.T) {
		d, _, rec := newTestDispatcher(t)
		o, err := d.ClosePosition(ctx, CloseCommand{Symbol: "aapl", Qty: ptr(4)})
		if err != nil {
			t.Fatal(err)
		}
		if closed := rec.Closed(); len(closed) != 1 || closed[0].Qty != 4 || closed[0].Percentage != 0 {
			t.Errorf("close requests = %+v, want one with qty 4", closed)
		}
		if o.Qty != 4 || o.Side != domain.OrderSideSell {
			t.Errorf("closing order = %+v, want sell 4", o)
		}
	})

	t.Run("short full", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)
		o, err := d.ClosePosition(ctx, CloseCommand{Symbol: "TSLA"})
		if err != nil {
			t.Fatal(err)
		}
		if o.Qty != 4 || o.Side != domain.OrderSideBuy {
			t.Errorf("closing order = %+v, want buy 4", o)
		}
	})

	t.Run("percentage", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t)
		o, err := d.ClosePosition(ctx, CloseCommand{Symbol: "AAPL", Percentage: ptr(50)})
		if err != nil {
			t.Fatal(err)
		}
		if o.Qty != 5 {
			t.Errorf("closing qty = %v, want 5", o.Qty)
		}
	})

	invalid := []CloseCommand{
		{Symbol: "AAPL", Qty: ptr(0)},
		{Symbol: "AAPL", Qty: ptr(-1)},
		{Symbol: "AAPL", Percentage: ptr(150)},
		{Symbol: "AAPL", Qty: ptr(1), Percentage: ptr(10)},
		{Symbol: ""},
	}
	for _, cmd := range invalid {
		d, _, rec := newTestDispatcher(t)
		if _, err := d.ClosePosition(ctx, cmd); !domain.IsKind(err, domain.KindInvalidArgument) {
			t.Errorf("ClosePosition(%+v) error = %v, want invalid_argument", cmd, err)
		}
		if rec.Total() != 0 {
			t.Errorf("ClosePosition(%+v) made %d broker calls, want 0", cmd, rec.Total())
		}
	}

	d, _, _ := newTestDispatcher(t)
	if _, err := d.ClosePosition(ctx, CloseCommand{Symbol: "MSFT"}); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("missing position error = %v, want not_found", err)
	}
}

func TestUpstreamSubmitFailureNotRetried(t *testing.T) {
	d, _, rec := newTestDispatcher(t)
	rec.Fail("SubmitOrder", domain.Upstream(errors.New("timeout"), "submit order: timeout"))

	_, err := d.PlaceOrder(context.Background(), OrderCommand{Symbol: "AAPL", Side: "buy", Type: "market", Qty: 1})
	if !domain.IsKind(err, domain.KindUpstream) {
		t.Errorf("error = %v, want upstream", err)
	}
	if n := rec.Calls("SubmitOrder"); n != 1 {
		t.Errorf("SubmitOrder calls = %d, want 1", n)
	}
}
