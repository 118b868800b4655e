package portfolio

import (
	"context"
	"errors"
	"math"
	"testing"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/broker/brokertest"
	"brokerdesk/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSummarizeCashOnly(t *testing.T) {
	s := Summarize(domain.Account{Cash: 1000}, nil)
	if s.TotalMarketValue != 1000 {
		t.Errorf("TotalMarketValue = %v, want 1000", s.TotalMarketValue)
	}
	if s.CashPct != 1 {
		t.Errorf("CashPct = %v, want 1", s.CashPct)
	}
	if len(s.Positions) != 0 {
		t.Errorf("len(Positions) = %d, want 0", len(s.Positions))
	}
}

func TestSummarizeFullyInvested(t *testing.T) {
	s := Summarize(domain.Account{Cash: 0}, []domain.Position{{Symbol: "AAPL", MarketValue: 500}})
	if s.CashPct != 0 {
		t.Errorf("CashPct = %v, want 0", s.CashPct)
	}
	if len(s.Positions) != 1 || s.Positions[0].AllocationPct != 1 {
		t.Errorf("Positions = %+v, want one allocation of 1", s.Positions)
	}
	if s.InvestedPct != 1 {
		t.Errorf("InvestedPct = %v, want 1", s.InvestedPct)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(domain.Account{}, nil)
	if s.TotalMarketValue != 0 || s.CashPct != 0 || s.InvestedPct != 0 || s.UnrealizedPLPct != 0 {
		t.Errorf("empty summary = %+v, want all zero", s)
	}
}

func TestSummarizeMixed(t *testing.T) {
	s := Summarize(domain.Account{Cash: 2000}, []domain.Position{
		{Symbol: "AAPL", MarketValue: 1800, CostBasis: 1500, UnrealizedPL: 300},
		{Symbol: "MSFT", MarketValue: 1200, CostBasis: 1500, UnrealizedPL: -300},
		{Symbol: "GME", MarketValue: 1000, CostBasis: 500, UnrealizedPL: 500},
	})
	if s.TotalMarketValue != 6000 {
		t.Errorf("TotalMarketValue = %v, want 6000", s.TotalMarketValue)
	}
	if !approx(s.CashPct, 2000.0/6000) || !approx(s.InvestedPct, 4000.0/6000) {
		t.Errorf("CashPct/InvestedPct = %v/%v", s.CashPct, s.InvestedPct)
	}
	if s.UnrealizedPL != 500 || !approx(s.UnrealizedPLPct, 500.0/3500) {
		t.Errorf("UnrealizedPL/Pct = %v/%v", s.UnrealizedPL, s.UnrealizedPLPct)
	}
	if !approx(s.Positions[0].AllocationPct, 0.3) {
		t.Errorf("AAPL allocation = %v, want 0.3", s.Positions[0].AllocationPct)
	}
}

func TestAggregatorSummary(t *testing.T) {
	sim := broker.NewSimulatorBroker()
	sim.SetAccount(domain.Account{Cash: 500, Currency: "USD"})
	sim.SetPosition(domain.Position{Symbol: "AAPL", Qty: 5, MarketValue: 500})

	rec := brokertest.NewRecorder(sim)
	s, err := NewAggregator(rec, nil).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.CashPct != 0.5 {
		t.Errorf("CashPct = %v, want 0.5", s.CashPct)
	}
	if rec.Calls("GetAccount") != 1 || rec.Calls("GetPositions") != 1 {
		t.Errorf("calls = %d account, %d positions, want 1 each",
			rec.Calls("GetAccount"), rec.Calls("GetPositions"))
	}
}

func TestAggregatorFailureIsUpstream(t *testing.T) {
	rec := brokertest.NewRecorder(broker.NewSimulatorBroker())
	rec.Fail("GetPositions", errors.New("connection reset"))

	_, err := NewAggregator(rec, nil).Summary(context.Background())
	if !domain.IsKind(err, domain.KindUpstream) {
		t.Errorf("error = %v, want upstream", err)
	}

	rec = brokertest.NewRecorder(broker.NewSimulatorBroker())
	rec.Fail("GetAccount", domain.NotFound("account missing"))
	_, err = NewAggregator(rec, nil).Summary(context.Background())
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindUpstream {
		t.Errorf("error = %v, want upstream", err)
	}
}
