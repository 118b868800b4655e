// Package portfolio derives a portfolio summary from an account snapshot and
// the open positions.
package portfolio

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/domain"
)

// Aggregator builds portfolio summaries. Nothing is cached between calls.
type Aggregator struct {
	broker broker.Broker
	log    *slog.Logger
}

// NewAggregator creates an Aggregator reading through b.
func NewAggregator(b broker.Broker, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{broker: b, log: log.With("component", "portfolio")}
}

// Summary fetches the account and positions concurrently and combines them.
// A failure of either fetch fails the whole summary as an upstream error.
func (a *Aggregator) Summary(ctx context.Context) (*domain.PortfolioSummary, error) {
	var (
		account   *domain.Account
		positions []domain.Position
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = a.broker.GetAccount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		positions, err = a.broker.GetPositions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Warn("portfolio summary failed", "error", err)
		var de *domain.Error
		if errors.As(err, &de) && de.Kind == domain.KindUpstream {
			return nil, err
		}
		return nil, domain.Upstream(err, "portfolio summary: %v", err)
	}

	s := Summarize(*account, positions)
	a.log.Debug("portfolio summary built", "positions", len(positions), "total", s.TotalMarketValue)
	return &s, nil
}

// Summarize computes the derived portfolio view. Percentages are fractions;
// every ratio with a zero denominator is reported as 0, except that a
// portfolio holding only cash is 100% cash.
func Summarize(account domain.Account, positions []domain.Position) domain.PortfolioSummary {
	s := domain.PortfolioSummary{
		Account:   account,
		Positions: make([]domain.PositionAllocation, 0, len(positions)),
	}
	for _, p := range positions {
		s.PositionsValue += p.MarketValue
		s.UnrealizedPL += p.UnrealizedPL
		s.CostBasis += p.CostBasis
	}
	s.TotalMarketValue = account.Cash + s.PositionsValue

	total := s.TotalMarketValue
	s.CashPct = ratio(account.Cash, total)
	s.InvestedPct = ratio(s.PositionsValue, total)
	s.UnrealizedPLPct = ratio(s.UnrealizedPL, s.CostBasis)
	for _, p := range positions {
		s.Positions = append(s.Positions, domain.PositionAllocation{
			Position:      p,
			AllocationPct: ratio(p.MarketValue, total),
		})
	}
	return s
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
