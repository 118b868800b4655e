// Package brokertest provides a call-recording Broker wrapper for tests.
package brokertest

import (
	"context"
	"sync"

	"brokerdesk/internal/broker"
	"brokerdesk/internal/domain"
)

var _ broker.Broker = (*Recorder)(nil)

// Recorder delegates to an inner Broker, counting calls per method name and
// returning injected errors instead of delegating when one is set.
type Recorder struct {
	Inner broker.Broker

	mu     sync.Mutex
	calls  map[string]int
	errors map[string]error
	orders []domain.OrderRequest
	closes []domain.ClosePositionRequest
}

// NewRecorder wraps inner.
func NewRecorder(inner broker.Broker) *Recorder {
	return &Recorder{
		Inner:  inner,
		calls:  make(map[string]int),
		errors: make(map[string]error),
	}
}

// Fail makes every later call to method return err.
func (r *Recorder) Fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[method] = err
}

// Calls returns how many times method was invoked.
func (r *Recorder) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Total returns the number of calls across all methods.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

// Submitted returns every order request passed to SubmitOrder, in call order.
func (r *Recorder) Submitted() []domain.OrderRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderRequest(nil), r.orders...)
}

// Closed returns every close request passed to ClosePosition, in call order.
func (r *Recorder) Closed() []domain.ClosePositionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ClosePositionRequest(nil), r.closes...)
}

func (r *Recorder) record(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[method]++
	return r.errors[method]
}

// Name returns the inner broker's name.
func (r *Recorder) Name() string { return r.Inner.Name() }

// GetAccount records the call and delegates to Inner.
func (r *Recorder) GetAccount(ctx context.Context) (*domain.Account, error) {
	if err := r.record("GetAccount"); err != nil {
		return nil, err
	}
	return r.Inner.GetAccount(ctx)
}

// GetPositions records the call and delegates to Inner.
func (r *Recorder) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := r.record("GetPositions"); err != nil {
		return nil, err
	}
	return r.Inner.GetPositions(ctx)
}

// GetPosition records the call and delegates to Inner.
func (r *Recorder) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	if err := r.record("GetPosition"); err != nil {
		return nil, err
	}
	return r.Inner.GetPosition(ctx, symbol)
}

// ListOrders records the call and delegates to Inner.
func (r *Recorder) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if err := r.record("ListOrders"); err != nil {
		return nil, err
	}
	return r.Inner.ListOrders(ctx, limit)
}

// GetOrder records the call and delegates to Inner.
func (r *Recorder) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := r.record("GetOrder"); err != nil {
		return nil, err
	}
	return r.Inner.GetOrder(ctx, orderID)
}

// SubmitOrder records the call and its request, then delegates to Inner.
func (r *Recorder) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	r.mu.Lock()
	r.orders = append(r.orders, req)
	r.mu.Unlock()
	if err := r.record("SubmitOrder"); err != nil {
		return nil, err
	}
	return r.Inner.SubmitOrder(ctx, req)
}

// CancelOrder records the call and delegates to Inner.
func (r *Recorder) CancelOrder(ctx context.Context, orderID string) error {
	if err := r.record("CancelOrder"); err != nil {
		return err
	}
	return r.Inner.CancelOrder(ctx, orderID)
}

// ClosePosition records the call and its request, then delegates to Inner.
func (r *Recorder) ClosePosition(ctx context.Context, symbol string, req domain.ClosePositionRequest) (*domain.Order, error) {
	r.mu.Lock()
	r.closes = append(r.closes, req)
	r.mu.Unlock()
	if err := r.record("ClosePosition"); err != nil {
		return nil, err
	}
	return r.Inner.ClosePosition(ctx, symbol, req)
}

// ListAssets records the call and delegates to Inner.
func (r *Recorder) ListAssets(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	if err := r.record("ListAssets"); err != nil {
		return nil, err
	}
	return r.Inner.ListAssets(ctx, filter)
}

// GetAsset records the call and delegates to Inner.
func (r *Recorder) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	if err := r.record("GetAsset"); err != nil {
		return nil, err
	}
	return r.Inner.GetAsset(ctx, symbol)
}

// GetLatestQuote records the call and delegates to Inner.
func (r *Recorder) GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := r.record("GetLatestQuote"); err != nil {
		return nil, err
	}
	return r.Inner.GetLatestQuote(ctx, symbol)
}

// GetBars records the call and delegates to Inner.
func (r *Recorder) GetBars(ctx context.Context, req domain.BarsRequest) ([]domain.Bar, error) {
	if err := r.record("GetBars"); err != nil {
		return nil, err
	}
	return r.Inner.GetBars(ctx, req)
}

// GetClock records the call and delegates to Inner.
func (r *Recorder) GetClock(ctx context.Context) (*domain.Clock, error) {
	if err := r.record("GetClock"); err != nil {
		return nil, err
	}
	return r.Inner.GetClock(ctx)
}
