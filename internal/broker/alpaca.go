package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/util"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaOptions configures an AlpacaBroker.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string // trading API, paper endpoint when empty
	DataURL   string // market-data API, SDK default when empty
	Feed      string // "iex" or "sip"

	Timeout         time.Duration // per HTTP call
	RateLimitPerMin int           // shared by trading and data calls
	ReadAttempts    int           // 1 disables read retries
	ReadRetryDelay  time.Duration
}

// AlpacaBroker implements the Broker interface using the Alpaca brokerage API.
type AlpacaBroker struct {
	trading *alpaca.Client
	data    *marketdata.Client
	feed    string
	limiter ratelimit.Limiter

	readAttempts int
	readDelay    time.Duration
	log          *slog.Logger
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoints.
func NewAlpacaBroker(opts AlpacaOptions, log *slog.Logger) *AlpacaBroker {
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{Timeout: opts.Timeout}

	// A negative limit makes the SDK send each request exactly once; order
	// submissions must never be replayed behind the caller's back.
	tradingOpts := alpaca.ClientOpts{
		APIKey:     opts.APIKey,
		APISecret:  opts.APISecret,
		BaseURL:    opts.BaseURL,
		RetryLimit: -1,
		HTTPClient: httpClient,
	}
	dataOpts := marketdata.ClientOpts{
		APIKey:     opts.APIKey,
		APISecret:  opts.APISecret,
		HTTPClient: httpClient,
	}
	if opts.DataURL != "" {
		dataOpts.BaseURL = opts.DataURL
	}

	perMin := opts.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}

	return &AlpacaBroker{
		trading:      alpaca.NewClient(tradingOpts),
		data:         marketdata.NewClient(dataOpts),
		feed:         opts.Feed,
		limiter:      ratelimit.New(perMin, ratelimit.Per(time.Minute)),
		readAttempts: max(opts.ReadAttempts, 1),
		readDelay:    opts.ReadRetryDelay,
		log:          log.With("component", "broker", "broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// GetAccount returns the current account information from the Alpaca API.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*domain.Account, error) {
	var acct *alpaca.Account
	err := b.read(ctx, "get account", func() (err error) {
		acct, err = b.trading.GetAccount()
		return err
	})
	if err != nil {
		return nil, classify(err, "get account", "account not found", callRead)
	}
	out := toAccount(acct)
	return &out, nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var raw []alpaca.Position
	err := b.read(ctx, "list positions", func() (err error) {
		raw, err = b.trading.GetPositions()
		return err
	})
	if err != nil {
		return nil, classify(err, "list positions", "positions not found", callRead)
	}
	positions := make([]domain.Position, 0, len(raw))
	for i := range raw {
		positions = append(positions, toPosition(&raw[i]))
	}
	return positions, nil
}

// GetPosition returns the open position for symbol.
func (b *AlpacaBroker) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	var raw *alpaca.Position
	err := b.read(ctx, "get position", func() (err error) {
		raw, err = b.trading.GetPosition(symbol)
		return err
	})
	if err != nil {
		return nil, classify(err, "get position "+symbol, fmt.Sprintf("no open position for %s", symbol), callRead)
	}
	p := toPosition(raw)
	return &p, nil
}

// ListOrders returns the most recent orders of any status, newest first.
func (b *AlpacaBroker) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	var raw []alpaca.Order
	err := b.read(ctx, "list orders", func() (err error) {
		raw, err = b.trading.GetOrders(alpaca.GetOrdersRequest{
			Status:    "all",
			Limit:     limit,
			Direction: "desc",
		})
		return err
	})
	if err != nil {
		return nil, classify(err, "list orders", "orders not found", callRead)
	}
	orders := make([]domain.Order, 0, len(raw))
	for i := range raw {
		orders = append(orders, toOrder(&raw[i]))
	}
	return orders, nil
}

// GetOrder returns a single order by ID.
func (b *AlpacaBroker) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var raw *alpaca.Order
	err := b.read(ctx, "get order", func() (err error) {
		raw, err = b.trading.GetOrder(orderID)
		return err
	})
	if err != nil {
		return nil, classify(err, "get order "+orderID, fmt.Sprintf("order %s not found", orderID), callRead)
	}
	o := toOrder(raw)
	return &o, nil
}

// SubmitOrder sends an order to the Alpaca API for execution. The call is
// made exactly once.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Upstream(err, "submit order: %v", err)
	}
	b.limiter.Take()

	raw, err := b.trading.PlaceOrder(toPlaceOrderRequest(req))
	if err != nil {
		b.log.Warn("order submission failed",
			"symbol", req.Symbol, "client_order_id", req.ClientOrderID, "err", err)
		return nil, classify(err, "submit order", fmt.Sprintf("asset %s not found", req.Symbol), callWrite)
	}
	o := toOrder(raw)
	b.log.Info("order submitted",
		"id", o.ID, "client_order_id", o.ClientOrderID, "symbol", o.Symbol,
		"side", o.Side, "type", o.Type, "qty", o.Qty, "status", o.Status)
	return &o, nil
}

// CancelOrder requests cancellation of an open order via the Alpaca API.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return domain.Upstream(err, "cancel order: %v", err)
	}
	b.limiter.Take()

	if err := b.trading.CancelOrder(orderID); err != nil {
		return classify(err, "cancel order "+orderID, fmt.Sprintf("order %s not found", orderID), callCancel)
	}
	b.log.Info("order cancel requested", "id", orderID)
	return nil
}

// ClosePosition liquidates all or part of the position in symbol.
func (b *AlpacaBroker) ClosePosition(ctx context.Context, symbol string, req domain.ClosePositionRequest) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Upstream(err, "close position: %v", err)
	}
	b.limiter.Take()

	raw, err := b.trading.ClosePosition(symbol, toClosePositionRequest(req))
	if err != nil {
		return nil, classify(err, "close position "+symbol, fmt.Sprintf("no open position for %s", symbol), callWrite)
	}
	o := toOrder(raw)
	b.log.Info("position close submitted", "symbol", symbol, "id", o.ID, "qty", o.Qty)
	return &o, nil
}

// ListAssets returns assets matching filter.
func (b *AlpacaBroker) ListAssets(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	var raw []alpaca.Asset
	err := b.read(ctx, "list assets", func() (err error) {
		raw, err = b.trading.GetAssets(alpaca.GetAssetsRequest{
			Status:     filter.Status,
			AssetClass: filter.Class,
		})
		return err
	})
	if err != nil {
		return nil, classify(err, "list assets", "assets not found", callRead)
	}
	assets := make([]domain.Asset, 0, len(raw))
	for i := range raw {
		assets = append(assets, toAsset(&raw[i]))
	}
	return assets, nil
}

// GetAsset returns the asset for symbol.
func (b *AlpacaBroker) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	var raw *alpaca.Asset
	err := b.read(ctx, "get asset", func() (err error) {
		raw, err = b.trading.GetAsset(symbol)
		return err
	})
	if err != nil {
		return nil, classify(err, "get asset "+symbol, fmt.Sprintf("asset %s not found", symbol), callRead)
	}
	a := toAsset(raw)
	return &a, nil
}

// GetLatestQuote returns the latest quote for symbol from the configured feed.
func (b *AlpacaBroker) GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	var raw *marketdata.Quote
	err := b.read(ctx, "latest quote", func() (err error) {
		raw, err = b.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{
			Feed: marketdata.Feed(b.feed),
		})
		return err
	})
	if err != nil {
		return nil, classify(err, "latest quote "+symbol, fmt.Sprintf("no quote for %s", symbol), callRead)
	}
	if raw == nil {
		return nil, domain.NotFound("no quote for %s", symbol)
	}
	q := toQuote(symbol, raw)
	return &q, nil
}

// GetBars returns bars for the requested symbol and interval.
func (b *AlpacaBroker) GetBars(ctx context.Context, req domain.BarsRequest) ([]domain.Bar, error) {
	var raw []marketdata.Bar
	err := b.read(ctx, "get bars", func() (err error) {
		raw, err = b.data.GetBars(req.Symbol, marketdata.GetBarsRequest{
			TimeFrame: toTimeFrame(req.Timeframe),
			Start:     req.Start,
			End:       req.End,
			Feed:      marketdata.Feed(b.feed),
		})
		return err
	})
	if err != nil {
		return nil, classify(err, "get bars "+req.Symbol, fmt.Sprintf("no bars for %s", req.Symbol), callRead)
	}
	bars := make([]domain.Bar, 0, len(raw))
	for i := range raw {
		bars = append(bars, toBar(req.Symbol, &raw[i]))
	}
	return bars, nil
}

// GetClock returns the market clock.
func (b *AlpacaBroker) GetClock(ctx context.Context) (*domain.Clock, error) {
	var raw *alpaca.Clock
	err := b.read(ctx, "get clock", func() (err error) {
		raw, err = b.trading.GetClock()
		return err
	})
	if err != nil {
		return nil, classify(err, "get clock", "clock not available", callRead)
	}
	return &domain.Clock{
		Timestamp: raw.Timestamp,
		IsOpen:    raw.IsOpen,
		NextOpen:  raw.NextOpen,
		NextClose: raw.NextClose,
	}, nil
}

// read runs an idempotent call under the rate limiter, retrying transient
// failures up to readAttempts times.
func (b *AlpacaBroker) read(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return util.RetryIf(ctx, b.readAttempts, b.readDelay, retryable, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		if attempt > 1 {
			b.log.Debug("retrying read", "op", op, "attempt", attempt)
		}
		b.limiter.Take()
		return fn()
	})
}

// retryable reports whether a failed read may succeed when repeated.
func retryable(err error) bool {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// callKind selects how classify maps brokerage status codes.
type callKind int

const (
	callRead callKind = iota
	callWrite
	callCancel
)

// classify turns an SDK error into a *domain.Error. notFound is the message
// reported for HTTP 404. On writes a 422 means the brokerage rejected the
// parameters and a 403 means the account state forbids the order. On cancel
// a 422 means the order is no longer cancelable.
func classify(err error, op, notFound string, call callKind) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return &domain.Error{Kind: domain.KindNotFound, Message: notFound, Err: err}
		case call == callCancel && apiErr.StatusCode == http.StatusUnprocessableEntity:
			return &domain.Error{Kind: domain.KindConflict, Message: apiErr.Message, Err: err}
		case call == callWrite && apiErr.StatusCode == http.StatusUnprocessableEntity:
			return &domain.Error{Kind: domain.KindInvalidArgument, Message: apiErr.Message, Err: err}
		case call != callRead && apiErr.StatusCode == http.StatusForbidden:
			return &domain.Error{Kind: domain.KindConflict, Message: apiErr.Message, Err: err}
		}
	}
	return domain.Upstream(errors.Wrap(err, op), "%s: %v", op, err)
}
