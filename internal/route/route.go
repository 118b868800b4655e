// Package route parses resource URIs into tagged routes. It owns the table
// of resource URIs and templates the server registers, and the clamping
// rules for numeric path parameters.
package route

import (
	"net/url"
	"strconv"
	"strings"

	"brokerdesk/internal/domain"
)

// Kind identifies which resource a URI addresses.
type Kind string

const (
	KindAccount   Kind = "account"
	KindPositions Kind = "positions"
	KindPosition  Kind = "position"
	KindOrders    Kind = "orders"
	KindQuote     Kind = "quote"
	KindBars      Kind = "bars"
	KindClock     Kind = "clock"
	KindAssets    Kind = "assets"
	KindAsset     Kind = "asset"
)

// Limits applied to numeric path parameters.
const (
	MinOrderLimit   = 1
	MaxOrderLimit   = 500
	DefaultBarCount = 10
	MaxBarCount     = 1000
)

// Route is a parsed resource URI. Only the fields relevant to Kind are set.
// Count is zero when the URI does not name one.
type Route struct {
	Kind      Kind
	URI       string
	Symbol    string
	Limit     int
	Timeframe domain.Timeframe
	Count     int
	Filter    domain.AssetFilter
}

// Resource describes one registered URI or URI template.
type Resource struct {
	URI         string // set for fixed resources
	URITemplate string // set for templates
	Name        string
	Description string
}

// Resources lists the fixed resource URIs.
var Resources = []Resource{
	{URI: "account://info", Name: "account", Description: "Account balances, buying power and status flags"},
	{URI: "positions://all", Name: "positions", Description: "All open positions"},
	{URI: "market://clock", Name: "clock", Description: "Market open/closed state and next session times"},
	{URI: "assets://list", Name: "assets", Description: "Tradable active assets (first page)"},
}

// Templates lists the parameterised resource URI templates.
var Templates = []Resource{
	{URITemplate: "positions://{symbol}", Name: "position", Description: "Open position for one symbol"},
	{URITemplate: "orders://recent/{limit}", Name: "recent_orders", Description: "Most recent orders, newest first (limit 1-500)"},
	{URITemplate: "market://{symbol}/quote", Name: "quote", Description: "Latest bid/ask quote"},
	{URITemplate: "market://{symbol}/bars/{timeframe}", Name: "bars", Description: "Recent bars (timeframe Min, Hour, Day, Week or Month)"},
	{URITemplate: "market://{symbol}/bars/{timeframe}/{count}", Name: "bars_count", Description: "Most recent count bars (1-1000)"},
	{URITemplate: "assets://list{?status,asset_class}", Name: "assets_filtered", Description: "Tradable assets filtered by status and class"},
	{URITemplate: "assets://{symbol}", Name: "asset", Description: "Asset details for one symbol"},
}

// Parse maps a resource URI onto a Route. Unknown shapes are reported as
// NotFound; malformed parameters as InvalidArgument naming the parameter.
//
// The lower-case words "all" (positions) and "list" (assets) are reserved;
// a symbol spelled the same way must be given in upper case.
func Parse(uri string) (Route, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(uri), "://")
	if !ok {
		return Route{}, domain.NotFound("unknown resource %s", uri)
	}
	rest, rawQuery, _ := strings.Cut(rest, "?")
	segs := strings.Split(strings.Trim(rest, "/"), "/")
	r := Route{URI: uri}

	switch strings.ToLower(scheme) {
	case "account":
		if len(segs) == 1 && segs[0] == "info" {
			r.Kind = KindAccount
			return r, nil
		}

	case "positions":
		if len(segs) != 1 || segs[0] == "" {
			break
		}
		if segs[0] == "all" {
			r.Kind = KindPositions
			return r, nil
		}
		r.Kind = KindPosition
		r.Symbol = domain.NormalizeSymbol(segs[0])
		return r, nil

	case "orders":
		if len(segs) == 2 && segs[0] == "recent" {
			limit, err := ClampOrderLimit(segs[1])
			if err != nil {
				return Route{}, err
			}
			r.Kind = KindOrders
			r.Limit = limit
			return r, nil
		}

	case "market":
		if len(segs) == 1 && segs[0] == "clock" {
			r.Kind = KindClock
			return r, nil
		}
		if len(segs) < 2 || segs[0] == "" {
			break
		}
		r.Symbol = domain.NormalizeSymbol(segs[0])
		switch {
		case segs[1] == "quote" && len(segs) == 2:
			r.Kind = KindQuote
			return r, nil
		case segs[1] == "bars" && (len(segs) == 3 || len(segs) == 4):
			tf, ok := domain.ParseTimeframe(segs[2])
			if !ok {
				return Route{}, domain.InvalidArgument("timeframe",
					"unsupported timeframe %q (use Min, Hour, Day, Week or Month)", segs[2])
			}
			r.Kind = KindBars
			r.Timeframe = tf
			if len(segs) == 4 {
				count, err := ClampBarCount(segs[3])
				if err != nil {
					return Route{}, err
				}
				r.Count = count
			}
			return r, nil
		}

	case "assets":
		if len(segs) != 1 || segs[0] == "" {
			break
		}
		if segs[0] == "list" {
			q, err := url.ParseQuery(rawQuery)
			if err != nil {
				return Route{}, domain.InvalidArgument("query", "malformed query: %v", err)
			}
			r.Kind = KindAssets
			r.Filter = domain.AssetFilter{
				Status: strings.ToLower(q.Get("status")),
				Class:  strings.ToLower(q.Get("asset_class")),
			}
			return r, nil
		}
		r.Kind = KindAsset
		r.Symbol = domain.NormalizeSymbol(segs[0])
		return r, nil
	}

	return Route{}, domain.NotFound("unknown resource %s", uri)
}

// ClampOrderLimit parses a recent-orders limit and clamps it to
// [MinOrderLimit, MaxOrderLimit].
func ClampOrderLimit(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.InvalidArgument("limit", "must be an integer, got %q", s)
	}
	return clamp(n, MinOrderLimit, MaxOrderLimit), nil
}

// ClampBarCount parses a bar count and clamps it to [1, MaxBarCount].
func ClampBarCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.InvalidArgument("count", "must be an integer, got %q", s)
	}
	return clamp(n, 1, MaxBarCount), nil
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
