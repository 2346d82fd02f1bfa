package httpapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/search"
)

// parseQuery reads search filters from URL parameters. List parameters
// take comma-separated values.
func parseQuery(v url.Values, now time.Time) (search.Query, error) {
	q := search.Query{
		Seller:     v.Get("seller"),
		Keyword:    v.Get("q"),
		Categories: splitList(v.Get("category")),
		Sort:       search.SortKey(v.Get("sort")),
		Now:        now,
	}
	for _, s := range splitList(v.Get("status")) {
		q.Statuses = append(q.Statuses, core.Status(s))
	}
	for _, t := range splitList(v.Get("type")) {
		q.Types = append(q.Types, core.AuctionType(t))
	}
	for _, t := range splitList(v.Get("item_type")) {
		q.ItemTypes = append(q.ItemTypes, core.ItemType(t))
	}
	if !search.ValidSortKey(q.Sort) {
		return q, core.ValidationError("sort", "unknown sort key %q", q.Sort)
	}
	switch order := v.Get("order"); order {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return q, core.ValidationError("order", "must be asc or desc, got %q", order)
	}

	var err error
	if q.MinPrice, err = decimalParam(v, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = decimalParam(v, "max_price"); err != nil {
		return q, err
	}
	if q.ProxyBidding, err = boolParam(v, "proxy_bidding"); err != nil {
		return q, err
	}
	if q.Private, err = boolParam(v, "private"); err != nil {
		return q, err
	}
	if q.MultiWinner, err = boolParam(v, "multi_winner"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(v, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(v, "offset"); err != nil {
		return q, err
	}
	if raw := v.Get("ends_within"); raw != "" {
		d, perr := time.ParseDuration(raw)
		if perr != nil || d <= 0 {
			return q, core.ValidationError("ends_within", "invalid duration %q", raw)
		}
		q.EndsWithin = d
	}
	return q, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decimalParam(v url.Values, name string) (*decimal.Decimal, error) {
	raw := v.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, core.ValidationError(name, "invalid amount %q", raw)
	}
	return &d, nil
}

func boolParam(v url.Values, name string) (*bool, error) {
	raw := v.Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, core.ValidationError(name, "invalid boolean %q", raw)
	}
	return &b, nil
}

func intParam(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.ValidationError(name, "must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
