// Package search filters, sorts and paginates auctions over a point-in-time
// set of snapshots. It never mutates what it reads.
package search

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/core"
)

// SortKey orders search results. Every key breaks ties by auction id.
type SortKey string

const (
	SortEndsAt       SortKey = "ends_at"
	SortCurrentPrice SortKey = "current_price"
	SortTotalBids    SortKey = "total_bids"
	SortCreatedAt    SortKey = "created_at"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query composes its filters conjunctively. Empty slices and nil pointers
// match everything.
type Query struct {
	Statuses   []core.Status
	Types      []core.AuctionType
	ItemTypes  []core.ItemType
	Categories []string
	Seller     string
	// Keyword matches a case-insensitive substring of the title or description.
	Keyword string

	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// EndsWithin keeps auctions whose end lies in [Now, Now+EndsWithin].
	EndsWithin time.Duration

	ProxyBidding *bool
	Private      *bool
	MultiWinner  *bool

	Sort       SortKey
	Descending bool
	Limit      int
	Offset     int

	// Now is the instant live prices and time-to-end are evaluated at.
	Now time.Time
}

// Result is one page of matches.
type Result struct {
	Auctions   []core.Auction `json:"auctions"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// ValidSortKey reports whether k names a supported sort key.
func ValidSortKey(k SortKey) bool {
	switch k {
	case "", SortEndsAt, SortCurrentPrice, SortTotalBids, SortCreatedAt:
		return true
	}
	return false
}

type hit struct {
	auction core.Auction
	price   decimal.Decimal
}

// Search runs q over snaps. Returned auctions carry the live price at q.Now.
func Search(snaps []core.Snapshot, q Query) Result {
	hits := make([]hit, 0, len(snaps))
	for _, s := range snaps {
		price := core.CurrentPrice(s, q.Now)
		if !q.matches(s.Auction, price) {
			continue
		}
		a := s.Auction
		a.CurrentPrice = price
		hits = append(hits, hit{auction: a, price: price})
	}

	slices.SortFunc(hits, q.compare)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset := max(q.Offset, 0)

	res := Result{Auctions: []core.Auction{}, TotalCount: len(hits)}
	if offset >= len(hits) {
		return res
	}
	end := min(offset+limit, len(hits))
	for _, h := range hits[offset:end] {
		res.Auctions = append(res.Auctions, h.auction)
	}
	res.HasMore = end < len(hits)
	return res
}

func (q Query) matches(a core.Auction, price decimal.Decimal) bool {
	cfg := a.Config
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, a.Status) {
		return false
	}
	if len(q.Types) > 0 && !slices.Contains(q.Types, cfg.Type) {
		return false
	}
	if len(q.ItemTypes) > 0 && !slices.Contains(q.ItemTypes, cfg.Item.Type) {
		return false
	}
	if len(q.Categories) > 0 && !slices.Contains(q.Categories, cfg.Category) {
		return false
	}
	if q.Seller != "" && a.Seller != q.Seller {
		return false
	}
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(cfg.Title), kw) && !strings.Contains(strings.ToLower(cfg.Description), kw) {
			return false
		}
	}
	if q.MinPrice != nil && price.LessThan(*q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && price.GreaterThan(*q.MaxPrice) {
		return false
	}
	if q.EndsWithin > 0 {
		left := a.EndsAt.Sub(q.Now)
		if left < 0 || left > q.EndsWithin {
			return false
		}
	}
	if q.ProxyBidding != nil && cfg.ProxyBidding != *q.ProxyBidding {
		return false
	}
	if q.Private != nil && cfg.Access.IsPrivate != *q.Private {
		return false
	}
	if q.MultiWinner != nil && cfg.MultiWinner.Enabled != *q.MultiWinner {
		return false
	}
	return true
}

func (q Query) compare(x, y hit) int {
	var c int
	switch q.Sort {
	case SortCurrentPrice:
		c = x.price.Cmp(y.price)
	case SortTotalBids:
		c = cmp.Compare(x.auction.TotalBids, y.auction.TotalBids)
	case SortCreatedAt:
		c = x.auction.CreatedAt.Compare(y.auction.CreatedAt)
	default:
		c = x.auction.EndsAt.Compare(y.auction.EndsAt)
	}
	if q.Descending {
		c = -c
	}
	if c != 0 {
		return c
	}
	return strings.Compare(x.auction.ID, y.auction.ID)
}
