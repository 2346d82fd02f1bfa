package analytics

import (
	"github.com/cloudx-io/dynauction/core"
)

type RecommendationKind string

const (
	RecommendLowerReserve    RecommendationKind = "lower_reserve"
	RecommendEnableAntiSnipe RecommendationKind = "enable_anti_sniping"
	RecommendEnableBuyNow    RecommendationKind = "enable_buy_now"
	RecommendPromoteListing  RecommendationKind = "promote_listing"
)

const (
	lowViewCount          = 10
	reserveReviewFraction = 0.25
)

// Recommendation is a heuristic suggestion for the seller.
type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	Message string             `json:"message"`
}

// Recommend suggests listing changes for an open auction. Closed auctions
// get none.
func Recommend(s core.Snapshot, m Metrics) []Recommendation {
	a := s.Auction
	cfg := a.Config
	out := []Recommendation{}
	if a.IsClosed() {
		return out
	}
	sealed := core.IsSealed(cfg.Type)
	descending := core.IsDescending(cfg.Type)

	if cfg.ReservePrice != nil && !sealed && !descending && late(a, m) {
		highest := s.HighestBid()
		if highest == nil || !core.MeetsReserve(highest.Amount, cfg.ReservePrice) {
			out = append(out, Recommendation{
				Kind:    RecommendLowerReserve,
				Message: "bidding is below the reserve late in the auction; consider lowering the reserve",
			})
		}
	}
	if m.DemandLevel == DemandHigh && !sealed && !descending && cfg.ExtensionTrigger == 0 {
		out = append(out, Recommendation{
			Kind:    RecommendEnableAntiSnipe,
			Message: "demand is high; anti-sniping extensions protect the final price",
		})
	}
	if m.DemandLevel == DemandHigh && !descending && cfg.BuyNowPrice == nil {
		out = append(out, Recommendation{
			Kind:    RecommendEnableBuyNow,
			Message: "demand is high; a buy-now price lets eager bidders close early",
		})
	}
	if m.ViewCount < lowViewCount || (m.DemandLevel == DemandLow && m.TotalBids == 0) {
		out = append(out, Recommendation{
			Kind:    RecommendPromoteListing,
			Message: "few bidders have seen this auction; consider promoting the listing",
		})
	}
	return out
}

// late reports whether less than a quarter of the duration remains.
func late(a core.Auction, m Metrics) bool {
	if a.Config.Duration <= 0 {
		return false
	}
	return m.TimeRemaining.Seconds() < a.Config.Duration.Seconds()*reserveReviewFraction
}
