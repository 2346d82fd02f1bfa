// Package analytics derives non-authoritative metrics and listing
// recommendations from a committed auction snapshot.
package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/core"
)

// DemandLevel buckets bidding interest.
type DemandLevel string

const (
	DemandLow    DemandLevel = "low"
	DemandMedium DemandLevel = "medium"
	DemandHigh   DemandLevel = "high"
)

// Demand thresholds. A level is reached when either its bid frequency
// (bids per active hour) or its participation rate (percent) is met.
const (
	highFrequency     = 10.0
	highParticipation = 50.0
	medFrequency      = 2.0
	medParticipation  = 20.0

	// minActiveHours keeps bid frequency finite for auctions that just started.
	minActiveHours = 1.0 / 60
)

// Metrics are best-effort figures for display and recommendations only.
type Metrics struct {
	AuctionID           string          `json:"auction_id"`
	TotalBids           int             `json:"total_bids"`
	UniqueBidders       int             `json:"unique_bidders"`
	ViewCount           int             `json:"view_count"`
	ParticipationRate   float64         `json:"participation_rate"`
	AverageBidIncrement decimal.Decimal `json:"average_bid_increment"`
	BidFrequency        float64         `json:"bid_frequency"`
	ActiveHours         float64         `json:"active_hours"`
	TimeRemaining       time.Duration   `json:"time_remaining"`
	DemandLevel         DemandLevel     `json:"demand_level"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	// PredictedEndPrice is nil while a sealed auction is open.
	PredictedEndPrice *decimal.Decimal `json:"predicted_end_price,omitempty"`
}

// Analyze computes metrics for s as of now.
//
// Amount-derived figures of an open sealed auction stay zero so the
// metrics never reveal hidden bids.
func Analyze(s core.Snapshot, now time.Time) Metrics {
	a := s.Auction
	m := Metrics{
		AuctionID:           a.ID,
		TotalBids:           a.TotalBids,
		UniqueBidders:       len(a.Bidders),
		ViewCount:           a.ViewCount,
		AverageBidIncrement: decimal.Zero,
		CurrentPrice:        core.CurrentPrice(s, now),
	}
	m.ParticipationRate = participationRate(m.UniqueBidders, m.ViewCount)
	m.ActiveHours = activeHours(a, now)
	if m.ActiveHours > 0 {
		m.BidFrequency = float64(m.TotalBids) / max(m.ActiveHours, minActiveHours)
	}
	if !a.IsClosed() && a.EndsAt.After(now) {
		m.TimeRemaining = a.EndsAt.Sub(now)
	}
	m.DemandLevel = demandLevel(m.BidFrequency, m.ParticipationRate)

	hidden := core.IsSealed(a.Config.Type) && !a.IsClosed()
	if !hidden {
		m.AverageBidIncrement = averageIncrement(s.Bids)
		predicted := predictEndPrice(s, m)
		m.PredictedEndPrice = &predicted
	}
	return m
}

func participationRate(bidders, views int) float64 {
	if views <= 0 {
		return 0
	}
	return min(max(float64(bidders)*100/float64(views), 0), 100)
}

// activeHours measures from the start to the actual end, or to now while open.
func activeHours(a core.Auction, now time.Time) float64 {
	if a.StartedAt == nil {
		return 0
	}
	end := now
	if a.ActualEndTime != nil {
		end = *a.ActualEndTime
	}
	if !end.After(*a.StartedAt) {
		return 0
	}
	return end.Sub(*a.StartedAt).Hours()
}

func demandLevel(frequency, participation float64) DemandLevel {
	switch {
	case frequency >= highFrequency || participation >= highParticipation:
		return DemandHigh
	case frequency >= medFrequency || participation >= medParticipation:
		return DemandMedium
	default:
		return DemandLow
	}
}

// averageIncrement is the mean difference between chronologically
// successive bids.
func averageIncrement(bids []core.Bid) decimal.Decimal {
	if len(bids) < 2 {
		return decimal.Zero
	}
	ordered := slices.Clone(bids)
	slices.SortStableFunc(ordered, func(x, y core.Bid) int { return x.Timestamp.Compare(y.Timestamp) })

	total := decimal.Zero
	for i := 1; i < len(ordered); i++ {
		total = total.Add(ordered[i].Amount.Sub(ordered[i-1].Amount))
	}
	return core.RoundAmount(total.Div(decimal.NewFromInt(int64(len(ordered) - 1))))
}

// predictEndPrice extrapolates the current bidding pace to the scheduled
// end: current price + average increment × expected remaining bids,
// capped by the buy-now price. Closed auctions report their final price and
// descending auctions their floor, since their price only falls.
func predictEndPrice(s core.Snapshot, m Metrics) decimal.Decimal {
	a := s.Auction
	cfg := a.Config
	if a.IsClosed() {
		if a.Resolution != nil && len(a.Resolution.Winners) > 0 {
			return a.Resolution.FinalPrice
		}
		return a.CurrentPrice
	}
	if core.IsDescending(cfg.Type) {
		if cfg.ReservePrice != nil {
			return *cfg.ReservePrice
		}
		return m.CurrentPrice
	}

	price := m.CurrentPrice
	if m.AverageBidIncrement.IsPositive() && m.BidFrequency > 0 {
		expected := decimal.NewFromFloat(m.BidFrequency * m.TimeRemaining.Hours()).Floor()
		price = price.Add(m.AverageBidIncrement.Mul(expected))
	}
	if cfg.BuyNowPrice != nil && price.GreaterThan(*cfg.BuyNowPrice) {
		price = *cfg.BuyNowPrice
	}
	return core.RoundAmount(price)
}
