package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolveInput is everything winner resolution needs. Resolution is pure:
// the same input (and the same RandSource sequence) yields the same output.
type ResolveInput struct {
	Snapshot       Snapshot
	Reason         EndReason
	Now            time.Time
	FeeBasisPoints int
	RandSource     RandSource
}

// Resolve computes the winners of a closing auction.
//
// Processing flow:
//  1. Short-circuit cancellations (no winners) and buy-now (the buyer wins at the posted price)
//  2. Dispatch to the per-type resolver (first price, second price, Dutch, candle)
//  3. Sum the charged amounts, compute the platform fee and pick the outcome reason
func Resolve(in ResolveInput) Resolution {
	if in.RandSource == nil {
		in.RandSource = DefaultRandSource
	}

	var res Resolution
	switch in.Reason {
	case ReasonSellerCancelled:
		res = Resolution{Winners: []Winner{}}
	case ReasonBuyNow:
		res = resolveBuyNow(in)
	default:
		res = variants[in.Snapshot.Auction.Config.Type].resolve(in)
	}

	// Step 3: totals and outcome
	res.Reason = in.Reason
	res.ResolvedAt = in.Now
	res.TotalPayout = decimal.Zero
	for _, w := range res.Winners {
		res.TotalPayout = res.TotalPayout.Add(w.Amount)
	}
	res.FinalPrice = decimal.Zero
	if len(res.Winners) > 0 {
		res.FinalPrice = res.Winners[0].Amount
	}
	res.Fee = PlatformFee(res.TotalPayout, in.FeeBasisPoints)

	if len(res.Winners) == 0 && in.Reason != ReasonSellerCancelled {
		if len(in.Snapshot.Bids) == 0 {
			res.Reason = ReasonNoBids
		} else {
			res.Reason = ReasonReserveNotMet
		}
	}
	return res
}

func winnerFromBid(bid Bid, amount decimal.Decimal, rank int) Winner {
	return Winner{
		Bidder:     bid.Bidder,
		BidID:      bid.ID,
		Amount:     amount,
		Allocation: decimal.NewFromInt(1),
		Rank:       rank,
	}
}

// resolveBuyNow awards the purchase at the posted price. The purchase is
// always the last bid in the ledger; earlier bids never win, even sealed
// ones at or above the buy-now price.
func resolveBuyNow(in ResolveInput) Resolution {
	bids := in.Snapshot.Bids
	cfg := in.Snapshot.Auction.Config
	if len(bids) == 0 || cfg.BuyNowPrice == nil {
		return Resolution{Winners: []Winner{}}
	}
	return Resolution{Winners: []Winner{winnerFromBid(bids[len(bids)-1], *cfg.BuyNowPrice, 1)}}
}

// resolveFirstPrice handles English-family and sealed first-price auctions:
// reserve enforcement, ranking, then single or multi-winner selection.
// Every winner pays their own bid.
func resolveFirstPrice(in ResolveInput) Resolution {
	return firstPrice(in, in.Snapshot.Bids)
}

func firstPrice(in ResolveInput, bids []Bid) Resolution {
	cfg := in.Snapshot.Auction.Config

	// Step 1: Enforce the reserve
	eligible, _ := EnforceReserve(bids, cfg.ReservePrice)

	// Step 2: Rank eligible bids, one per bidder
	ranked := RankBids(eligible)
	if len(ranked) == 0 {
		return Resolution{Winners: []Winner{}}
	}

	// Step 3: Select winners
	if !cfg.MultiWinner.Enabled {
		return Resolution{Winners: []Winner{winnerFromBid(ranked[0], ranked[0].Amount, 1)}}
	}

	limit := cfg.MultiWinner.MaxWinners
	var selected []Bid
	switch cfg.MultiWinner.Strategy {
	case StrategyLottery:
		selected = DrawLottery(ranked, limit, in.RandSource)
	default:
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		selected = ranked
	}

	winners := make([]Winner, 0, len(selected))
	for i, bid := range selected {
		winners = append(winners, winnerFromBid(bid, bid.Amount, i+1))
	}
	if cfg.MultiWinner.Strategy == StrategyProportional {
		amounts := make([]decimal.Decimal, len(winners))
		for i, w := range winners {
			amounts[i] = w.Amount
		}
		for i, share := range ProportionalAllocations(amounts) {
			winners[i].Allocation = share
		}
	}
	return Resolution{Winners: winners}
}

// resolveSecondPrice handles Vickrey auctions: the highest bidder wins and
// pays the larger of the runner-up's bid and the reserve, or the starting
// price when neither exists.
func resolveSecondPrice(in ResolveInput) Resolution {
	cfg := in.Snapshot.Auction.Config
	ranked := RankBids(in.Snapshot.Bids)
	if len(ranked) == 0 || !MeetsReserve(ranked[0].Amount, cfg.ReservePrice) {
		return Resolution{Winners: []Winner{}}
	}

	price := cfg.StartingPrice
	switch {
	case len(ranked) > 1 && cfg.ReservePrice != nil:
		price = decimal.Max(ranked[1].Amount, *cfg.ReservePrice)
	case len(ranked) > 1:
		price = ranked[1].Amount
	case cfg.ReservePrice != nil:
		price = *cfg.ReservePrice
	}
	return Resolution{Winners: []Winner{winnerFromBid(ranked[0], price, 1)}}
}

// resolveDutch charges the accepted bidder the posted price at acceptance.
func resolveDutch(in ResolveInput) Resolution {
	highest := in.Snapshot.HighestBid()
	if highest == nil {
		return Resolution{Winners: []Winner{}}
	}
	return Resolution{Winners: []Winner{winnerFromBid(*highest, in.Snapshot.Auction.CurrentPrice, 1)}}
}

// resolveCandle draws the moment the candle went out inside the candle
// window; only bids placed at or before that moment count.
func resolveCandle(in ResolveInput) Resolution {
	a := in.Snapshot.Auction
	cutoff := CandleCutoff(a, in.RandSource)

	counted := make([]Bid, 0, len(in.Snapshot.Bids))
	for _, bid := range in.Snapshot.Bids {
		if !bid.Timestamp.After(cutoff) {
			counted = append(counted, bid)
		}
	}
	res := firstPrice(in, counted)
	res.Cutoff = &cutoff
	return res
}

// CandleCutoff draws a cutoff uniformly, at millisecond granularity, within
// [EndsAt - CandleWindow, EndsAt].
func CandleCutoff(a Auction, randSource RandSource) time.Time {
	window := a.Config.CandleWindow
	windowStart := a.EndsAt.Add(-window)
	steps := int(window / time.Millisecond)
	if randSource == nil {
		randSource = DefaultRandSource
	}
	if steps <= 0 {
		return a.EndsAt
	}
	return windowStart.Add(time.Duration(randSource.Intn(steps+1)) * time.Millisecond)
}
