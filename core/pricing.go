package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// variant is the per-type rule table. Every type-dependent decision
// in pricing, admission and resolution is looked up here.
type variant struct {
	ascending   bool // next minimum = current price + increment
	descending  bool // posted price falls over time
	sealed      bool // amounts hidden and current price frozen until close
	proxy       bool
	multiWinner bool
	resolve     func(in ResolveInput) Resolution
}

var variants = map[AuctionType]variant{
	TypeEnglish:   {ascending: true, proxy: true, multiWinner: true, resolve: resolveFirstPrice},
	TypeReverse:   {ascending: true, proxy: true, multiWinner: true, resolve: resolveFirstPrice},
	TypeReserve:   {ascending: true, proxy: true, multiWinner: true, resolve: resolveFirstPrice},
	TypeBuyNow:    {ascending: true, proxy: true, resolve: resolveFirstPrice},
	TypeCandle:    {ascending: true, proxy: true, resolve: resolveCandle},
	TypeDutch:     {descending: true, resolve: resolveDutch},
	TypeSealedBid: {sealed: true, multiWinner: true, resolve: resolveFirstPrice},
	TypeVickrey:   {sealed: true, resolve: resolveSecondPrice},
}

// IsSealed reports whether bid amounts stay hidden until the auction closes.
func IsSealed(t AuctionType) bool { return variants[t].sealed }

// IsDescending reports whether the posted price falls over time.
func IsDescending(t AuctionType) bool { return variants[t].descending }

// SupportsProxy reports whether proxy bidding applies to the type.
func SupportsProxy(t AuctionType) bool { return variants[t].proxy }

// RoundAmount rounds to MonetaryPrecision.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(MonetaryPrecision)
}

// CurrentPrice returns the price a caller should see at now.
func CurrentPrice(s Snapshot, now time.Time) decimal.Decimal {
	a := s.Auction
	if variants[a.Config.Type].descending && !a.IsClosed() {
		return DutchPrice(a, now)
	}
	return a.CurrentPrice
}

// NextMinimumBid returns the lowest amount placeBid would accept at now.
func NextMinimumBid(s Snapshot, now time.Time) decimal.Decimal {
	a := s.Auction
	cfg := a.Config
	v := variants[cfg.Type]
	switch {
	case v.descending:
		return CurrentPrice(s, now)
	case v.sealed:
		// CurrentPrice stays frozen at the starting price while bids are
		// sealed, so the minimum never depends on a hidden amount.
		return a.CurrentPrice.Add(cfg.MinimumIncrement)
	case cfg.MultiWinner.Enabled:
		ranked := RankBids(s.Bids)
		if len(ranked) < cfg.MultiWinner.MaxWinners {
			return cfg.StartingPrice
		}
		return ranked[cfg.MultiWinner.MaxWinners-1].Amount.Add(cfg.MinimumIncrement)
	default:
		return a.CurrentPrice.Add(cfg.MinimumIncrement)
	}
}

// IsWinningBid reports whether amount strictly beats the current highest bid.
// Equal amounts never supersede an earlier bid.
func IsWinningBid(s Snapshot, amount decimal.Decimal) bool {
	highest := s.HighestBid()
	if highest == nil {
		return true
	}
	return RoundAmount(amount).GreaterThan(RoundAmount(highest.Amount))
}

// DutchPrice interpolates linearly from the starting price down to the
// reserve (or zero) across the configured duration.
func DutchPrice(a Auction, now time.Time) decimal.Decimal {
	cfg := a.Config
	floor := decimal.Zero
	if cfg.ReservePrice != nil {
		floor = *cfg.ReservePrice
	}
	start := cfg.StartTime
	if a.StartedAt != nil {
		start = *a.StartedAt
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return cfg.StartingPrice
	}
	if elapsed >= cfg.Duration {
		return floor
	}
	frac := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(cfg.Duration)))
	drop := cfg.StartingPrice.Sub(floor).Mul(frac)
	return decimal.Max(floor, RoundAmount(cfg.StartingPrice.Sub(drop)))
}
